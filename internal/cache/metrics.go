package cache

import (
	"sync/atomic"
	"time"
)

// CacheMetrics counts multi-level cache outcomes. L1 and L2 hits are
// tracked separately so the stats show how often Redis is reached.
type CacheMetrics struct {
	l1Hits    atomic.Int64
	l2Hits    atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	startTime time.Time
}

type MetricsSnapshot struct {
	L1Hits    int64     `json:"l1_hits"`
	L2Hits    int64     `json:"l2_hits"`
	Misses    int64     `json:"misses"`
	Errors    int64     `json:"errors"`
	Sets      int64     `json:"sets"`
	Deletes   int64     `json:"deletes"`
	Evictions int64     `json:"remote_evictions"`
	HitRate   float64   `json:"hit_rate"`
	StartTime time.Time `json:"start_time"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{startTime: time.Now()}
}

func (m *CacheMetrics) RecordL1Hit()  { m.l1Hits.Add(1) }
func (m *CacheMetrics) RecordL2Hit()  { m.l2Hits.Add(1) }
func (m *CacheMetrics) RecordMiss()   { m.misses.Add(1) }
func (m *CacheMetrics) RecordError()  { m.errors.Add(1) }
func (m *CacheMetrics) RecordSet()    { m.sets.Add(1) }
func (m *CacheMetrics) RecordDelete() { m.deletes.Add(1) }

// RecordRemoteEviction counts L1 entries dropped on another instance's
// behalf.
func (m *CacheMetrics) RecordRemoteEviction() { m.evictions.Add(1) }

func (m *CacheMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		L1Hits:    m.l1Hits.Load(),
		L2Hits:    m.l2Hits.Load(),
		Misses:    m.misses.Load(),
		Errors:    m.errors.Load(),
		Sets:      m.sets.Load(),
		Deletes:   m.deletes.Load(),
		Evictions: m.evictions.Load(),
		StartTime: m.startTime,
	}
	if total := s.L1Hits + s.L2Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.L1Hits+s.L2Hits) / float64(total) * 100.0
	}
	return s
}
