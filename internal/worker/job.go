package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type JobType string

const (
	JobTypeTaskStatusChanged JobType = "task_status_changed"
	JobTypeTaskReminder      JobType = "task_reminder"
	JobTypeTokenCleanup      JobType = "token_cleanup"
)

const (
	DefaultQueue   = "default"
	RetryQueue     = "retry_queue"
	DeadQueue      = "dead_queue"
	ScheduledQueue = "scheduled_jobs"

	defaultMaxTries = 3
)

type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"max_tries"`
	CreatedAt time.Time       `json:"created_at"`
	ProcessAt time.Time       `json:"process_at"`
}

// DeadJob is what ends up in the dead-letter queue.
type DeadJob struct {
	Job      Job       `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func newJob(queue string, jobType JobType, payload interface{}, now, processAt time.Time) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	return &Job{
		ID:        id.String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   raw,
		MaxTries:  defaultMaxTries,
		CreatedAt: now,
		ProcessAt: processAt,
	}, nil
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v interface{}) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has no payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload of job %s: %w", j.ID, err)
	}
	return nil
}
