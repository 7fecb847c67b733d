package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"todo-planner/internal/models"
)

type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	GetValid(ctx context.Context, refreshToken uuid.UUID, now time.Time) (*models.Token, error)
	Delete(ctx context.Context, refreshToken uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormTokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

func (r *GormTokenRepository) Create(ctx context.Context, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.Must(uuid.NewV4())
	}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (r *GormTokenRepository) GetValid(ctx context.Context, refreshToken uuid.UUID, now time.Time) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).
		Where("refresh_token = ? AND expires_at > ?", refreshToken, now).
		First(&token).Error
	if err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (r *GormTokenRepository) Delete(ctx context.Context, refreshToken uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).Delete(&models.Token{})
	if res.Error != nil {
		return fmt.Errorf("delete token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Token{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
