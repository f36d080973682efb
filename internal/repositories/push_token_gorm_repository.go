package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/models"
)

// GORMPushTokenRepository is a GORM implementation of PushTokenRepository.
type GORMPushTokenRepository struct {
	db *gorm.DB
}

// NewGORMPushTokenRepository creates a new instance of GORMPushTokenRepository.
func NewGORMPushTokenRepository(db *gorm.DB) *GORMPushTokenRepository {
	return &GORMPushTokenRepository{db: db}
}

// Upsert inserts the token or bumps updated_at when it is already known.
func (r *GORMPushTokenRepository) Upsert(ctx context.Context, token string) error {
	now := time.Now().UTC()
	reg := models.PushRegistration{Token: token, CreatedAt: now, UpdatedAt: now}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&reg).Error
	if err != nil {
		return errors.Wrap(err, "upsert push token")
	}
	return nil
}

// ListTokens returns every registered token.
func (r *GORMPushTokenRepository) ListTokens(ctx context.Context) ([]string, error) {
	var tokens []string
	if err := r.db.WithContext(ctx).Model(&models.PushRegistration{}).Order("created_at").Pluck("token", &tokens).Error; err != nil {
		return nil, errors.Wrap(err, "list push tokens")
	}
	return tokens, nil
}
