package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAlertRepository(db *gorm.DB, opts ...Option) *AlertRepository {
	o := buildOptions(opts)
	return &AlertRepository{db: db, now: o.now}
}

// Append inserts a new alert. Alerts are never updated apart from their
// acknowledgement.
func (r *AlertRepository) Append(ctx context.Context, alert *models.Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = r.now()
	}
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Get(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).Take(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get alert %s: %w", id, models.ErrAlertNotFound)
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

// List returns alerts newest first.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	q := r.db.WithContext(ctx).Model(&models.Alert{})
	if filter.UnacknowledgedOnly {
		q = q.Where("acknowledged_at IS NULL")
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	var alerts []models.Alert
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Acknowledge records who acknowledged an alert. Repeat calls keep the
// first acknowledgement and succeed.
func (r *AlertRepository) Acknowledge(ctx context.Context, id, by string) (*models.Alert, error) {
	var alert models.Alert

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&alert, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("alert %s: %w", id, models.ErrAlertNotFound)
		}
		if err != nil {
			return err
		}
		if alert.Acknowledged() {
			return nil
		}

		now := r.now()
		res := tx.Model(&models.Alert{}).
			Where("id = ? AND acknowledged_at IS NULL", id).
			Updates(map[string]any{
				"acknowledged_at": now,
				"acknowledged_by": by,
			})
		if res.Error != nil {
			return res.Error
		}
		alert.AcknowledgedAt = &now
		alert.AcknowledgedBy = by
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	return &alert, nil
}
