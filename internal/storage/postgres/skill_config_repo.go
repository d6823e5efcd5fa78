package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SkillConfigRepository struct {
	db *gorm.DB
}

func NewSkillConfigRepository(db *gorm.DB) *SkillConfigRepository {
	return &SkillConfigRepository{db: db}
}

// GetActive returns the highest version stored for name.
func (r *SkillConfigRepository) GetActive(ctx context.Context, name string) (*models.SkillConfig, error) {
	var cfg models.SkillConfig
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("version DESC").
		Take(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("skill config %q: %w", name, models.ErrSkillConfigNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get skill config: %w", err)
	}
	return &cfg, nil
}

// Seed inserts the given rows, leaving any existing (name, version) pair
// untouched.
func (r *SkillConfigRepository) Seed(ctx context.Context, records []models.SkillConfig) error {
	if len(records) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "version"}},
			DoNothing: true,
		}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("seed skill configs: %w", err)
	}
	return nil
}
