package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshu-sajeev/wastewise/internal/job"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"gorm.io/gorm"
)

// PropertyRepository reads the parent entities a job analyses. The engine
// never writes them outside of tests and seeding.
type PropertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

var _ job.PropertyLookup = (*PropertyRepository)(nil)

func (r *PropertyRepository) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	if err := r.db.WithContext(ctx).Take(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get property %s: %w", id, models.ErrPropertyNotFound)
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	return &p, nil
}

func (r *PropertyRepository) PropertyExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Property{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("property exists: %w", err)
	}
	return count > 0, nil
}

// ListInvoices returns a property's invoices ordered by invoice date.
func (r *PropertyRepository) ListInvoices(ctx context.Context, propertyID string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("invoice_date ASC").
		Order("id ASC").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// ListHaulLogs returns a property's haul logs ordered by service date. The
// result may be empty.
func (r *PropertyRepository) ListHaulLogs(ctx context.Context, propertyID string) ([]models.HaulLog, error) {
	var logs []models.HaulLog
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("service_date ASC").
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list haul logs: %w", err)
	}
	return logs, nil
}

// SaveProperty upserts a property with its invoices and haul logs in one
// transaction. Used for seeding fixtures.
func (r *PropertyRepository) SaveProperty(ctx context.Context, p *models.Property, invoices []models.Invoice, logs []models.HaulLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("save property: %w", err)
		}
		for i := range invoices {
			invoices[i].PropertyID = p.ID
			if err := tx.Save(&invoices[i]).Error; err != nil {
				return fmt.Errorf("save invoice: %w", err)
			}
		}
		for i := range logs {
			logs[i].PropertyID = p.ID
			if err := tx.Save(&logs[i]).Error; err != nil {
				return fmt.Errorf("save haul log: %w", err)
			}
		}
		return nil
	})
}
