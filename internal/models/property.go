package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property, Invoice and HaulLog are owned by the upstream application. The
// job engine only reads them.
type Property struct {
	ID                    string  `gorm:"type:varchar(36);primaryKey"`
	Name                  string  `gorm:"type:varchar(255);not null"`
	Units                 int     `gorm:"not null"`
	PropertyType          string  `gorm:"type:varchar(32)"`
	OccupancyPct          float64 `gorm:"not null;default:0"`
	Status                string  `gorm:"type:varchar(32)"`
	HasCompactor          bool    `gorm:"not null;default:false"`
	HasValet              bool    `gorm:"not null;default:false"`
	City                  string  `gorm:"type:varchar(128)"`
	State                 string  `gorm:"type:varchar(2)"`
	ContainerSizeCY       float64
	ServiceType           string `gorm:"type:varchar(16)"`
	MaxDaysBetweenPickups int
	DumpsterQty           int
	DumpsterSizeCY        float64
	DumpsterFreqPerWeek   float64
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

type LineItem struct {
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Quantity       float64 `json:"quantity"`
	ExtendedAmount float64 `json:"extended_amount"`
}

type Invoice struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	PropertyID    string     `gorm:"type:varchar(36);not null;index"`
	InvoiceNumber string     `gorm:"type:varchar(64)"`
	VendorName    string     `gorm:"type:varchar(255)"`
	InvoiceDate   *time.Time `gorm:"index"`
	DueDate       *time.Time
	Subtotal      float64
	AmountDue     float64
	LineItems     datatypes.JSONSlice[LineItem] `gorm:"type:jsonb"`
	CreatedAt     time.Time                     `gorm:"autoCreateTime"`
}

type HaulLog struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	PropertyID  string    `gorm:"type:varchar(36);not null;index"`
	ServiceDate time.Time `gorm:"not null;index"`
	Tons        float64
	HaulFee     float64
	DisposalFee float64
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.LineItems == nil {
		i.LineItems = datatypes.JSONSlice[LineItem]{}
	}
	return nil
}

func (h *HaulLog) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
