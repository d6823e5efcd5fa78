package skill

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/models"
)

// PropertyStore reads the parent entities a job analyses.
type PropertyStore interface {
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	ListInvoices(ctx context.Context, propertyID string) ([]models.Invoice, error)
	ListHaulLogs(ctx context.Context, propertyID string) ([]models.HaulLog, error)
}

// Base is the per-job data shared by every step.
type Base struct {
	JobID    string
	JobType  config.JobType
	Property models.Property
	Invoices []models.Invoice
	HaulLogs []models.HaulLog
	Input    json.RawMessage
}

// Context is the read-only view handed to one skill execution.
type Context struct {
	Base
	Config   Config
	Previous map[Name]Result
	Now      time.Time
}

// Output returns the result of an earlier step.
func (c *Context) Output(name Name) (Result, bool) {
	r, ok := c.Previous[name]
	return r, ok
}

// DecodeInput unmarshals the job input into v. An absent input leaves v
// untouched.
func (c *Context) DecodeInput(v any) error {
	if len(c.Input) == 0 || string(c.Input) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Input, v); err != nil {
		return ValidationErr("INVALID_INPUT", "job input is malformed: %v", err)
	}
	return nil
}

// Builder assembles skill contexts from the property store.
type Builder struct {
	store PropertyStore
	now   func() time.Time
}

func NewBuilder(store PropertyStore, now func() time.Time) *Builder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Builder{store: store, now: now}
}

// Load reads the property, its invoices ordered by date and its haul logs.
// A missing property is a validation failure; store errors are
// infrastructure failures.
func (b *Builder) Load(ctx context.Context, job *models.Job) (*Base, error) {
	property, err := b.store.GetProperty(ctx, job.PropertyID)
	if err != nil {
		if errors.Is(err, models.ErrPropertyNotFound) {
			return nil, ValidationErr("PROPERTY_NOT_FOUND", "property %s does not exist", job.PropertyID)
		}
		return nil, InfrastructureErr("STORE_UNAVAILABLE", err, "load property")
	}

	invoices, err := b.store.ListInvoices(ctx, job.PropertyID)
	if err != nil {
		return nil, InfrastructureErr("STORE_UNAVAILABLE", err, "load invoices")
	}

	logs, err := b.store.ListHaulLogs(ctx, job.PropertyID)
	if err != nil {
		return nil, InfrastructureErr("STORE_UNAVAILABLE", err, "load haul logs")
	}

	return &Base{
		JobID:    job.ID,
		JobType:  job.JobType,
		Property: *property,
		Invoices: invoices,
		HaulLogs: logs,
		Input:    json.RawMessage(job.InputData),
	}, nil
}

// ForStep builds the context for one step. Slices and previous outputs are
// copied so a skill cannot disturb what later steps see.
func (b *Builder) ForStep(base *Base, cfg Config, previous map[Name]Result) *Context {
	copied := *base
	copied.Invoices = slices.Clone(base.Invoices)
	copied.HaulLogs = slices.Clone(base.HaulLogs)
	copied.Input = slices.Clone(base.Input)

	prev := make(map[Name]Result, len(previous))
	maps.Copy(prev, previous)

	return &Context{
		Base:     copied,
		Config:   cfg,
		Previous: prev,
		Now:      b.now(),
	}
}
