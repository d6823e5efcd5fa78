package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyRepository(t *testing.T) {
	env := SetupTestDB(t)
	repo := NewPropertyRepository(env.db)
	ctx := context.Background()

	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	january := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	property := &models.Property{Name: "Orion Prosper", Units: 312, HasCompactor: true, City: "Austin", State: "TX"}
	invoices := []models.Invoice{
		{InvoiceNumber: "INV-2", VendorName: "Republic Services", InvoiceDate: &march, AmountDue: 100,
			LineItems: []models.LineItem{{Description: "Haul", Category: "base", Quantity: 1, ExtendedAmount: 100}}},
		{InvoiceNumber: "INV-1", VendorName: "Republic Services", InvoiceDate: &january, AmountDue: 90},
	}
	logs := []models.HaulLog{
		{ServiceDate: march, Tons: 5.1},
		{ServiceDate: january, Tons: 4.2},
	}
	require.NoError(t, repo.SaveProperty(ctx, property, invoices, logs))
	require.Len(t, property.ID, 36)

	t.Run("get property", func(t *testing.T) {
		got, err := repo.GetProperty(ctx, property.ID)
		require.NoError(t, err)
		assert.Equal(t, "Orion Prosper", got.Name)
		assert.Equal(t, 312, got.Units)

		_, err = repo.GetProperty(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrPropertyNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := repo.PropertyExists(ctx, property.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.PropertyExists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invoices ordered by date", func(t *testing.T) {
		got, err := repo.ListInvoices(ctx, property.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "INV-1", got[0].InvoiceNumber)
		assert.Equal(t, "INV-2", got[1].InvoiceNumber)
		require.Len(t, got[1].LineItems, 1)
		assert.Equal(t, "base", got[1].LineItems[0].Category)
	})

	t.Run("haul logs ordered by date", func(t *testing.T) {
		got, err := repo.ListHaulLogs(ctx, property.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.InDelta(t, 4.2, got[0].Tons, 1e-9)
	})

	t.Run("no haul logs is empty, not an error", func(t *testing.T) {
		got, err := repo.ListHaulLogs(ctx, "other-property")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
