package cache

import (
	"testing"

	"kassa/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestCache() *ProductCache {
	logger := zerolog.Nop()
	c := NewProductCache(&logger)
	c.SetProducts([]models.Product{
		{ID: 1, Name: "Rice", Stock: 3, Price: 25, Status: models.ProductActive},
		{ID: 2, Name: "Oil", Stock: 10, Price: 40, Status: models.ProductActive},
	})
	return c
}

func TestReserveReducesAvailability(t *testing.T) {
	c := newTestCache()

	c.ReserveSale([]models.CartLine{{ProductID: 1, Quantity: 2}})

	assert.Equal(t, 1, c.Available(1))
	p, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 1, p.Stock)

	// A second sale on the same device sees the reduced availability
	c.ReserveSale([]models.CartLine{{ProductID: 1, Quantity: 1}})
	assert.Equal(t, 0, c.Available(1))
}

func TestAvailabilityNeverNegative(t *testing.T) {
	c := newTestCache()

	c.ReserveSale([]models.CartLine{{ProductID: 1, Quantity: 5}})
	assert.Equal(t, 0, c.Available(1))
}

func TestReleaseSaleRestoresAvailability(t *testing.T) {
	c := newTestCache()

	lines := []models.CartLine{{ProductID: 2, Quantity: 4}}
	c.ReserveSale(lines)
	assert.Equal(t, 6, c.Available(2))

	c.ReleaseSale(lines)
	assert.Equal(t, 10, c.Available(2))
}

func TestOnSaleCommittedConvertsReservation(t *testing.T) {
	c := newTestCache()

	sale := &models.SalePayload{Lines: []models.CartLine{{ProductID: 1, Quantity: 2}}}
	c.ReserveSale(sale.Lines)
	c.OnSaleCommitted(sale)

	// Stock fell for real, reservation released, no double counting
	assert.Equal(t, 1, c.Available(1))

	c.SetProducts([]models.Product{{ID: 1, Name: "Rice", Stock: 1}})
	assert.Equal(t, 1, c.Available(1))
}

func TestRefreshKeepsReservations(t *testing.T) {
	c := newTestCache()

	c.ReserveSale([]models.CartLine{{ProductID: 2, Quantity: 3}})
	c.SetProducts([]models.Product{{ID: 2, Name: "Oil", Stock: 10}})

	// Server still reports 10, but 3 are locally reserved and unsynced
	assert.Equal(t, 7, c.Available(2))
}

func TestRevertRestoresSnapshot(t *testing.T) {
	c := newTestCache()

	c.ApplyLocal(models.Product{ID: 2, Name: "Oil", Stock: 10, Price: 55})
	p, _ := c.Get(2)
	assert.Equal(t, 55.0, p.Price)

	c.OnMutationRejected(models.TableProducts, 2)
	p, _ = c.Get(2)
	assert.Equal(t, 40.0, p.Price)
}

func TestRevertNewProductRemovesIt(t *testing.T) {
	c := newTestCache()

	c.ApplyLocal(models.Product{ID: 3, Name: "Soap", Stock: 5})
	_, ok := c.Get(3)
	assert.True(t, ok)

	c.Revert(3)
	_, ok = c.Get(3)
	assert.False(t, ok)
}

func TestDiscardDropsSnapshot(t *testing.T) {
	c := newTestCache()

	c.ApplyLocal(models.Product{ID: 2, Name: "Oil", Stock: 10, Price: 55})
	c.Discard(2)

	// Nothing to revert once the mutation was confirmed
	c.Revert(2)
	p, _ := c.Get(2)
	assert.Equal(t, 55.0, p.Price)
}

func TestRemoveLocalAndRevert(t *testing.T) {
	c := newTestCache()

	c.RemoveLocal(1)
	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Revert(1)
	p, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "Rice", p.Name)
}
