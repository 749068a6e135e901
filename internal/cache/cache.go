package cache

import (
	"sync"

	"kassa/internal/models"

	"github.com/rs/zerolog"
)

// ProductCache is the in-memory optimistic view of products. Local mutating
// actions apply here synchronously, ahead of any remote confirmation, so the
// UI never waits on the network. Displayed stock is server stock minus
// quantities reserved by unsynced local sales, never negative.
type ProductCache struct {
	mu        sync.RWMutex
	products  map[int64]models.Product
	reserved  map[int64]int
	snapshots map[int64]*models.Product
	logger    *zerolog.Logger
}

func NewProductCache(logger *zerolog.Logger) *ProductCache {
	return &ProductCache{
		products:  make(map[int64]models.Product),
		reserved:  make(map[int64]int),
		snapshots: make(map[int64]*models.Product),
		logger:    logger,
	}
}

// SetProducts replaces the server-side view after a refresh. Reservations
// from unsynced sales stay in place so availability remains reduced until
// the queue drains.
func (c *ProductCache) SetProducts(products []models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = make(map[int64]models.Product, len(products))
	for _, p := range products {
		c.products[p.ID] = p
	}
}

// Products returns the displayed view: stock already reduced by pending
// reservations.
func (c *ProductCache) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		p.Stock = clampStock(p.Stock - c.reserved[p.ID])
		out = append(out, p)
	}
	return out
}

// Get returns one product with its displayed stock.
func (c *ProductCache) Get(id int64) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return models.Product{}, false
	}
	p.Stock = clampStock(p.Stock - c.reserved[p.ID])
	return p, true
}

// Available returns the sellable quantity: known stock minus quantities
// already reserved by unsynced sales on this device.
func (c *ProductCache) Available(id int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return 0
	}
	return clampStock(p.Stock - c.reserved[p.ID])
}

// ReserveSale holds quantities for a submitted sale so a second sale on the
// same device sees reduced availability before the first one syncs.
func (c *ProductCache) ReserveSale(lines []models.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range lines {
		c.reserved[line.ProductID] += line.Quantity
	}
}

// ReleaseSale undoes a reservation when the durable enqueue failed: the sale
// was never recorded, so the hold must not stick.
func (c *ProductCache) ReleaseSale(lines []models.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range lines {
		c.reserved[line.ProductID] -= line.Quantity
		if c.reserved[line.ProductID] <= 0 {
			delete(c.reserved, line.ProductID)
		}
	}
}

// ApplyLocal mutates a product optimistically, keeping the first pre-mutation
// snapshot until the remote outcome settles.
func (c *ProductCache) ApplyLocal(product models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.snapshots[product.ID]; !exists {
		if prev, ok := c.products[product.ID]; ok {
			c.snapshots[product.ID] = &prev
		} else {
			c.snapshots[product.ID] = nil
		}
	}
	c.products[product.ID] = product
}

// RemoveLocal deletes a product optimistically, snapshotting it for revert.
func (c *ProductCache) RemoveLocal(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.snapshots[id]; !exists {
		if prev, ok := c.products[id]; ok {
			c.snapshots[id] = &prev
		} else {
			c.snapshots[id] = nil
		}
	}
	delete(c.products, id)
}

// Revert restores a product to its pre-mutation snapshot. A nil snapshot
// means the product did not exist before the local mutation.
func (c *ProductCache) Revert(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.snapshots[id]
	if !ok {
		return
	}
	if snap == nil {
		delete(c.products, id)
	} else {
		c.products[id] = *snap
	}
	delete(c.snapshots, id)
}

// Discard drops a snapshot once the mutation is confirmed remotely.
func (c *ProductCache) Discard(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, id)
}

// OnSaleCommitted converts reservations into actual stock decrements once
// the sale's remote effects are confirmed. Sales are never rolled back
// locally; they stay queued for retry instead.
func (c *ProductCache) OnSaleCommitted(sale *models.SalePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range sale.Lines {
		c.reserved[line.ProductID] -= line.Quantity
		if c.reserved[line.ProductID] <= 0 {
			delete(c.reserved, line.ProductID)
		}
		if p, ok := c.products[line.ProductID]; ok {
			p.Stock = clampStock(p.Stock - line.Quantity)
			c.products[line.ProductID] = p
		}
	}
}

// OnMutationCommitted drops the pre-mutation snapshot once the remote write
// is confirmed.
func (c *ProductCache) OnMutationCommitted(resource string, id int64) {
	if resource != models.TableProducts || id == 0 {
		return
	}
	c.Discard(id)
}

// OnMutationRejected reverts an optimistic non-sale mutation after the
// backend explicitly rejected it.
func (c *ProductCache) OnMutationRejected(resource string, id int64) {
	if resource != models.TableProducts || id == 0 {
		return
	}
	c.logger.Warn().Int64("product_id", id).Msg("reverting optimistic product mutation after remote rejection")
	c.Revert(id)
}

func clampStock(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
