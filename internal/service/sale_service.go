package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kassa/internal/cache"
	"kassa/internal/domain"
	"kassa/internal/metrics"
	"kassa/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyCart         = errors.New("sale has no cart lines")
	ErrInsufficientStock = errors.New("requested quantity exceeds available stock")
	ErrUnknownProduct    = errors.New("product is not in the local catalog")
)

// SaleService records sales for the UI. The cache is mutated synchronously
// so the cashier never waits on the network; the durable enqueue and the
// eventual remote replay are the only serialized parts.
type SaleService struct {
	cache      *cache.ProductCache
	store      domain.QueueStore
	engine     domain.SyncEngine
	storeID    int64
	employeeID int64
	logger     *zerolog.Logger
}

func NewSaleService(productCache *cache.ProductCache, store domain.QueueStore, engine domain.SyncEngine, storeID, employeeID int64, logger *zerolog.Logger) *SaleService {
	return &SaleService{
		cache:      productCache,
		store:      store,
		engine:     engine,
		storeID:    storeID,
		employeeID: employeeID,
		logger:     logger,
	}
}

// SaleRequest is what the register screen submits.
type SaleRequest struct {
	Lines         []SaleLine `json:"lines"`
	PaymentMethod string     `json:"payment_method"`
	CustomerPhone string     `json:"customer_phone"`
	CustomerName  string     `json:"customer_name"`
}

type SaleLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// RecordSale validates the cart against locally known availability, reserves
// the quantities, durably enqueues the composite sale and kicks a drain when
// online. It returns the operation id that doubles as the idempotency key.
func (s *SaleService) RecordSale(ctx context.Context, req SaleRequest) (string, error) {
	if len(req.Lines) == 0 {
		return "", ErrEmptyCart
	}

	// Quantity is capped at stock minus already-reserved-but-unsynced sales
	// on this device: a second sale before the first syncs must see reduced
	// availability. The cap is against the cart's aggregate per product, so
	// two lines for the same product cannot pass one by one.
	lines := make([]models.CartLine, 0, len(req.Lines))
	requested := make(map[int64]int, len(req.Lines))
	total := 0.0
	for _, l := range req.Lines {
		product, ok := s.cache.Get(l.ProductID)
		if !ok {
			return "", fmt.Errorf("%w: id %d", ErrUnknownProduct, l.ProductID)
		}
		requested[l.ProductID] += l.Quantity
		if l.Quantity <= 0 || requested[l.ProductID] > product.Stock {
			return "", fmt.Errorf("%w: %s has %d available", ErrInsufficientStock, product.Name, product.Stock)
		}
		lines = append(lines, models.CartLine{
			ProductID:   l.ProductID,
			ProductName: product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   product.Price,
			StockAtSale: product.Stock,
		})
		total += product.Price * float64(l.Quantity)
	}

	payment := req.PaymentMethod
	if payment == "" {
		payment = models.PaymentCash
	}

	sale := models.SalePayload{
		Lines:         lines,
		PaymentMethod: payment,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Total:         total,
		SoldAt:        time.Now(),
		StoreID:       s.storeID,
		EmployeeID:    s.employeeID,
	}
	payload, err := models.EncodePayload(sale)
	if err != nil {
		return "", fmt.Errorf("encode sale payload: %w", err)
	}

	op := &models.QueuedOperation{
		ID:       uuid.New().String(),
		Kind:     models.OpSaleTransaction,
		Resource: models.TableSales,
		Payload:  payload,
	}

	// Optimistic hold first, then the durable write. A storage failure
	// means the sale was never queued, so the hold is released again.
	s.cache.ReserveSale(lines)
	if err := s.store.EnqueueOperation(ctx, op); err != nil {
		s.cache.ReleaseSale(lines)
		return "", fmt.Errorf("sale not queued: %w", err)
	}

	metrics.IncEnqueued()
	s.engine.PublishStatus(ctx)
	s.logger.Info().Str("op_id", op.ID).Float64("total", total).Int("lines", len(lines)).Msg("sale queued")

	if s.engine.IsOnline() {
		go s.engine.TriggerDrain(context.WithoutCancel(ctx))
	}
	return op.ID, nil
}
