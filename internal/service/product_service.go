package service

import (
	"context"
	"errors"
	"fmt"

	"kassa/internal/cache"
	"kassa/internal/domain"
	"kassa/internal/metrics"
	"kassa/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrMissingProductID = errors.New("product id is required")

// ProductService applies catalog edits optimistically and queues the remote
// write. Product ids are client-managed (barcode-derived), so offline
// creates need no id handshake with the backend.
type ProductService struct {
	cache  *cache.ProductCache
	store  domain.QueueStore
	engine domain.SyncEngine
	logger *zerolog.Logger
}

func NewProductService(productCache *cache.ProductCache, store domain.QueueStore, engine domain.SyncEngine, logger *zerolog.Logger) *ProductService {
	return &ProductService{
		cache:  productCache,
		store:  store,
		engine: engine,
		logger: logger,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, product models.Product) error {
	if product.ID == 0 {
		return ErrMissingProductID
	}
	if product.Status == "" {
		product.Status = models.ProductActive
	}

	s.cache.ApplyLocal(product)
	if err := s.enqueue(ctx, models.OpInsert, product.ID, productValues(product)); err != nil {
		s.cache.Revert(product.ID)
		return err
	}
	return nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, product models.Product) error {
	if product.ID == 0 {
		return ErrMissingProductID
	}

	s.cache.ApplyLocal(product)
	if err := s.enqueue(ctx, models.OpUpdate, product.ID, productValues(product)); err != nil {
		s.cache.Revert(product.ID)
		return err
	}
	return nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if id == 0 {
		return ErrMissingProductID
	}

	s.cache.RemoveLocal(id)
	if err := s.enqueue(ctx, models.OpDelete, id, nil); err != nil {
		s.cache.Revert(id)
		return err
	}
	return nil
}

func (s *ProductService) enqueue(ctx context.Context, kind string, id int64, values map[string]interface{}) error {
	payload, err := models.EncodePayload(models.CrudPayload{ID: id, Values: values})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	op := &models.QueuedOperation{
		ID:       uuid.New().String(),
		Kind:     kind,
		Resource: models.TableProducts,
		Payload:  payload,
	}
	if err := s.store.EnqueueOperation(ctx, op); err != nil {
		return fmt.Errorf("product change not queued: %w", err)
	}

	metrics.IncEnqueued()
	s.engine.PublishStatus(ctx)
	s.logger.Info().Str("op_id", op.ID).Str("kind", kind).Int64("product_id", id).Msg("product change queued")

	if s.engine.IsOnline() {
		go s.engine.TriggerDrain(context.WithoutCancel(ctx))
	}
	return nil
}

func productValues(p models.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":     p.ID,
		"name":   p.Name,
		"stock":  p.Stock,
		"price":  p.Price,
		"cost":   p.Cost,
		"status": p.Status,
	}
}
