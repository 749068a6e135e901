package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kassa/internal/cache"
	"kassa/internal/database"
	"kassa/internal/domain"
	"kassa/internal/models"

	"github.com/rs/zerolog"
)

// RefreshWorker keeps the local product view close to the server's. This is
// the read path, separate from queue replay: it retries a failed fetch with
// capped exponential backoff (1s, 2s, 4s, three attempts) and then waits for
// the next interval or an explicit kick on reconnect.
type RefreshWorker struct {
	backend  domain.Backend
	cache    *cache.ProductCache
	db       *database.DB
	storeID  int64
	policy   RetryPolicy
	interval time.Duration
	kick     chan struct{}
	logger   *zerolog.Logger
}

func NewRefreshWorker(backend domain.Backend, productCache *cache.ProductCache, db *database.DB, storeID int64, policy RetryPolicy, interval time.Duration, logger *zerolog.Logger) *RefreshWorker {
	def := DefaultPolicy()
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.InitialDelay == 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.BackoffFactor == 0 {
		policy.BackoffFactor = def.BackoffFactor
	}
	if interval <= 0 {
		interval = time.Duration(models.DefaultRefreshIntervalSeconds) * time.Second
	}

	return &RefreshWorker{
		backend:  backend,
		cache:    productCache,
		db:       db,
		storeID:  storeID,
		policy:   policy,
		interval: interval,
		kick:     make(chan struct{}, 1),
		logger:   logger,
	}
}

// Kick requests an out-of-schedule refresh, typically on reconnect.
// Non-blocking; a pending kick is enough.
func (w *RefreshWorker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Start runs the refresh loop until ctx is done.
func (w *RefreshWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("refresh worker started")
	defer w.logger.Info().Msg("refresh worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}

		if err := w.Refresh(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("product refresh gave up until next trigger")
		}
	}
}

// Refresh fetches the product list with backoff and updates the cache and
// the durable snapshot used for warm starts.
func (w *RefreshWorker) Refresh(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= w.policy.MaxAttempts; attempt++ {
		products, err := w.fetchProducts(ctx)
		if err == nil {
			w.cache.SetProducts(products)
			w.persistSnapshot(ctx, products)
			w.logger.Debug().Int("count", len(products)).Msg("product list refreshed")
			return nil
		}
		lastErr = err

		if attempt == w.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.policy.NextDelay(attempt)):
		}
	}
	return fmt.Errorf("refresh failed after %d attempts: %w", w.policy.MaxAttempts, lastErr)
}

func (w *RefreshWorker) fetchProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := w.backend.Select(ctx, models.TableProducts, map[string]interface{}{"store_id": w.storeID})
	if err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			continue
		}
		var p models.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			w.logger.Warn().Err(err).Msg("skipping malformed product row")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// persistSnapshot keeps the last good product list in the kv store so the
// cache can be warmed before the first successful fetch after a restart.
func (w *RefreshWorker) persistSnapshot(ctx context.Context, products []models.Product) {
	if w.db == nil {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := w.db.Set(ctx, models.KeyProductSnapshot, string(raw)); err != nil {
		w.logger.Warn().Err(err).Msg("failed to persist product snapshot")
	}
}

// LoadSnapshot seeds the cache from the last persisted product list. Called
// once at startup; an absent snapshot is not an error.
func (w *RefreshWorker) LoadSnapshot(ctx context.Context) error {
	if w.db == nil {
		return nil
	}
	raw, ok, err := w.db.Get(ctx, models.KeyProductSnapshot)
	if err != nil {
		return fmt.Errorf("load product snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return fmt.Errorf("decode product snapshot: %w", err)
	}
	w.cache.SetProducts(products)
	w.logger.Info().Int("count", len(products)).Msg("product cache warmed from snapshot")
	return nil
}
