package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"kassa/internal/backend"
	"kassa/internal/config"
	"kassa/internal/domain"
	"kassa/internal/metrics"
	"kassa/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Engine drives the single-flight drain loop: it pulls queued operations in
// enqueue order and replays them against the backend, one at a time, never
// in parallel. Each process constructs exactly one Engine and passes it by
// reference; there is no package-level state, so independent instances can
// be tested in isolation.
type Engine struct {
	store      domain.QueueStore
	backend    domain.Backend
	reconciler domain.Reconciler
	bus        domain.StatusPublisher
	alerts     domain.AlertSender
	redis      *redis.Client
	logger     *zerolog.Logger

	loyalty config.LoyaltyConfig
	stock   config.StockConfig

	online  atomic.Bool
	syncing atomic.Bool
}

type Options struct {
	Store      domain.QueueStore
	Backend    domain.Backend
	Reconciler domain.Reconciler
	Bus        domain.StatusPublisher
	Alerts     domain.AlertSender
	Redis      *redis.Client
	Logger     *zerolog.Logger
	Loyalty    config.LoyaltyConfig
	Stock      config.StockConfig
}

func New(opts Options) *Engine {
	return &Engine{
		store:      opts.Store,
		backend:    opts.Backend,
		reconciler: opts.Reconciler,
		bus:        opts.Bus,
		alerts:     opts.Alerts,
		redis:      opts.Redis,
		logger:     opts.Logger,
		loyalty:    opts.Loyalty,
		stock:      opts.Stock,
	}
}

// IsOnline reports the last known connectivity state.
func (e *Engine) IsOnline() bool {
	return e.online.Load()
}

// SetOnline is called by the network monitor on connectivity transitions.
func (e *Engine) SetOnline(online bool) {
	e.online.Store(online)
	e.PublishStatus(context.Background())
}

// IsSyncing reports whether a drain pass is currently in flight.
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// Status builds the current aggregate sync state.
func (e *Engine) Status(ctx context.Context) models.SyncStatus {
	length, err := e.store.QueueLength(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to read queue length")
	}
	return models.SyncStatus{
		Online:      e.online.Load(),
		Syncing:     e.syncing.Load(),
		QueueLength: length,
	}
}

// PublishStatus pushes the current sync state to the bus and metrics.
func (e *Engine) PublishStatus(ctx context.Context) {
	status := e.Status(ctx)
	metrics.SetQueueLength(status.QueueLength)
	if e.bus != nil {
		e.bus.Publish(status)
	}
}

// TriggerDrain starts a drain pass unless the device is offline or a drain
// is already in flight. The CAS on the syncing flag is the single-flight
// guard: the reconnect trigger and the app-start trigger may race here, but
// only one proceeds and the loser is a no-op.
func (e *Engine) TriggerDrain(ctx context.Context) {
	if !e.online.Load() {
		return
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return
	}

	e.drain(ctx)

	e.syncing.Store(false)
	e.PublishStatus(ctx)
}

func (e *Engine) drain(ctx context.Context) {
	metrics.IncDrains()
	e.PublishStatus(ctx)

	ops, err := e.store.ListPendingOperations(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("drain: failed to list pending operations")
		return
	}

	for i := range ops {
		op := &ops[i]
		err := e.executeOperation(ctx, op)
		if err == nil {
			e.commitOperation(ctx, op)
			continue
		}

		metrics.IncFailure(op.Kind)

		var pre *PreconditionError
		if errors.As(err, &pre) {
			// The operation can never succeed; keeping it queued would
			// stall retries forever. Drop it, keep a copy for inspection
			// and undo its optimistic effect.
			e.logger.Error().Err(err).Str("op_id", op.ID).Str("kind", op.Kind).Msg("drain: dropping malformed operation")
			e.pushRejected(ctx, op)
			e.revertOptimistic(op)
			if removeErr := e.store.RemoveOperation(ctx, op.ID); removeErr != nil {
				e.logger.Error().Err(removeErr).Str("op_id", op.ID).Msg("drain: failed to remove malformed operation")
			}
			e.PublishStatus(ctx)
			continue
		}

		// Transient errors and explicit rejections are treated alike: the
		// operation stays queued and is retried identically on the next
		// trigger. A permanent rejection therefore retries indefinitely.
		if backend.IsRejection(err) {
			e.logger.Warn().Err(err).Str("op_id", op.ID).Str("kind", op.Kind).Msg("drain: backend rejected operation, will retry")
			if op.RetryCount == 0 {
				e.pushRejected(ctx, op)
			}
			e.revertOptimistic(op)
		} else {
			e.logger.Warn().Err(err).Str("op_id", op.ID).Str("kind", op.Kind).Msg("drain: operation failed, will retry")
		}

		if recErr := e.store.RecordFailure(ctx, op.ID, err.Error()); recErr != nil {
			e.logger.Error().Err(recErr).Str("op_id", op.ID).Msg("drain: failed to record failure")
		}
		// One failing item must not block the remainder of the queue.
	}
}

// commitOperation removes a confirmed operation and reconciles the cache.
func (e *Engine) commitOperation(ctx context.Context, op *models.QueuedOperation) {
	metrics.IncCommitted(op.Kind)

	if err := e.store.RemoveOperation(ctx, op.ID); err != nil {
		// The remote effects are committed; on the next drain the
		// idempotency key prevents a double apply.
		e.logger.Error().Err(err).Str("op_id", op.ID).Msg("drain: failed to remove committed operation")
	}

	if e.reconciler != nil {
		switch op.Kind {
		case models.OpSaleTransaction:
			if sale, err := models.DecodeSalePayload(op.Payload); err == nil {
				e.reconciler.OnSaleCommitted(sale)
			}
		case models.OpInsert, models.OpUpdate, models.OpDelete:
			if payload, err := models.DecodeCrudPayload(op.Payload); err == nil {
				e.reconciler.OnMutationCommitted(op.Resource, payload.ID)
			}
		}
	}

	e.logger.Info().Str("op_id", op.ID).Str("kind", op.Kind).Str("resource", op.Resource).Msg("operation committed")
	e.PublishStatus(ctx)
}

// revertOptimistic rolls the cache back for non-sale mutations. Sales are
// never rolled back locally once submitted; they stay queued for retry.
func (e *Engine) revertOptimistic(op *models.QueuedOperation) {
	if e.reconciler == nil || op.Kind == models.OpSaleTransaction || op.Kind == models.OpRPC {
		return
	}
	if payload, err := models.DecodeCrudPayload(op.Payload); err == nil {
		e.reconciler.OnMutationRejected(op.Resource, payload.ID)
	}
}

// pushRejected mirrors a rejected operation to a redis inspection list. The
// list is observational only: the queued operation itself is untouched.
func (e *Engine) pushRejected(ctx context.Context, op *models.QueuedOperation) {
	if e.redis == nil {
		return
	}
	data, err := json.Marshal(op)
	if err != nil {
		e.logger.Error().Err(err).Str("op_id", op.ID).Msg("encode rejected operation")
		return
	}
	if err := e.redis.LPush(ctx, models.RejectedListKey, data).Err(); err != nil {
		e.logger.Warn().Err(err).Str("op_id", op.ID).Msg("push rejected operation to redis")
	}
}
