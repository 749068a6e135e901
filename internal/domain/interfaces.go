package domain

import (
	"context"

	"kassa/internal/models"
)

// Backend is the authoritative remote table store. Insert/Update/Delete/
// Select operate on named resource tables; CallRPC invokes a server-side
// function such as the atomic stock decrement.
type Backend interface {
	Insert(ctx context.Context, table string, values map[string]interface{}) (map[string]interface{}, error)
	Update(ctx context.Context, table string, id int64, values map[string]interface{}) error
	Delete(ctx context.Context, table string, id int64) error
	Select(ctx context.Context, table string, filters map[string]interface{}) ([]map[string]interface{}, error)
	CallRPC(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error)
	Ping(ctx context.Context) error
}

// QueueStore is the durable local queue. Enqueue must hit disk before
// returning; Remove is idempotent; ListPending returns ascending enqueue
// order because replay is only correct chronologically.
type QueueStore interface {
	EnqueueOperation(ctx context.Context, op *models.QueuedOperation) error
	RemoveOperation(ctx context.Context, id string) error
	ListPendingOperations(ctx context.Context) ([]models.QueuedOperation, error)
	RecordFailure(ctx context.Context, id string, errMsg string) error
	QueueLength(ctx context.Context) (int, error)
}

// Reconciler receives the engine's verdict on queued operations so the
// optimistic cache can converge with the remote state.
type Reconciler interface {
	OnSaleCommitted(sale *models.SalePayload)
	OnMutationCommitted(resource string, id int64)
	OnMutationRejected(resource string, id int64)
}

// AlertSender dispatches fire-and-forget notifications. Delivery failures
// are logged by callers, never propagated into the sale outcome.
type AlertSender interface {
	SendLowStockAlert(ctx context.Context, productName string, stock int) error
}

// StatusPublisher pushes sync state changes to subscribers.
type StatusPublisher interface {
	Publish(status models.SyncStatus)
}

// SyncEngine is the queue-manager surface services and the network monitor
// depend on.
type SyncEngine interface {
	IsOnline() bool
	SetOnline(online bool)
	TriggerDrain(ctx context.Context)
	PublishStatus(ctx context.Context)
	Status(ctx context.Context) models.SyncStatus
}
