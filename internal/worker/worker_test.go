package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"kassa/internal/cache"
	"kassa/internal/database"
	"kassa/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
}

func TestRetryPolicyClampsToMaxDelay(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:  time.Second,
		MaxDelay:      3 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, 3*time.Second, policy.NextDelay(5))
}

func TestRetryPolicyDefaults(t *testing.T) {
	var policy RetryPolicy

	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, models.RefreshMaxAttempts, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
}

type fakeBackend struct {
	rows     []map[string]interface{}
	failures int32
	calls    int32
}

func (b *fakeBackend) Insert(ctx context.Context, table string, values map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) Update(ctx context.Context, table string, id int64, values map[string]interface{}) error {
	return errors.New("not implemented")
}

func (b *fakeBackend) Delete(ctx context.Context, table string, id int64) error {
	return errors.New("not implemented")
}

func (b *fakeBackend) Select(ctx context.Context, table string, filters map[string]interface{}) ([]map[string]interface{}, error) {
	atomic.AddInt32(&b.calls, 1)
	if atomic.AddInt32(&b.failures, -1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return b.rows, nil
}

func (b *fakeBackend) CallRPC(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) Ping(ctx context.Context) error { return nil }

func setupWorker(t *testing.T, backend *fakeBackend) (*RefreshWorker, *cache.ProductCache, *database.DB) {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "kassa.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	productCache := cache.NewProductCache(&logger)
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
	w := NewRefreshWorker(backend, productCache, db, 1, policy, time.Hour, &logger)
	return w, productCache, db
}

func TestRefreshUpdatesCacheAndSnapshot(t *testing.T) {
	backend := &fakeBackend{rows: []map[string]interface{}{
		{"id": float64(5), "name": "Кола 0.5", "stock": float64(12), "price": float64(25)},
	}}
	w, productCache, db := setupWorker(t, backend)

	require.NoError(t, w.Refresh(context.Background()))

	p, ok := productCache.Get(5)
	require.True(t, ok)
	assert.Equal(t, "Кола 0.5", p.Name)
	assert.Equal(t, 12, p.Stock)

	raw, ok, err := db.Get(context.Background(), models.KeyProductSnapshot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "Кола 0.5")
}

func TestRefreshRetriesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{
		failures: 2,
		rows:     []map[string]interface{}{{"id": float64(1), "name": "Хлеб", "stock": float64(3)}},
	}
	w, productCache, _ := setupWorker(t, backend)

	require.NoError(t, w.Refresh(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.calls))
	assert.Equal(t, 3, productCache.Available(1))
}

func TestRefreshGivesUpAfterMaxAttempts(t *testing.T) {
	backend := &fakeBackend{failures: 100}
	w, _, _ := setupWorker(t, backend)

	err := w.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.calls))
}

func TestLoadSnapshotWarmsCache(t *testing.T) {
	backend := &fakeBackend{rows: []map[string]interface{}{
		{"id": float64(7), "name": "Молоко", "stock": float64(4)},
	}}
	w, _, db := setupWorker(t, backend)
	require.NoError(t, w.Refresh(context.Background()))

	logger := zerolog.Nop()
	freshCache := cache.NewProductCache(&logger)
	w2 := NewRefreshWorker(backend, freshCache, db, 1, RetryPolicy{}, time.Hour, &logger)

	require.NoError(t, w2.LoadSnapshot(context.Background()))
	assert.Equal(t, 4, freshCache.Available(7))
}

func TestLoadSnapshotMissingIsNotAnError(t *testing.T) {
	w, productCache, _ := setupWorker(t, &fakeBackend{})

	require.NoError(t, w.LoadSnapshot(context.Background()))
	assert.Empty(t, productCache.Products())
}

func TestKickTriggersRefresh(t *testing.T) {
	backend := &fakeBackend{rows: []map[string]interface{}{
		{"id": float64(2), "name": "Сахар", "stock": float64(9)},
	}}
	w, productCache, _ := setupWorker(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Kick()
	require.Eventually(t, func() bool {
		return productCache.Available(2) == 9
	}, time.Second, 10*time.Millisecond)
}
