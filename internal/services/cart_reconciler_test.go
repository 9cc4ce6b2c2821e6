package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satchel/internal/domain"
	"satchel/internal/services"
)

type syncCall struct {
	op         string
	customerID string
	items      []domain.CartLineItem
}

// fakeSyncer records calls; when gate is set, Replace blocks until it is closed.
type fakeSyncer struct {
	mu         sync.Mutex
	calls      []syncCall
	gate       chan struct{}
	replaceErr error
}

func (f *fakeSyncer) Replace(ctx context.Context, customerID string, items []domain.CartLineItem) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, syncCall{op: "replace", customerID: customerID, items: items})
	return f.replaceErr
}

func (f *fakeSyncer) Clear(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, syncCall{op: "clear", customerID: customerID})
	return nil
}

func (f *fakeSyncer) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

var itemY = domain.CartLineItem{ProductID: "Y", Name: "Bag Y", Price: 10, Quantity: 1}

func TestResolve_LocalWinsAndSyncsEmptyBackend(t *testing.T) {
	fs := &fakeSyncer{gate: make(chan struct{})}
	r := services.NewCartReconciler(fs, time.Second, nil)

	res, err := r.Resolve(context.Background(), []domain.CartLineItem{itemY}, nil, nil, "u-asha")
	require.NoError(t, err)
	assert.Equal(t, services.SourceLocal, res.Source)
	assert.True(t, res.SyncScheduled)
	assert.Equal(t, []domain.CartLineItem{itemY}, res.Items)

	// Resolve returned while the sync is still blocked
	assert.Empty(t, fs.ops())

	close(fs.gate)
	r.Wait()
	require.Len(t, fs.calls, 1)
	assert.Equal(t, "u-asha", fs.calls[0].customerID)
	assert.Equal(t, []domain.CartLineItem{itemY}, fs.calls[0].items)
}

func TestResolve_SyncSurvivesRequestCancel(t *testing.T) {
	fs := &fakeSyncer{}
	r := services.NewCartReconciler(fs, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Resolve(ctx, []domain.CartLineItem{itemY}, nil, nil, "u-asha")
	require.NoError(t, err)
	cancel()
	r.Wait()
	assert.Equal(t, []string{"replace"}, fs.ops())
}

func TestResolve_LocalWinsOverNonEmptyBackend(t *testing.T) {
	fs := &fakeSyncer{}
	r := services.NewCartReconciler(fs, time.Second, nil)
	backend := []domain.CartLineItem{{ProductID: "Z", Quantity: 4}}

	res, err := r.Resolve(context.Background(), []domain.CartLineItem{itemY}, backend, nil, "u-asha")
	require.NoError(t, err)
	assert.Equal(t, services.SourceLocal, res.Source)
	assert.Equal(t, "Y", res.Items[0].ProductID)
	assert.False(t, res.SyncScheduled)
	r.Wait()
	assert.Empty(t, fs.ops())
}

func TestResolve_NoSyncForGuestsOrBackendErrors(t *testing.T) {
	fs := &fakeSyncer{}
	r := services.NewCartReconciler(fs, time.Second, nil)

	res, err := r.Resolve(context.Background(), []domain.CartLineItem{itemY}, nil, nil, "")
	require.NoError(t, err)
	assert.False(t, res.SyncScheduled)

	res, err = r.Resolve(context.Background(), []domain.CartLineItem{itemY}, nil, errors.New("timeout"), "u-asha")
	require.NoError(t, err)
	assert.Equal(t, services.SourceLocal, res.Source)
	assert.False(t, res.SyncScheduled)

	r.Wait()
	assert.Empty(t, fs.ops())
}

func TestResolve_BackendFallback(t *testing.T) {
	r := services.NewCartReconciler(&fakeSyncer{}, time.Second, nil)
	backend := []domain.CartLineItem{{ProductID: "Z", Quantity: 4}}

	res, err := r.Resolve(context.Background(), nil, backend, nil, "u-asha")
	require.NoError(t, err)
	assert.Equal(t, services.SourceBackend, res.Source)
	assert.Equal(t, backend, res.Items)
}

func TestResolve_EmptyAndUnavailable(t *testing.T) {
	r := services.NewCartReconciler(&fakeSyncer{}, time.Second, nil)

	_, err := r.Resolve(context.Background(), nil, nil, nil, "u-asha")
	require.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = r.Resolve(context.Background(), []domain.CartLineItem{}, nil, errors.New("db down"), "u-asha")
	require.ErrorIs(t, err, domain.ErrCartUnavailable)
}

func TestResolve_SyncFailureIsNotFatal(t *testing.T) {
	fs := &fakeSyncer{replaceErr: errors.New("constraint failed")}
	r := services.NewCartReconciler(fs, time.Second, nil)

	res, err := r.Resolve(context.Background(), []domain.CartLineItem{itemY}, nil, nil, "u-asha")
	require.NoError(t, err)
	assert.True(t, res.SyncScheduled)
	r.Wait()
	assert.Equal(t, []string{"replace"}, fs.ops())
}

func TestSettle_RunsAfterPendingSync(t *testing.T) {
	fs := &fakeSyncer{gate: make(chan struct{})}
	r := services.NewCartReconciler(fs, time.Second, nil)

	_, err := r.Resolve(context.Background(), []domain.CartLineItem{itemY}, nil, nil, "u-asha")
	require.NoError(t, err)
	r.Settle(context.Background(), "u-asha")
	r.Settle(context.Background(), "")

	close(fs.gate)
	r.Wait()
	assert.Equal(t, []string{"replace", "clear"}, fs.ops())
}
