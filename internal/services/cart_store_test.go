package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/cartstorage"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/kvstore"
)

type recordingPersistence struct {
	mu      sync.Mutex
	initial CartState
	writes  []CartState
	clears  int
	last    *CartState
}

func (p *recordingPersistence) Read(context.Context) CartState {
	return p.initial
}

func (p *recordingPersistence) Write(_ context.Context, state CartState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, state)
	p.last = &state
}

func (p *recordingPersistence) Clear(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	p.last = nil
}

func (p *recordingPersistence) snapshot() (*CartState, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, len(p.writes), p.clears
}

func newTestCartStore(t *testing.T, persistence CartPersistence) CartStore {
	t.Helper()
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	var (
		mu  sync.Mutex
		seq int
	)
	store, err := NewCartStore(context.Background(), CartStoreDeps{
		Persistence: persistence,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("%03d", seq)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func dressCommand(size, color string) AddCartItemCommand {
	return AddCartItemCommand{
		ProductID: "prod-dress",
		Name:      "Summer dress",
		UnitPrice: 2500,
		Variants:  VariantSelection{"size": size, "color": color},
	}
}

func TestCartStoreAddItemDefaultsQuantity(t *testing.T) {
	store := newTestCartStore(t, nil)

	state, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)
	require.Len(t, state.Items, 1)
	assert.Equal(t, 1, state.Items[0].Quantity)
	assert.Equal(t, "cl_001", state.Items[0].ID)
	assert.Equal(t, int64(2500), store.Subtotal())
}

func TestCartStoreMergesMatchingIdentity(t *testing.T) {
	store := newTestCartStore(t, nil)

	_, err := store.AddItem(AddCartItemCommand{ProductID: "prod-dress", UnitPrice: 2500, Quantity: 1, Variants: VariantSelection{"size": "M", "color": "Red"}})
	require.NoError(t, err)
	// Same selection built in a different key order, with a newer price snapshot.
	state, err := store.AddItem(AddCartItemCommand{ProductID: "prod-dress", UnitPrice: 2700, Quantity: 2, Variants: VariantSelection{"color": "Red", "size": "M"}})
	require.NoError(t, err)

	require.Len(t, state.Items, 1)
	assert.Equal(t, 3, state.Items[0].Quantity)
	assert.Equal(t, int64(2500), state.Items[0].UnitPrice, "merge keeps the original snapshot")
	assert.Equal(t, int64(7500), store.Subtotal())
}

func TestCartStoreDistinctVariantsStaySeparate(t *testing.T) {
	store := newTestCartStore(t, nil)

	_, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)
	_, err = store.AddItem(dressCommand("M", "red"))
	require.NoError(t, err)
	_, err = store.AddItem(AddCartItemCommand{ProductID: "prod-dress", UnitPrice: 2500, Variants: VariantSelection{"size": "M"}})
	require.NoError(t, err)
	_, err = store.AddItem(AddCartItemCommand{ProductID: "prod-dress", UnitPrice: 2500})
	require.NoError(t, err)
	_, err = store.AddItem(AddCartItemCommand{ProductID: "prod-dress", UnitPrice: 2500, Variants: VariantSelection{}})
	require.NoError(t, err)

	assert.Equal(t, 4, store.ItemCount())
}

func TestCartStoreEnforcesCap(t *testing.T) {
	store := newTestCartStore(t, nil)

	for i := 0; i < domain.MaxCartItems; i++ {
		_, err := store.AddItem(AddCartItemCommand{ProductID: fmt.Sprintf("prod-%d", i), UnitPrice: 100})
		require.NoError(t, err)
	}

	state, err := store.AddItem(AddCartItemCommand{ProductID: "prod-overflow", UnitPrice: 100})
	require.ErrorIs(t, err, ErrCartFull)
	assert.Len(t, state.Items, domain.MaxCartItems)
	assert.Equal(t, domain.MaxCartItems, store.ItemCount())

	// Merging into an existing line is always allowed, even at the cap.
	state, err = store.AddItem(AddCartItemCommand{ProductID: "prod-3", UnitPrice: 100, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, state.Items[3].Quantity)
	assert.Equal(t, domain.MaxCartItems, store.ItemCount())
}

func TestCartStoreRejectsInvalidInput(t *testing.T) {
	store := newTestCartStore(t, nil)

	_, err := store.AddItem(AddCartItemCommand{ProductID: "prod-1", UnitPrice: 100, Quantity: -2})
	require.ErrorIs(t, err, ErrCartInvalidInput)
	_, err = store.AddItem(AddCartItemCommand{ProductID: " ", UnitPrice: 100})
	require.ErrorIs(t, err, ErrCartInvalidInput)
	_, err = store.AddItem(AddCartItemCommand{ProductID: "prod-1", UnitPrice: -1})
	require.ErrorIs(t, err, ErrCartInvalidInput)
	assert.Equal(t, 0, store.ItemCount())
}

func TestCartStoreUpdateQuantity(t *testing.T) {
	store := newTestCartStore(t, nil)
	state, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)
	lineID := state.Items[0].ID

	state = store.UpdateQuantity(lineID, 4)
	assert.Equal(t, 4, state.Items[0].Quantity)
	assert.Equal(t, int64(10000), store.Subtotal())

	state = store.UpdateQuantity("missing", 9)
	assert.Equal(t, 4, state.Items[0].Quantity)

	state = store.UpdateQuantity(lineID, 0)
	assert.Empty(t, state.Items)

	_, err = store.AddItem(dressCommand("S", "Blue"))
	require.NoError(t, err)
	state = store.UpdateQuantity(store.Snapshot().Items[0].ID, -3)
	assert.Empty(t, state.Items)
}

func TestCartStoreRemoveItemIsIdempotent(t *testing.T) {
	store := newTestCartStore(t, nil)
	state, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)
	lineID := state.Items[0].ID

	assert.Empty(t, store.RemoveItem(lineID).Items)
	assert.Empty(t, store.RemoveItem(lineID).Items)
	assert.Equal(t, int64(0), store.Subtotal())
}

func TestCartStoreSnapshotIsACopy(t *testing.T) {
	store := newTestCartStore(t, nil)
	_, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)

	snapshot := store.Snapshot()
	snapshot.Items[0].Quantity = 99
	snapshot.Items[0].Variants["size"] = "XL"

	fresh := store.Snapshot()
	assert.Equal(t, 1, fresh.Items[0].Quantity)
	assert.Equal(t, "M", fresh.Items[0].Variants["size"])
}

func TestCartStoreHydratesFromPersistence(t *testing.T) {
	persisted := CartState{Items: []CartLineItem{{ID: "cl_saved", ProductID: "prod-scarf", UnitPrice: 900, Quantity: 2}}}
	persistence := &recordingPersistence{initial: persisted}
	store := newTestCartStore(t, persistence)

	assert.Equal(t, 1, store.ItemCount())
	assert.Equal(t, int64(1800), store.Subtotal())

	// The initial load goes through the reducer, which copies the persisted snapshot.
	persisted.Items[0].Quantity = 40
	assert.Equal(t, int64(1800), store.Subtotal())

	store.Hydrate(CartState{})
	assert.Equal(t, 0, store.ItemCount())

	require.NoError(t, store.Close(context.Background()))
	_, writes, clears := persistence.snapshot()
	assert.Zero(t, writes, "hydration must not write back")
	assert.Zero(t, clears)
}

func TestCartStorePersistsLatestSnapshot(t *testing.T) {
	persistence := &recordingPersistence{}
	store := newTestCartStore(t, persistence)

	_, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)
	_, err = store.AddItem(dressCommand("L", "Red"))
	require.NoError(t, err)
	store.UpdateQuantity(store.Snapshot().Items[0].ID, 3)

	require.NoError(t, store.Close(context.Background()))

	last, writes, _ := persistence.snapshot()
	require.NotNil(t, last)
	assert.GreaterOrEqual(t, writes, 1)
	assert.Equal(t, store.Snapshot(), *last)
}

func TestCartStoreReopenedOnSameKeyMergesSelection(t *testing.T) {
	backend := kvstore.NewMemoryStore()
	adapter, err := cartstorage.NewAdapter(backend, "cart:guest-1", nil)
	require.NoError(t, err)

	engraved := AddCartItemCommand{ProductID: "prod-ring", UnitPrice: 1200, Variants: VariantSelection{"Size ": "M", "Engraving": ""}}
	plain := AddCartItemCommand{ProductID: "prod-ring", UnitPrice: 1200, Quantity: 2}

	first := newTestCartStore(t, adapter)
	_, err = first.AddItem(engraved)
	require.NoError(t, err)
	_, err = first.AddItem(plain)
	require.NoError(t, err)
	require.NoError(t, first.Close(context.Background()))

	reopened := newTestCartStore(t, adapter)
	require.Equal(t, 2, reopened.ItemCount())

	state, err := reopened.AddItem(engraved)
	require.NoError(t, err)
	require.Len(t, state.Items, 2)
	assert.Equal(t, 2, state.Items[0].Quantity)
	assert.Equal(t, VariantSelection{"Size ": "M", "Engraving": ""}, state.Items[0].Variants)
	assert.Equal(t, 2, state.Items[1].Quantity)
	assert.Equal(t, int64(4800), reopened.Subtotal())
}

func TestCartStoreClearPurgesStorage(t *testing.T) {
	persistence := &recordingPersistence{}
	store := newTestCartStore(t, persistence)

	_, err := store.AddItem(dressCommand("M", "Red"))
	require.NoError(t, err)
	state := store.Clear()
	assert.Empty(t, state.Items)

	require.NoError(t, store.Close(context.Background()))
	last, _, clears := persistence.snapshot()
	assert.Nil(t, last)
	assert.Equal(t, 1, clears)
}

func TestCartStoreSerialisesConcurrentAdds(t *testing.T) {
	store := newTestCartStore(t, &recordingPersistence{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.AddItem(dressCommand("M", "Red"))
		}()
	}
	wg.Wait()

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, 50, snapshot.Items[0].Quantity)
}

func TestCartStoreCloseHonoursContext(t *testing.T) {
	store := newTestCartStore(t, &recordingPersistence{})
	require.NoError(t, store.Close(context.Background()))
	// A second close is a no-op.
	require.NoError(t, store.Close(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Close(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected close error: %v", err)
	}
}
