package services

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const cartLineIDPrefix = "cl_"

// CartStoreDeps bundles collaborators required to construct the cart store.
type CartStoreDeps struct {
	// Persistence is optional; without it the cart lives in memory only.
	Persistence CartPersistence
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type cartStore struct {
	mu     sync.Mutex
	state  CartState
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
	writer *cartWriter
	ctx    context.Context
}

// NewCartStore builds the store and hydrates it once from persistence.
func NewCartStore(ctx context.Context, deps CartStoreDeps) (CartStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	store := &cartStore{
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
		ctx:    context.WithoutCancel(ctx),
	}

	if deps.Persistence != nil {
		hydrated, err := ReduceCart(CartState{}, HydrateAction{State: deps.Persistence.Read(ctx)})
		if err != nil {
			return nil, err
		}
		store.state = hydrated
		store.writer = newCartWriter(store.ctx, deps.Persistence)
	}
	logger(ctx, "cart.hydrated", map[string]any{"items": store.state.ItemCount()})
	return store, nil
}

func (s *cartStore) Hydrate(state CartState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, _ := ReduceCart(s.state, HydrateAction{State: state})
	s.state = next
}

func (s *cartStore) AddItem(cmd AddCartItemCommand) (CartState, error) {
	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	now := s.clock()
	item := CartLineItem{
		ID:        cartLineIDPrefix + s.newID(),
		ProductID: cmd.ProductID,
		Name:      cmd.Name,
		Slug:      cmd.Slug,
		Thumbnail: cmd.Thumbnail,
		UnitPrice: cmd.UnitPrice,
		Quantity:  quantity,
		Variants:  cmd.Variants,
		AddedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := ReduceCart(s.state, AddItemAction{Item: item, At: now})
	if err != nil {
		s.logger(s.ctx, "cart.add_rejected", map[string]any{
			"productId": cmd.ProductID,
			"items":     s.state.ItemCount(),
			"error":     err.Error(),
		})
		return s.state.Clone(), err
	}
	s.commit(next, false)
	return next.Clone(), nil
}

func (s *cartStore) RemoveItem(lineID string) CartState {
	return s.dispatch(RemoveItemAction{LineID: lineID, At: s.clock()}, false)
}

func (s *cartStore) UpdateQuantity(lineID string, quantity int) CartState {
	return s.dispatch(UpdateQuantityAction{LineID: lineID, Quantity: quantity, At: s.clock()}, false)
}

func (s *cartStore) Clear() CartState {
	return s.dispatch(ClearAction{At: s.clock()}, true)
}

func (s *cartStore) Snapshot() CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *cartStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ItemCount()
}

func (s *cartStore) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Subtotal()
}

// Close flushes the last pending snapshot and stops the background writer.
func (s *cartStore) Close(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.close(ctx)
}

func (s *cartStore) dispatch(action CartAction, purge bool) CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := ReduceCart(s.state, action)
	if err != nil {
		// Remove, update and clear never fail; keep the current state if they ever do.
		return s.state.Clone()
	}
	s.commit(next, purge)
	return next.Clone()
}

// commit swaps the snapshot and schedules persistence. Callers hold s.mu.
func (s *cartStore) commit(next CartState, purge bool) {
	s.state = next
	if s.writer == nil {
		return
	}
	if !s.writer.enqueue(next.Clone(), purge) {
		s.logger(s.ctx, "cart.persist_skipped", map[string]any{"reason": "store closed"})
	}
}

type pendingCartWrite struct {
	state CartState
	purge bool
}

// cartWriter persists snapshots off the caller's path. Only the latest pending snapshot is kept.
type cartWriter struct {
	ctx     context.Context
	persist CartPersistence

	mu      sync.Mutex
	pending *pendingCartWrite
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newCartWriter(ctx context.Context, persist CartPersistence) *cartWriter {
	w := &cartWriter{
		ctx:     ctx,
		persist: persist,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *cartWriter) enqueue(state CartState, purge bool) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = &pendingCartWrite{state: state, purge: purge}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *cartWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

func (w *cartWriter) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	if pending == nil {
		return
	}
	if pending.purge {
		w.persist.Clear(w.ctx)
		return
	}
	w.persist.Write(w.ctx, pending.state)
}

func (w *cartWriter) close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
	})
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
