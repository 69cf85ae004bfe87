// Package cartstorage serialises the guest cart into a key-value store and reads it back defensively.
package cartstorage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/kvstore"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "gayla-cart"

var errCorrupt = errors.New("cartstorage: persisted cart is corrupt")

// Adapter reads and writes the cart snapshot. Storage faults never reach the caller.
type Adapter struct {
	store  kvstore.Store
	key    string
	logger *zap.Logger
}

// NewAdapter binds the adapter to a store and key.
func NewAdapter(store kvstore.Store, key string, logger *zap.Logger) (*Adapter, error) {
	if store == nil {
		return nil, errors.New("cartstorage: store is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, key: key, logger: logger.With(zap.String("cartKey", key))}, nil
}

// WithKey returns an adapter sharing the store but bound to another key, e.g. one per guest session.
func (a *Adapter) WithKey(key string) *Adapter {
	clone := *a
	if trimmed := strings.TrimSpace(key); trimmed != "" {
		clone.key = trimmed
		clone.logger = a.logger.With(zap.String("cartKey", trimmed))
	}
	return &clone
}

type persistedCart struct {
	Items     json.RawMessage `json:"items"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

type persistedItem struct {
	ID        string            `json:"id"`
	ProductID string            `json:"productId"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug,omitempty"`
	Thumbnail string            `json:"thumbnail,omitempty"`
	UnitPrice int64             `json:"unitPrice"`
	Quantity  int               `json:"quantity"`
	Variants  map[string]string `json:"variants,omitempty"`
	AddedAt   time.Time         `json:"addedAt"`
}

// Read loads the persisted cart. Missing data yields an empty cart; corrupt data is
// removed and yields an empty cart; more than domain.MaxCartItems lines are truncated.
func (a *Adapter) Read(ctx context.Context) domain.CartState {
	raw, found, err := a.store.Get(ctx, a.key)
	if err != nil {
		a.logger.Warn("cart storage read failed", zap.Error(err))
		return domain.CartState{}
	}
	if !found || strings.TrimSpace(raw) == "" {
		return domain.CartState{}
	}

	state, dropped, err := decode(raw)
	if err != nil {
		a.logger.Warn("discarding corrupt cart", zap.Error(err))
		if removeErr := a.store.Remove(ctx, a.key); removeErr != nil {
			a.logger.Warn("cart storage remove failed", zap.Error(removeErr))
		}
		return domain.CartState{}
	}
	if dropped > 0 {
		a.logger.Info("cart sanitised on read", zap.Int("droppedItems", dropped))
	}
	return state
}

// Write serialises the full state. Failures are logged and swallowed.
func (a *Adapter) Write(ctx context.Context, state domain.CartState) {
	payload, err := encode(state)
	if err != nil {
		a.logger.Warn("cart encode failed", zap.Error(err))
		return
	}
	if err := a.store.Set(ctx, a.key, payload); err != nil {
		a.logger.Warn("cart storage write failed", zap.Error(err))
	}
}

// Clear removes the persisted record. Failures are logged and swallowed.
func (a *Adapter) Clear(ctx context.Context) {
	if err := a.store.Remove(ctx, a.key); err != nil {
		a.logger.Warn("cart storage clear failed", zap.Error(err))
	}
}

func encode(state domain.CartState) (string, error) {
	items := make([]persistedItem, 0, len(state.Items))
	for _, item := range state.Items {
		items = append(items, persistedItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Slug:      item.Slug,
			Thumbnail: item.Thumbnail,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Variants:  item.Variants.Clone(),
			AddedAt:   item.AddedAt.UTC(),
		})
	}
	rawItems, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	doc := persistedCart{Items: rawItems}
	if !state.UpdatedAt.IsZero() {
		updated := state.UpdatedAt.UTC()
		doc.UpdatedAt = &updated
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decode returns the sanitised state and how many entries were dropped.
func decode(raw string) (domain.CartState, int, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return domain.CartState{}, 0, errCorrupt
	}

	var doc persistedCart
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return domain.CartState{}, 0, errors.Join(errCorrupt, err)
	}

	rawItems := strings.TrimSpace(string(doc.Items))
	if rawItems == "" || rawItems == "null" {
		return domain.CartState{}, 0, nil
	}
	if !strings.HasPrefix(rawItems, "[") {
		return domain.CartState{}, 0, errCorrupt
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(doc.Items, &entries); err != nil {
		return domain.CartState{}, 0, errors.Join(errCorrupt, err)
	}

	state := domain.CartState{}
	if doc.UpdatedAt != nil {
		state.UpdatedAt = doc.UpdatedAt.UTC()
	}

	dropped := 0
	for _, entry := range entries {
		item, ok := decodeItem(entry)
		if !ok || containsIdentity(state.Items, item) || len(state.Items) >= domain.MaxCartItems {
			dropped++
			continue
		}
		state.Items = append(state.Items, item)
	}
	return state, dropped, nil
}

func decodeItem(raw json.RawMessage) (domain.CartLineItem, bool) {
	var item persistedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.CartLineItem{}, false
	}
	productID := strings.TrimSpace(item.ProductID)
	if productID == "" || strings.TrimSpace(item.ID) == "" || item.Quantity < 1 || item.UnitPrice < 0 {
		return domain.CartLineItem{}, false
	}
	return domain.CartLineItem{
		ID:        item.ID,
		ProductID: productID,
		Name:      item.Name,
		Slug:      item.Slug,
		Thumbnail: item.Thumbnail,
		UnitPrice: item.UnitPrice,
		Quantity:  item.Quantity,
		Variants:  domain.VariantSelection(item.Variants).Clone(),
		AddedAt:   item.AddedAt.UTC(),
	}, true
}

func containsIdentity(items []domain.CartLineItem, candidate domain.CartLineItem) bool {
	for _, item := range items {
		if item.SameIdentity(candidate.ProductID, candidate.Variants) {
			return true
		}
	}
	return false
}
