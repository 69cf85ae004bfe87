package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
)

var (
	// ErrCartFull signals that adding a new distinct line would exceed domain.MaxCartItems.
	ErrCartFull = errors.New("cart: maximum number of items reached")
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
)

// CartAction is one of the actions understood by ReduceCart.
type CartAction interface {
	cartAction()
}

// AddItemAction adds Item, merging with an existing line of the same identity.
type AddItemAction struct {
	Item CartLineItem
	At   time.Time
}

// RemoveItemAction removes the line with LineID. Unknown ids are ignored.
type RemoveItemAction struct {
	LineID string
	At     time.Time
}

// UpdateQuantityAction sets the quantity of a line. A quantity of zero or less removes it.
type UpdateQuantityAction struct {
	LineID   string
	Quantity int
	At       time.Time
}

// ClearAction empties the cart.
type ClearAction struct {
	At time.Time
}

// HydrateAction replaces the whole state, typically with the persisted cart.
type HydrateAction struct {
	State CartState
}

func (AddItemAction) cartAction()        {}
func (RemoveItemAction) cartAction()     {}
func (UpdateQuantityAction) cartAction() {}
func (ClearAction) cartAction()          {}
func (HydrateAction) cartAction()        {}

// ReduceCart applies action to state and returns the next state. The input state is never
// modified. On error the returned state equals the input.
func ReduceCart(state CartState, action CartAction) (CartState, error) {
	switch a := action.(type) {
	case AddItemAction:
		return reduceAddItem(state, a)
	case RemoveItemAction:
		return reduceRemoveItem(state, a), nil
	case UpdateQuantityAction:
		return reduceUpdateQuantity(state, a), nil
	case ClearAction:
		return CartState{UpdatedAt: a.At}, nil
	case HydrateAction:
		return a.State.Clone(), nil
	case nil:
		return state, fmt.Errorf("%w: action is required", ErrCartInvalidInput)
	default:
		return state, fmt.Errorf("%w: unsupported action %T", ErrCartInvalidInput, action)
	}
}

func reduceAddItem(state CartState, action AddItemAction) (CartState, error) {
	item := action.Item
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return state, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if item.Quantity < 1 {
		return state, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}
	if item.UnitPrice < 0 {
		return state, fmt.Errorf("%w: unit price must not be negative", ErrCartInvalidInput)
	}

	if idx := indexOfCartLine(state.Items, item.ProductID, item.Variants); idx >= 0 {
		next := state.Clone()
		next.Items[idx].Quantity += item.Quantity
		next.UpdatedAt = action.At
		return next, nil
	}

	if len(state.Items) >= domain.MaxCartItems {
		return state, fmt.Errorf("%w: at most %d different items", ErrCartFull, domain.MaxCartItems)
	}
	if strings.TrimSpace(item.ID) == "" {
		return state, fmt.Errorf("%w: line id is required", ErrCartInvalidInput)
	}

	next := state.Clone()
	item.Variants = item.Variants.Clone()
	if item.AddedAt.IsZero() {
		item.AddedAt = action.At
	}
	next.Items = append(next.Items, item)
	next.UpdatedAt = action.At
	return next, nil
}

func reduceRemoveItem(state CartState, action RemoveItemAction) CartState {
	idx := indexOfLineID(state.Items, action.LineID)
	if idx < 0 {
		return state
	}
	next := state.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	next.UpdatedAt = action.At
	return next
}

func reduceUpdateQuantity(state CartState, action UpdateQuantityAction) CartState {
	if action.Quantity <= 0 {
		return reduceRemoveItem(state, RemoveItemAction{LineID: action.LineID, At: action.At})
	}
	idx := indexOfLineID(state.Items, action.LineID)
	if idx < 0 {
		return state
	}
	next := state.Clone()
	next.Items[idx].Quantity = action.Quantity
	next.UpdatedAt = action.At
	return next
}

func indexOfCartLine(items []CartLineItem, productID string, variants VariantSelection) int {
	for i, item := range items {
		if item.SameIdentity(productID, variants) {
			return i
		}
	}
	return -1
}

func indexOfLineID(items []CartLineItem, lineID string) int {
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return -1
	}
	for i, item := range items {
		if item.ID == lineID {
			return i
		}
	}
	return -1
}
