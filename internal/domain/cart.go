package domain

import (
	"sort"
	"strings"
	"time"
)

// MaxCartItems caps the number of distinct lines a cart may hold.
const MaxCartItems = 10

// VariantSelection maps an option group (size, color...) to the chosen value.
type VariantSelection map[string]string

// Equal reports whether both selections carry the same keys with identical values.
// A nil selection equals an empty one.
func (v VariantSelection) Equal(other VariantSelection) bool {
	if len(v) != len(other) {
		return false
	}
	for key, value := range v {
		otherValue, ok := other[key]
		if !ok || otherValue != value {
			return false
		}
	}
	return true
}

// Key renders a canonical, order independent representation of the selection.
func (v VariantSelection) Key() string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(v[key])
	}
	return b.String()
}

// Clone returns a copy that shares no storage with the receiver. Empty selections clone to nil.
func (v VariantSelection) Clone() VariantSelection {
	if len(v) == 0 {
		return nil
	}
	out := make(VariantSelection, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// CartLineItem is one line of the guest cart.
type CartLineItem struct {
	ID        string
	ProductID string
	Name      string
	Slug      string
	Thumbnail string
	UnitPrice int64
	Quantity  int
	Variants  VariantSelection
	AddedAt   time.Time
}

// SameIdentity reports whether two lines describe the same product and variant selection.
func (i CartLineItem) SameIdentity(productID string, variants VariantSelection) bool {
	return i.ProductID == productID && i.Variants.Equal(variants)
}

// LineTotal is the unit price multiplied by the quantity.
func (i CartLineItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// CartState is the full cart snapshot held by the store and persisted between visits.
type CartState struct {
	Items     []CartLineItem
	UpdatedAt time.Time
}

// ItemCount returns the number of distinct lines.
func (s CartState) ItemCount() int {
	return len(s.Items)
}

// Subtotal sums every line total. It is computed on every call.
func (s CartState) Subtotal() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.LineTotal()
	}
	return total
}

// Clone deep copies the state.
func (s CartState) Clone() CartState {
	out := CartState{UpdatedAt: s.UpdatedAt}
	if len(s.Items) > 0 {
		out.Items = make([]CartLineItem, len(s.Items))
		for i, item := range s.Items {
			item.Variants = item.Variants.Clone()
			out.Items[i] = item
		}
	}
	return out
}
