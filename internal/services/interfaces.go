package services

import (
	"context"
	"time"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	OrderLineItem      = domain.OrderLineItem
	OrderStatus        = domain.OrderStatus
	CallOutcome        = domain.CallOutcome
	Customer           = domain.Customer
	Destination        = domain.Destination
	DeliveryMode       = domain.DeliveryMode
	DeliveryRates      = domain.DeliveryRates
	CartState          = domain.CartState
	CartLineItem       = domain.CartLineItem
	VariantSelection   = domain.VariantSelection
	StatusHistoryEntry = domain.StatusHistoryEntry
	CallLogEntry       = domain.CallLogEntry
)

// CartStore holds the guest cart for the current visitor and persists every change.
type CartStore interface {
	Hydrate(state CartState)
	AddItem(cmd AddCartItemCommand) (CartState, error)
	RemoveItem(lineID string) CartState
	UpdateQuantity(lineID string, quantity int) CartState
	Clear() CartState
	Snapshot() CartState
	ItemCount() int
	Subtotal() int64
	Close(ctx context.Context) error
}

// CheckoutService turns a cart into an order placement request.
type CheckoutService interface {
	PrepareOrder(ctx context.Context, cart CartState, input CheckoutInput) (CreateOrderCommand, error)
}

// OrderService runs the order lifecycle: placement, operator status changes and call logging.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	LogCallOutcome(ctx context.Context, cmd LogCallOutcomeCommand) (CallOutcomeResult, error)
	RemoveOrder(ctx context.Context, orderID string) error
}

// CartPersistence is the storage side of the cart store. Implementations swallow their own faults.
type CartPersistence interface {
	Read(ctx context.Context) CartState
	Write(ctx context.Context, state CartState)
	Clear(ctx context.Context)
}

// DeliveryPricing resolves delivery rates for a destination.
type DeliveryPricing interface {
	FindRates(ctx context.Context, destinationID string) (DeliveryRates, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	Reason         string
	CallOutcome    string
	ActorID        string
	OccurredAt     time.Time
}

// AddCartItemCommand carries the product snapshot captured when the shopper adds an item.
type AddCartItemCommand struct {
	ProductID string
	Name      string
	Slug      string
	Thumbnail string
	UnitPrice int64
	// Quantity defaults to 1 when zero.
	Quantity int
	Variants VariantSelection
}

// CheckoutInput is what the shopper enters on the checkout form.
type CheckoutInput struct {
	Customer     Customer
	DeliveryMode DeliveryMode
	Notes        string
}

// CreateOrderCommand is the order placement request built at checkout.
type CreateOrderCommand struct {
	Customer     Customer
	DeliveryMode DeliveryMode
	DeliveryCost int64
	Items        []OrderLineItem
	// TotalAmount is informational; the engine recomputes it.
	TotalAmount int64
	Notes       string
}

// CreateOrderResult is returned after an order is placed.
type CreateOrderResult struct {
	OrderID     string
	OrderNumber string
	TotalAmount int64
	Status      OrderStatus
}

// UpdateOrderStatusCommand is a manual status change made by an operator.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	Reason  string
	ActorID string
}

// LogCallOutcomeCommand records one confirmation call.
type LogCallOutcomeCommand struct {
	OrderID string
	Outcome CallOutcome
	Note    string
	ActorID string
}

// CallOutcomeResult reports the updated order and whether a cancellation policy fired.
type CallOutcomeResult struct {
	Order        Order
	AutoCanceled bool
	Reason       string
}
