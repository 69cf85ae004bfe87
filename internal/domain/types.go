package domain

import (
	"time"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	// OrderStatusNew marks a freshly placed order awaiting operator confirmation.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusConfirmed indicates the customer confirmed the order by phone.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPackaged indicates the parcel is ready for the courier.
	OrderStatusPackaged OrderStatus = "packaged"
	// OrderStatusShipped indicates the parcel was handed to the courier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCanceled indicates the order has been canceled.
	OrderStatusCanceled OrderStatus = "canceled"
	// OrderStatusBlocked marks orders placed by banned customers.
	OrderStatusBlocked OrderStatus = "blocked"
)

// OrderStatuses lists every recognised status.
var OrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusConfirmed,
	OrderStatusPackaged,
	OrderStatusShipped,
	OrderStatusCanceled,
	OrderStatusBlocked,
}

// Valid reports whether the status is one of the recognised literals.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether automatic call policies must leave the order untouched.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCanceled || s == OrderStatusBlocked
}

// CallOutcome is the result of an operator confirmation call.
type CallOutcome string

const (
	CallOutcomeAnswered    CallOutcome = "answered"
	CallOutcomeNoAnswer    CallOutcome = "no answer"
	CallOutcomeWrongNumber CallOutcome = "wrong number"
	CallOutcomeRefused     CallOutcome = "refused"
)

// Valid reports whether the outcome is one of the recognised literals.
func (o CallOutcome) Valid() bool {
	switch o {
	case CallOutcomeAnswered, CallOutcomeNoAnswer, CallOutcomeWrongNumber, CallOutcomeRefused:
		return true
	default:
		return false
	}
}

// DeliveryMode selects between home delivery and courier desk pickup.
type DeliveryMode string

const (
	DeliveryModeDomicile DeliveryMode = "domicile"
	DeliveryModeStopdesk DeliveryMode = "stopdesk"
)

// Valid reports whether the mode is supported.
func (m DeliveryMode) Valid() bool {
	return m == DeliveryModeDomicile || m == DeliveryModeStopdesk
}

// Destination identifies the delivery region (wilaya).
type Destination struct {
	ID   string
	Name string
}

// Customer captures the contact and delivery details entered at checkout.
type Customer struct {
	Name        string
	Phone       string
	Destination Destination
	Commune     string
	Address     string
}

// Order is the persisted order record handled by the lifecycle engine.
type Order struct {
	ID            string
	OrderNumber   string
	Customer      Customer
	DeliveryMode  DeliveryMode
	DeliveryCost  int64
	Items         []OrderLineItem
	TotalAmount   int64
	Status        OrderStatus
	StatusHistory []StatusHistoryEntry
	CallLog       []CallLogEntry
	CallAttempts  int
	IsBanned      bool
	CancelReason  string
	Notes         string
	CreatedAt     time.Time
	LastUpdated   time.Time
}

// OrderLineItem is a price snapshot of a product at order time.
type OrderLineItem struct {
	ProductID string
	Name      string
	Slug      string
	Thumbnail string
	Quantity  int
	UnitPrice int64
	Variants  VariantSelection
	LineTotal int64
}

// StatusHistoryEntry records a single status change. Entries are never rewritten.
type StatusHistoryEntry struct {
	Status    OrderStatus
	Timestamp time.Time
	Reason    string
}

// CallLogEntry records a single confirmation call attempt.
type CallLogEntry struct {
	Timestamp time.Time
	Outcome   CallOutcome
	Note      string
}

// NoAnswerCount counts the logged calls that went unanswered.
func (o Order) NoAnswerCount() int {
	count := 0
	for _, entry := range o.CallLog {
		if entry.Outcome == CallOutcomeNoAnswer {
			count++
		}
	}
	return count
}

// Product is the catalog snapshot the engine resolves line items against.
type Product struct {
	ID        string
	Name      string
	Slug      string
	Price     int64
	Thumbnail string
	Archived  bool
}
