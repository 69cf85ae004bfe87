package repositories

import (
	"context"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderMutation edits an order in place. Returning an error aborts the write.
type OrderMutation func(order *domain.Order) error

// OrderRepository persists orders and guards order number uniqueness.
type OrderRepository interface {
	// Insert stores a new order. A taken order number surfaces as a conflict error.
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// Mutate applies fn to the current order and writes the result atomically.
	Mutate(ctx context.Context, orderID string, fn OrderMutation) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
}

// ProductRepository resolves catalog snapshots.
type ProductRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.Product, error)
}

// BanRepository answers whether a phone number belongs to a banned customer.
type BanRepository interface {
	IsBanned(ctx context.Context, phone string) (bool, error)
}

// DeliveryRateRepository returns the delivery pricing for a destination.
type DeliveryRateRepository interface {
	FindRates(ctx context.Context, destinationID string) (domain.DeliveryRates, error)
}

// Registry exposes the repositories a runtime needs and owns their shared clients.
type Registry interface {
	Orders() OrderRepository
	Products() ProductRepository
	Bans() BanRepository
	DeliveryRates() DeliveryRateRepository
	Close(ctx context.Context) error
}
