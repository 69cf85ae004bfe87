package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	pfirestore "github.com/Alae213/gayla-shop-sub001/internal/platform/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
)

const (
	ordersCollection       = "orders"
	orderNumbersCollection = "orderNumbers"

	// Number collisions are retried by the order service with a fresh number.
	insertTxAttempts = 3
	mutateTxTimeout  = 10 * time.Second
)

// OrderRepository stores orders in Firestore. Order numbers are reserved in a
// separate index collection so uniqueness holds across concurrent inserts.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	numbers  *pfirestore.Collection[orderNumberDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		numbers:  pfirestore.NewCollection[orderNumberDocument](provider, orderNumbersCollection),
	}, nil
}

// Insert creates the order and its order number reservation in one transaction.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return errors.New("order number is required")
	}

	doc := fromDomainOrder(order)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		numberRef, err := r.numbers.DocumentRef(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}

		if _, err := tx.Get(numberRef); err == nil {
			return pfirestore.Conflict("orders.insert", fmt.Sprintf("order number %s already taken", order.OrderNumber))
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		if err := tx.Create(numberRef, orderNumberDocument{OrderID: order.ID, CreatedAt: doc.CreatedAt}); err != nil {
			return err
		}
		return tx.Create(orderRef, doc)
	}, pfirestore.WithTxAttempts(insertTxAttempts))
	return pfirestore.WrapError("orders.insert", err)
}

// FindByID loads an order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// Mutate reads the order, applies fn and writes it back inside a transaction.
// fn may run more than once when the transaction is retried.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.OrderMutation) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order mutation is required")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFound("orders.mutate", fmt.Sprintf("order %s not found", orderID))
			}
			return err
		}

		current, err := r.orders.Decode(snapshot)
		if err != nil {
			return err
		}
		order := toDomainOrder(current.ID, current.Data)
		if err := fn(&order); err != nil {
			return err
		}
		order.ID = orderID

		if err := tx.Set(ref, fromDomainOrder(order)); err != nil {
			return err
		}
		updated = order
		return nil
	}, pfirestore.WithTxTimeout(mutateTxTimeout))
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mutate", err)
	}
	return updated, nil
}

// Delete removes the order together with its order number reservation.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFound("orders.delete", fmt.Sprintf("order %s not found", orderID))
			}
			return err
		}
		current, err := r.orders.Decode(snapshot)
		if err != nil {
			return err
		}
		if number := strings.TrimSpace(current.Data.OrderNumber); number != "" {
			numberRef, err := r.numbers.DocumentRef(ctx, number)
			if err != nil {
				return err
			}
			if err := tx.Delete(numberRef); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	}, pfirestore.WithTxTimeout(mutateTxTimeout))
	return pfirestore.WrapError("orders.delete", err)
}

// OrderNumberExists reports whether an order number has already been reserved.
func (r *OrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	if r == nil || r.numbers == nil {
		return false, errors.New("order repository not initialised")
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return false, errors.New("order number is required")
	}
	return r.numbers.Exists(ctx, orderNumber)
}
