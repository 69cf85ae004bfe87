package services

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return e.msg }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

// memoryOrderRepo keeps orders in a map and serialises mutations like a transactional store.
type memoryOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	numbers  map[string]string
	inserts  int
	insertFn func(domain.Order) error
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:  make(map[string]domain.Order),
		numbers: make(map[string]string),
	}
}

func (r *memoryOrderRepo) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertFn != nil {
		if err := r.insertFn(order); err != nil {
			return err
		}
	}
	if _, ok := r.numbers[order.OrderNumber]; ok {
		return stubRepoError{msg: "order number taken", conflict: true}
	}
	if _, ok := r.orders[order.ID]; ok {
		return stubRepoError{msg: "order exists", conflict: true}
	}
	r.orders[order.ID] = order
	r.numbers[order.OrderNumber] = order.ID
	return nil
}

func (r *memoryOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, stubRepoError{msg: fmt.Sprintf("order %s not found", orderID), notFound: true}
	}
	return order, nil
}

func (r *memoryOrderRepo) Mutate(_ context.Context, orderID string, fn repositories.OrderMutation) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, stubRepoError{msg: fmt.Sprintf("order %s not found", orderID), notFound: true}
	}
	order.StatusHistory = append([]domain.StatusHistoryEntry(nil), order.StatusHistory...)
	order.CallLog = append([]domain.CallLogEntry(nil), order.CallLog...)
	if err := fn(&order); err != nil {
		return domain.Order{}, err
	}
	r.orders[orderID] = order
	return order, nil
}

func (r *memoryOrderRepo) Delete(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return stubRepoError{msg: fmt.Sprintf("order %s not found", orderID), notFound: true}
	}
	delete(r.orders, orderID)
	delete(r.numbers, order.OrderNumber)
	return nil
}

func (r *memoryOrderRepo) OrderNumberExists(_ context.Context, orderNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.numbers[orderNumber]
	return ok, nil
}

type stubProductRepo struct {
	products map[string]domain.Product
	err      error
}

func (s *stubProductRepo) FindProduct(_ context.Context, productID string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	if product, ok := s.products[productID]; ok {
		return product, nil
	}
	if s.products == nil {
		return domain.Product{ID: productID}, nil
	}
	return domain.Product{}, stubRepoError{msg: "product not found", notFound: true}
}

type stubBanRepo struct {
	banned  map[string]bool
	queried []string
	err     error
}

func (s *stubBanRepo) IsBanned(_ context.Context, phone string) (bool, error) {
	s.queried = append(s.queried, phone)
	if s.err != nil {
		return false, s.err
	}
	return s.banned[phone], nil
}

type captureOrderEvents struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureOrderEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}
