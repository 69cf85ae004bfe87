package di

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/config"
	pfirestore "github.com/Alae213/gayla-shop-sub001/internal/platform/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/kvstore"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
	"github.com/Alae213/gayla-shop-sub001/internal/services"
)

type memoryRegistry struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	numbers map[string]bool
	closed  bool
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{orders: map[string]domain.Order{}, numbers: map[string]bool{}}
}

func (r *memoryRegistry) Orders() repositories.OrderRepository { return r }
func (r *memoryRegistry) Products() repositories.ProductRepository { return r }
func (r *memoryRegistry) Bans() repositories.BanRepository { return r }
func (r *memoryRegistry) DeliveryRates() repositories.DeliveryRateRepository { return r }

func (r *memoryRegistry) Close(context.Context) error {
	r.closed = true
	return nil
}

func (r *memoryRegistry) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.numbers[order.OrderNumber] {
		return pfirestore.Conflict("orders.insert", "taken")
	}
	r.orders[order.ID] = order
	r.numbers[order.OrderNumber] = true
	return nil
}

func (r *memoryRegistry) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, pfirestore.NotFound("orders.get", id)
	}
	return order, nil
}

func (r *memoryRegistry) Mutate(_ context.Context, id string, fn repositories.OrderMutation) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, pfirestore.NotFound("orders.mutate", id)
	}
	if err := fn(&order); err != nil {
		return domain.Order{}, err
	}
	r.orders[id] = order
	return order, nil
}

func (r *memoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return pfirestore.NotFound("orders.delete", id)
	}
	delete(r.orders, id)
	delete(r.numbers, order.OrderNumber)
	return nil
}

func (r *memoryRegistry) OrderNumberExists(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numbers[number], nil
}

func (r *memoryRegistry) FindProduct(_ context.Context, id string) (domain.Product, error) {
	return domain.Product{ID: id, Name: id, Slug: id}, nil
}

func (r *memoryRegistry) IsBanned(context.Context, string) (bool, error) {
	return false, nil
}

func (r *memoryRegistry) FindRates(_ context.Context, destinationID string) (domain.DeliveryRates, error) {
	if destinationID != "16" {
		return domain.DeliveryRates{}, pfirestore.NotFound("deliveryCosts.get", destinationID)
	}
	return domain.DeliveryRates{DestinationID: "16", DomicileCost: 400, StopdeskCost: 250}, nil
}

func testConfig() config.Config {
	return config.Config{
		Environment: "test",
		Firestore:   config.FirestoreConfig{ProjectID: "gayla-test"},
		Cart:        config.CartConfig{StorageKey: "gayla-cart"},
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	_, err := NewContainer(context.Background(), testConfig(), nil)
	assert.Error(t, err)
}

func TestContainerPlacesOrderFromPersistedCart(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry()
	backend := kvstore.NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	container, err := NewContainer(ctx, testConfig(), reg,
		WithLogger(zaptest.NewLogger(t)),
		WithCartBackend(backend),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	cart, err := container.NewCartStore(ctx, "guest-1")
	require.NoError(t, err)
	_, err = cart.AddItem(services.AddCartItemCommand{ProductID: "prod-1", Name: "Tote", UnitPrice: 2000, Quantity: 2})
	require.NoError(t, err)
	_, err = cart.AddItem(services.AddCartItemCommand{ProductID: "prod-2", Name: "Scarf", UnitPrice: 1500})
	require.NoError(t, err)
	require.NoError(t, cart.Close(ctx))

	reopened, err := container.NewCartStore(ctx, "guest-1")
	require.NoError(t, err)
	snapshot := reopened.Snapshot()
	require.Len(t, snapshot.Items, 2)
	assert.Equal(t, int64(5500), reopened.Subtotal())

	other, err := container.NewCartStore(ctx, "guest-2")
	require.NoError(t, err)
	assert.Equal(t, 0, other.ItemCount())
	require.NoError(t, other.Close(ctx))

	cmd, err := container.Services.Checkout.PrepareOrder(ctx, snapshot, services.CheckoutInput{
		Customer: services.Customer{
			Name:        "Amina",
			Phone:       "0550123456",
			Destination: services.Destination{ID: "16", Name: "Alger"},
		},
		DeliveryMode: domain.DeliveryModeDomicile,
	})
	require.NoError(t, err)

	result, err := container.Services.Orders.CreateOrder(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(5900), result.TotalAmount)
	assert.Equal(t, domain.OrderStatusNew, result.Status)

	reopened.Clear()
	require.NoError(t, reopened.Close(ctx))
	_, ok, err := backend.Get(ctx, "gayla-cart:guest-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, container.Close(ctx))
	assert.True(t, reg.closed)
}

func TestContainerRejectsUnknownDestination(t *testing.T) {
	ctx := context.Background()
	container, err := NewContainer(ctx, testConfig(), newMemoryRegistry(), WithCartBackend(kvstore.NewMemoryStore()))
	require.NoError(t, err)
	defer container.Close(ctx)

	_, err = container.Services.Checkout.PrepareOrder(ctx, domain.CartState{
		Items: []domain.CartLineItem{{ID: "cl_1", ProductID: "prod-1", UnitPrice: 100, Quantity: 1}},
	}, services.CheckoutInput{
		Customer:     services.Customer{Name: "A", Phone: "0550", Destination: services.Destination{ID: "99"}},
		DeliveryMode: domain.DeliveryModeStopdesk,
	})
	assert.ErrorIs(t, err, services.ErrDeliveryUnresolved)
}
