package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/Alae213/gayla-shop-sub001/internal/platform/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
)

// Registry groups the Firestore repositories around one shared provider.
type Registry struct {
	provider      *pfirestore.Provider
	orders        *OrderRepository
	products      *ProductRepository
	bans          *BanRepository
	deliveryRates *DeliveryRateRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every Firestore repository on top of provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	bans, err := NewBanRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build ban repository: %w", err)
	}
	rates, err := NewDeliveryRateRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build delivery rate repository: %w", err)
	}
	return &Registry{
		provider:      provider,
		orders:        orders,
		products:      products,
		bans:          bans,
		deliveryRates: rates,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Bans() repositories.BanRepository { return r.bans }

func (r *Registry) DeliveryRates() repositories.DeliveryRateRepository { return r.deliveryRates }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
