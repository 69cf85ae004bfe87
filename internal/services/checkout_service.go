package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/textutil"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrDeliveryUnresolved indicates no delivery price is known for the destination, so no order may be placed.
	ErrDeliveryUnresolved = errors.New("checkout: delivery price unresolved")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Pricing DeliveryPricing
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	pricing DeliveryPricing
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: delivery pricing is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{pricing: deps.Pricing, logger: logger}, nil
}

// PrepareOrder resolves the delivery price for the destination and translates the cart.
func (s *checkoutService) PrepareOrder(ctx context.Context, cart CartState, input CheckoutInput) (CreateOrderCommand, error) {
	destinationID := strings.TrimSpace(input.Customer.Destination.ID)
	if destinationID == "" {
		return CreateOrderCommand{}, fmt.Errorf("%w: destination is required", ErrCheckoutInvalidInput)
	}

	rates, err := s.pricing.FindRates(ctx, destinationID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			switch {
			case repoErr.IsNotFound():
				return CreateOrderCommand{}, fmt.Errorf("%w: destination %s", ErrDeliveryUnresolved, destinationID)
			case repoErr.IsUnavailable():
				return CreateOrderCommand{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
			}
		}
		return CreateOrderCommand{}, fmt.Errorf("checkout: resolve delivery rates: %w", err)
	}

	cmd, err := TranslateCart(cart, input, rates)
	if err != nil {
		return CreateOrderCommand{}, err
	}
	s.logger(ctx, "checkout.prepared", map[string]any{
		"items":        len(cmd.Items),
		"destination":  destinationID,
		"deliveryMode": string(cmd.DeliveryMode),
		"totalAmount":  cmd.TotalAmount,
	})
	return cmd, nil
}

// TranslateCart maps a cart and checkout form into an order placement request. It has no
// side effects. Line totals and the order total use the same formula the order service applies.
func TranslateCart(cart CartState, input CheckoutInput, rates DeliveryRates) (CreateOrderCommand, error) {
	if len(cart.Items) == 0 {
		return CreateOrderCommand{}, fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	}
	customer := normalizeCustomer(input.Customer)
	if customer.Name == "" {
		return CreateOrderCommand{}, fmt.Errorf("%w: customer name is required", ErrCheckoutInvalidInput)
	}
	if customer.Phone == "" {
		return CreateOrderCommand{}, fmt.Errorf("%w: phone is required", ErrCheckoutInvalidInput)
	}
	if !input.DeliveryMode.Valid() {
		return CreateOrderCommand{}, fmt.Errorf("%w: unknown delivery mode %q", ErrCheckoutInvalidInput, input.DeliveryMode)
	}
	if rates.DestinationID != "" && customer.Destination.ID != "" && rates.DestinationID != customer.Destination.ID {
		return CreateOrderCommand{}, fmt.Errorf("%w: rates for %s do not match destination %s", ErrCheckoutInvalidInput, rates.DestinationID, customer.Destination.ID)
	}
	deliveryCost, ok := rates.Cost(input.DeliveryMode)
	if !ok || deliveryCost < 0 {
		return CreateOrderCommand{}, fmt.Errorf("%w: mode %s", ErrDeliveryUnresolved, input.DeliveryMode)
	}

	items := make([]OrderLineItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		item := OrderLineItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Slug:      line.Slug,
			Thumbnail: line.Thumbnail,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal(),
		}
		if len(line.Variants) > 0 {
			item.Variants = line.Variants.Clone()
		}
		items = append(items, item)
	}

	return CreateOrderCommand{
		Customer:     customer,
		DeliveryMode: input.DeliveryMode,
		DeliveryCost: deliveryCost,
		Items:        items,
		TotalAmount:  domain.OrderTotal(items, deliveryCost),
		Notes:        textutil.SanitizeNote(input.Notes),
	}, nil
}

func normalizeCustomer(customer Customer) Customer {
	return Customer{
		Name:  strings.TrimSpace(customer.Name),
		Phone: strings.TrimSpace(customer.Phone),
		Destination: Destination{
			ID:   strings.TrimSpace(customer.Destination.ID),
			Name: strings.TrimSpace(customer.Destination.Name),
		},
		Commune: strings.TrimSpace(customer.Commune),
		Address: strings.TrimSpace(customer.Address),
	}
}
