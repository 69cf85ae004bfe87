package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/observability"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/requestctx"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/textutil"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventCallLogged    = "order.call.logged"

	orderIDPrefix = "ord_"

	// ReasonBannedCustomer is recorded on the first history entry of orders from banned phones.
	ReasonBannedCustomer = "Auto-blocked — banned customer"
	// ReasonNoAnswer is recorded when repeated unanswered calls cancel an order.
	ReasonNoAnswer = "Auto-canceled: No answer after 2 attempts"

	operatorCancelPrefix = "Canceled by operator: "
	noAnswerThreshold    = 2

	metricNamespace = "github.com/Alae213/gayla-shop-sub001/internal/services"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a concurrent write or a duplicate.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates a collaborator is temporarily unavailable.
	ErrOrderUnavailable = errors.New("order: unavailable")
	// ErrProductNotFound indicates an order line references an unknown product.
	ErrProductNotFound = errors.New("order: product not found")
	// ErrOrderNumberExhausted indicates no unique order number was found within the attempt budget.
	ErrOrderNumberExhausted = errors.New("order: could not allocate a unique order number")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Bans     repositories.BanRepository
	Events   OrderEventPublisher

	Clock        func() time.Time
	IDGenerator  func() string
	RandomSuffix func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
	Meter        metric.Meter
}

type orderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	bans     repositories.BanRepository
	events   OrderEventPublisher

	clock        func() time.Time
	newID        func() string
	randomSuffix func() string
	logger       func(context.Context, string, map[string]any)

	autoCanceled metric.Int64Counter
	collisions   metric.Int64Counter
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Bans == nil {
		return nil, errors.New("order service: ban repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	suffix := deps.RandomSuffix
	if suffix == nil {
		suffix = randomOrderSuffix
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	autoCanceled, err := meter.Int64Counter(
		"orders.auto_canceled",
		metric.WithDescription("Orders canceled automatically after a call outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("order service: register auto cancel metric: %w", err)
	}
	collisions, err := meter.Int64Counter(
		"orders.number_collisions",
		metric.WithDescription("Order number candidates rejected because they were already taken"),
	)
	if err != nil {
		return nil, fmt.Errorf("order service: register collision metric: %w", err)
	}

	return &orderService{
		orders:   deps.Orders,
		products: deps.Products,
		bans:     deps.Bans,
		events:   deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:        idGen,
		randomSuffix: suffix,
		logger:       logger,
		autoCanceled: autoCanceled,
		collisions:   collisions,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (result CreateOrderResult, err error) {
	ctx, span := observability.StartSpan(ctx, "orders.create")
	defer func() { observability.EndSpan(span, err) }()

	customer, items, err := validateCreateOrder(cmd)
	if err != nil {
		return CreateOrderResult{}, err
	}

	items, err = s.resolveProducts(ctx, items)
	if err != nil {
		return CreateOrderResult{}, err
	}

	banned, err := s.bans.IsBanned(ctx, textutil.NormalizePhone(customer.Phone))
	if err != nil {
		return CreateOrderResult{}, s.mapRepositoryError(err)
	}

	for i := range items {
		items[i].LineTotal = items[i].UnitPrice * int64(items[i].Quantity)
	}
	total := domain.OrderTotal(items, cmd.DeliveryCost)
	if cmd.TotalAmount != 0 && cmd.TotalAmount != total {
		s.logger(ctx, "order.total_mismatch", map[string]any{
			"submitted":  cmd.TotalAmount,
			"recomputed": total,
		})
	}

	status := domain.OrderStatusNew
	reason := ""
	if banned {
		status = domain.OrderStatusBlocked
		reason = ReasonBannedCustomer
	}

	now := s.now()
	order := Order{
		ID:            s.nextOrderID(),
		Customer:      customer,
		DeliveryMode:  cmd.DeliveryMode,
		DeliveryCost:  cmd.DeliveryCost,
		Items:         items,
		TotalAmount:   total,
		Status:        status,
		StatusHistory: []StatusHistoryEntry{{Status: status, Timestamp: now, Reason: reason}},
		CallLog:       []CallLogEntry{},
		CallAttempts:  0,
		IsBanned:      banned,
		Notes:         textutil.SanitizeNote(cmd.Notes),
		CreatedAt:     now,
		LastUpdated:   now,
	}

	if err := s.insertWithUniqueNumber(ctx, &order); err != nil {
		return CreateOrderResult{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
	)
	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"status":      string(order.Status),
		"totalAmount": order.TotalAmount,
		"phone":       observability.MaskPhone(customer.Phone),
		"banned":      banned,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		Reason:        reason,
		OccurredAt:    now,
	})

	return CreateOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (updated Order, err error) {
	ctx, span := observability.StartSpan(ctx, "orders.update_status",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.status", string(cmd.Status)),
	)
	defer func() { observability.EndSpan(span, err) }()

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	reason := textutil.SanitizeNote(cmd.Reason)
	now := s.now()

	var previous OrderStatus
	updated, err = s.orders.Mutate(ctx, orderID, func(order *Order) error {
		previous = order.Status
		applyStatusChange(order, cmd.Status, reason, now)
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	actor := actorFor(ctx, cmd.ActorID)
	s.logger(ctx, "order.status_updated", map[string]any{
		"orderId": updated.ID,
		"from":    string(previous),
		"to":      string(updated.Status),
		"actor":   actor,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: string(previous),
		CurrentStatus:  string(updated.Status),
		Reason:         reason,
		ActorID:        actor,
		OccurredAt:     now,
	})
	return updated, nil
}

func (s *orderService) LogCallOutcome(ctx context.Context, cmd LogCallOutcomeCommand) (result CallOutcomeResult, err error) {
	ctx, span := observability.StartSpan(ctx, "orders.log_call",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("call.outcome", string(cmd.Outcome)),
	)
	defer func() { observability.EndSpan(span, err) }()

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return CallOutcomeResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Outcome.Valid() {
		return CallOutcomeResult{}, fmt.Errorf("%w: unknown call outcome %q", ErrOrderInvalidInput, cmd.Outcome)
	}
	note := textutil.SanitizeNote(cmd.Note)
	now := s.now()

	var (
		previous     OrderStatus
		autoCanceled bool
		reason       string
	)
	updated, err := s.orders.Mutate(ctx, orderID, func(order *Order) error {
		previous = order.Status
		order.CallLog = append(order.CallLog, CallLogEntry{Timestamp: now, Outcome: cmd.Outcome, Note: note})
		order.CallAttempts++
		order.LastUpdated = now

		autoCanceled, reason = evaluateCallPolicy(*order, cmd.Outcome)
		if autoCanceled {
			applyStatusChange(order, domain.OrderStatusCanceled, reason, now)
		}
		return nil
	})
	if err != nil {
		return CallOutcomeResult{}, s.mapRepositoryError(err)
	}

	actor := actorFor(ctx, cmd.ActorID)
	s.logger(ctx, "order.call_logged", map[string]any{
		"orderId":      updated.ID,
		"outcome":      string(cmd.Outcome),
		"attempts":     updated.CallAttempts,
		"autoCanceled": autoCanceled,
		"actor":        actor,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCallLogged,
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		CurrentStatus: string(updated.Status),
		CallOutcome:   string(cmd.Outcome),
		ActorID:       actor,
		OccurredAt:    now,
	})

	if autoCanceled {
		span.SetAttributes(attribute.Bool("order.auto_canceled", true))
		s.autoCanceled.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(cmd.Outcome))))
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			OrderNumber:    updated.OrderNumber,
			PreviousStatus: string(previous),
			CurrentStatus:  string(updated.Status),
			Reason:         reason,
			ActorID:        actor,
			OccurredAt:     now,
		})
	}

	return CallOutcomeResult{Order: updated, AutoCanceled: autoCanceled, Reason: reason}, nil
}

func (s *orderService) RemoveOrder(ctx context.Context, orderID string) (err error) {
	ctx, span := observability.StartSpan(ctx, "orders.remove", attribute.String("order.id", orderID))
	defer func() { observability.EndSpan(span, err) }()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.mapRepositoryError(err)
	}
	s.logger(ctx, "order.removed", map[string]any{
		"orderId": orderID,
		"actor":   requestctx.Actor(ctx),
	})
	return nil
}

// evaluateCallPolicy decides whether the call just appended to order cancels it.
// Canceled and blocked orders are never touched by the policies.
func evaluateCallPolicy(order Order, outcome CallOutcome) (bool, string) {
	if order.Status.Terminal() {
		return false, ""
	}
	if outcome == domain.CallOutcomeAnswered {
		return false, ""
	}
	// The no-answer rule wins over the refusal rule, counting the whole log.
	if order.NoAnswerCount() >= noAnswerThreshold {
		return true, ReasonNoAnswer
	}
	switch outcome {
	case domain.CallOutcomeWrongNumber, domain.CallOutcomeRefused:
		return true, operatorCancelPrefix + string(outcome)
	}
	return false, ""
}

// applyStatusChange appends one history entry and moves the order to status.
func applyStatusChange(order *Order, status OrderStatus, reason string, now time.Time) {
	order.StatusHistory = append(order.StatusHistory, StatusHistoryEntry{
		Status:    status,
		Timestamp: now,
		Reason:    reason,
	})
	order.Status = status
	order.LastUpdated = now
	if status == domain.OrderStatusCanceled {
		order.CancelReason = reason
	}
}

func (s *orderService) insertWithUniqueNumber(ctx context.Context, order *Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		candidate := formatOrderNumber(s.now(), s.randomSuffix())

		taken, err := s.orders.OrderNumberExists(ctx, candidate)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if taken {
			s.recordCollision(ctx, candidate, attempt)
			continue
		}

		order.OrderNumber = candidate
		err = s.orders.Insert(ctx, *order)
		if err == nil {
			return nil
		}
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			s.recordCollision(ctx, candidate, attempt)
			continue
		}
		return s.mapRepositoryError(err)
	}
	order.OrderNumber = ""
	return fmt.Errorf("%w: %d attempts", ErrOrderNumberExhausted, maxOrderNumberAttempts)
}

func (s *orderService) recordCollision(ctx context.Context, candidate string, attempt int) {
	s.collisions.Add(ctx, 1)
	s.logger(ctx, "order.number_collision", map[string]any{
		"candidate": candidate,
		"attempt":   attempt,
	})
}

func (s *orderService) resolveProducts(ctx context.Context, items []OrderLineItem) ([]OrderLineItem, error) {
	cache := make(map[string]domain.Product, len(items))
	for i := range items {
		productID := items[i].ProductID
		product, ok := cache[productID]
		if !ok {
			found, err := s.products.FindProduct(ctx, productID)
			if err != nil {
				var repoErr repositories.RepositoryError
				if errors.As(err, &repoErr) && repoErr.IsNotFound() {
					return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
				}
				return nil, s.mapRepositoryError(err)
			}
			if found.Archived {
				return nil, fmt.Errorf("%w: %s is archived", ErrProductNotFound, productID)
			}
			product = found
			cache[productID] = product
		}
		if items[i].Name == "" {
			items[i].Name = product.Name
		}
		if items[i].Slug == "" {
			items[i].Slug = product.Slug
		}
		if items[i].Thumbnail == "" {
			items[i].Thumbnail = product.Thumbnail
		}
	}
	return items, nil
}

func validateCreateOrder(cmd CreateOrderCommand) (Customer, []OrderLineItem, error) {
	customer := normalizeCustomer(cmd.Customer)
	switch {
	case customer.Name == "":
		return Customer{}, nil, fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	case customer.Phone == "":
		return Customer{}, nil, fmt.Errorf("%w: phone is required", ErrOrderInvalidInput)
	case textutil.NormalizePhone(customer.Phone) == "":
		return Customer{}, nil, fmt.Errorf("%w: phone has no digits", ErrOrderInvalidInput)
	case !cmd.DeliveryMode.Valid():
		return Customer{}, nil, fmt.Errorf("%w: unknown delivery mode %q", ErrOrderInvalidInput, cmd.DeliveryMode)
	case cmd.DeliveryCost < 0:
		return Customer{}, nil, fmt.Errorf("%w: delivery cost must not be negative", ErrOrderInvalidInput)
	case len(cmd.Items) == 0:
		return Customer{}, nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}

	items := make([]OrderLineItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			return Customer{}, nil, fmt.Errorf("%w: item %d product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return Customer{}, nil, fmt.Errorf("%w: item %d quantity must be at least 1", ErrOrderInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return Customer{}, nil, fmt.Errorf("%w: item %d unit price must not be negative", ErrOrderInvalidInput, i)
		}
		item.Variants = domain.VariantSelection(textutil.NormalizeSelection(item.Variants))
		items = append(items, item)
	}
	return customer, items, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrOrderInvalidInput) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func actorFor(ctx context.Context, explicit string) string {
	if actor := strings.TrimSpace(explicit); actor != "" {
		return actor
	}
	return requestctx.Actor(ctx)
}
