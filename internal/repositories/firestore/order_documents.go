package firestore

import (
	"time"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
)

type orderDocument struct {
	OrderNumber   string                 `firestore:"orderNumber"`
	Customer      customerDocument       `firestore:"customer"`
	DeliveryMode  string                 `firestore:"deliveryType"`
	DeliveryCost  int64                  `firestore:"deliveryCost"`
	Items         []orderItemDocument    `firestore:"lineItems"`
	TotalAmount   int64                  `firestore:"totalAmount"`
	Status        string                 `firestore:"status"`
	StatusHistory []statusEntryDocument  `firestore:"statusHistory"`
	CallLog       []callLogEntryDocument `firestore:"callLog"`
	CallAttempts  int                    `firestore:"callAttempts"`
	IsBanned      bool                   `firestore:"isBanned"`
	CancelReason  string                 `firestore:"cancelReason,omitempty"`
	Notes         string                 `firestore:"notes,omitempty"`
	CreatedAt     time.Time              `firestore:"createdAt"`
	LastUpdated   time.Time              `firestore:"lastUpdated"`
}

type customerDocument struct {
	Name            string `firestore:"name"`
	Phone           string `firestore:"phone"`
	DestinationID   string `firestore:"wilayaId"`
	DestinationName string `firestore:"wilayaName"`
	Commune         string `firestore:"commune"`
	Address         string `firestore:"address,omitempty"`
}

type orderItemDocument struct {
	ProductID string            `firestore:"productId"`
	Name      string            `firestore:"productName"`
	Slug      string            `firestore:"productSlug,omitempty"`
	Thumbnail string            `firestore:"thumbnail,omitempty"`
	Quantity  int               `firestore:"quantity"`
	UnitPrice int64             `firestore:"unitPrice"`
	Variants  map[string]string `firestore:"variants,omitempty"`
	LineTotal int64             `firestore:"lineTotal"`
}

type statusEntryDocument struct {
	Status    string    `firestore:"status"`
	Timestamp time.Time `firestore:"timestamp"`
	Reason    string    `firestore:"reason,omitempty"`
}

type callLogEntryDocument struct {
	Timestamp time.Time `firestore:"timestamp"`
	Outcome   string    `firestore:"outcome"`
	Note      string    `firestore:"note,omitempty"`
}

type orderNumberDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		Customer: customerDocument{
			Name:            order.Customer.Name,
			Phone:           order.Customer.Phone,
			DestinationID:   order.Customer.Destination.ID,
			DestinationName: order.Customer.Destination.Name,
			Commune:         order.Customer.Commune,
			Address:         order.Customer.Address,
		},
		DeliveryMode:  string(order.DeliveryMode),
		DeliveryCost:  order.DeliveryCost,
		Items:         make([]orderItemDocument, 0, len(order.Items)),
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		StatusHistory: make([]statusEntryDocument, 0, len(order.StatusHistory)),
		CallLog:       make([]callLogEntryDocument, 0, len(order.CallLog)),
		CallAttempts:  order.CallAttempts,
		IsBanned:      order.IsBanned,
		CancelReason:  order.CancelReason,
		Notes:         order.Notes,
		CreatedAt:     order.CreatedAt.UTC(),
		LastUpdated:   order.LastUpdated.UTC(),
	}
	for _, item := range order.Items {
		var variants map[string]string
		if len(item.Variants) > 0 {
			variants = item.Variants.Clone()
		}
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Slug:      item.Slug,
			Thumbnail: item.Thumbnail,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Variants:  variants,
			LineTotal: item.LineTotal,
		})
	}
	for _, entry := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusEntryDocument{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
			Reason:    entry.Reason,
		})
	}
	for _, entry := range order.CallLog {
		doc.CallLog = append(doc.CallLog, callLogEntryDocument{
			Timestamp: entry.Timestamp.UTC(),
			Outcome:   string(entry.Outcome),
			Note:      entry.Note,
		})
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		Customer: domain.Customer{
			Name:        doc.Customer.Name,
			Phone:       doc.Customer.Phone,
			Destination: domain.Destination{ID: doc.Customer.DestinationID, Name: doc.Customer.DestinationName},
			Commune:     doc.Customer.Commune,
			Address:     doc.Customer.Address,
		},
		DeliveryMode:  domain.DeliveryMode(doc.DeliveryMode),
		DeliveryCost:  doc.DeliveryCost,
		Items:         make([]domain.OrderLineItem, 0, len(doc.Items)),
		TotalAmount:   doc.TotalAmount,
		Status:        domain.OrderStatus(doc.Status),
		StatusHistory: make([]domain.StatusHistoryEntry, 0, len(doc.StatusHistory)),
		CallLog:       make([]domain.CallLogEntry, 0, len(doc.CallLog)),
		CallAttempts:  doc.CallAttempts,
		IsBanned:      doc.IsBanned,
		CancelReason:  doc.CancelReason,
		Notes:         doc.Notes,
		CreatedAt:     doc.CreatedAt.UTC(),
		LastUpdated:   doc.LastUpdated.UTC(),
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Slug:      item.Slug,
			Thumbnail: item.Thumbnail,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Variants:  domain.VariantSelection(item.Variants).Clone(),
			LineTotal: item.LineTotal,
		})
	}
	for _, entry := range doc.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
			Status:    domain.OrderStatus(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
			Reason:    entry.Reason,
		})
	}
	for _, entry := range doc.CallLog {
		order.CallLog = append(order.CallLog, domain.CallLogEntry{
			Timestamp: entry.Timestamp.UTC(),
			Outcome:   domain.CallOutcome(entry.Outcome),
			Note:      entry.Note,
		})
	}
	return order
}
