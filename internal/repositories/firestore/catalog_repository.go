package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	pfirestore "github.com/Alae213/gayla-shop-sub001/internal/platform/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/textutil"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
)

const (
	productsCollection      = "products"
	bannedPhonesCollection  = "bannedPhones"
	deliveryRatesCollection = "deliveryCosts"
)

type productDocument struct {
	Name      string `firestore:"name"`
	Slug      string `firestore:"slug"`
	Price     int64  `firestore:"price"`
	Thumbnail string `firestore:"thumbnail,omitempty"`
	Status    string `firestore:"status"`
}

type bannedPhoneDocument struct {
	Phone    string    `firestore:"phone"`
	Reason   string    `firestore:"reason,omitempty"`
	BannedAt time.Time `firestore:"bannedAt"`
}

type deliveryRateDocument struct {
	WilayaName   string `firestore:"wilayaName"`
	DomicileCost int64  `firestore:"domicileCost"`
	StopdeskCost int64  `firestore:"stopdeskCost"`
}

// ProductRepository reads catalog products.
type ProductRepository struct {
	products *pfirestore.Collection[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{products: pfirestore.NewCollection[productDocument](provider, productsCollection)}, nil
}

// FindProduct loads a product by ID.
func (r *ProductRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:        doc.ID,
		Name:      doc.Data.Name,
		Slug:      doc.Data.Slug,
		Price:     doc.Data.Price,
		Thumbnail: doc.Data.Thumbnail,
		Archived:  strings.EqualFold(doc.Data.Status, "archived"),
	}, nil
}

// BanRepository looks up banned phone numbers. Documents are keyed by the normalised phone.
type BanRepository struct {
	bans *pfirestore.Collection[bannedPhoneDocument]
}

var _ repositories.BanRepository = (*BanRepository)(nil)

// NewBanRepository constructs a Firestore-backed ban repository.
func NewBanRepository(provider *pfirestore.Provider) (*BanRepository, error) {
	if provider == nil {
		return nil, errors.New("ban repository requires firestore provider")
	}
	return &BanRepository{bans: pfirestore.NewCollection[bannedPhoneDocument](provider, bannedPhonesCollection)}, nil
}

// IsBanned reports whether the phone is on the ban list.
func (r *BanRepository) IsBanned(ctx context.Context, phone string) (bool, error) {
	key := textutil.NormalizePhone(phone)
	if key == "" {
		return false, nil
	}
	return r.bans.Exists(ctx, key)
}

// Ban adds the phone to the ban list.
func (r *BanRepository) Ban(ctx context.Context, phone, reason string) error {
	key := textutil.NormalizePhone(phone)
	if key == "" {
		return errors.New("phone is required")
	}
	return r.bans.Set(ctx, key, bannedPhoneDocument{
		Phone:    key,
		Reason:   textutil.SanitizeNote(reason),
		BannedAt: time.Now().UTC(),
	})
}

// DeliveryRateRepository reads per-destination delivery pricing.
type DeliveryRateRepository struct {
	rates *pfirestore.Collection[deliveryRateDocument]
}

var _ repositories.DeliveryRateRepository = (*DeliveryRateRepository)(nil)

// NewDeliveryRateRepository constructs a Firestore-backed delivery rate repository.
func NewDeliveryRateRepository(provider *pfirestore.Provider) (*DeliveryRateRepository, error) {
	if provider == nil {
		return nil, errors.New("delivery rate repository requires firestore provider")
	}
	return &DeliveryRateRepository{rates: pfirestore.NewCollection[deliveryRateDocument](provider, deliveryRatesCollection)}, nil
}

// FindRates loads the delivery rates for a destination.
func (r *DeliveryRateRepository) FindRates(ctx context.Context, destinationID string) (domain.DeliveryRates, error) {
	destinationID = strings.TrimSpace(destinationID)
	if destinationID == "" {
		return domain.DeliveryRates{}, errors.New("destination id is required")
	}
	doc, err := r.rates.Get(ctx, destinationID)
	if err != nil {
		return domain.DeliveryRates{}, err
	}
	return domain.DeliveryRates{
		DestinationID: doc.ID,
		DomicileCost:  doc.Data.DomicileCost,
		StopdeskCost:  doc.Data.StopdeskCost,
	}, nil
}

// SetRates upserts the delivery rates for a destination.
func (r *DeliveryRateRepository) SetRates(ctx context.Context, rates domain.DeliveryRates, wilayaName string) error {
	destinationID := strings.TrimSpace(rates.DestinationID)
	if destinationID == "" {
		return errors.New("destination id is required")
	}
	if rates.DomicileCost < 0 || rates.StopdeskCost < 0 {
		return errors.New("delivery costs must not be negative")
	}
	return r.rates.Set(ctx, destinationID, deliveryRateDocument{
		WilayaName:   strings.TrimSpace(wilayaName),
		DomicileCost: rates.DomicileCost,
		StopdeskCost: rates.StopdeskCost,
	})
}
