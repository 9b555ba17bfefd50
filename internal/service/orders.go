package service

import (
	"context"
	"errors"
	"math"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/docstore"
	"github.com/mmeshcher/marketplace-gateway/internal/events"
	"github.com/mmeshcher/marketplace-gateway/internal/model"
	"github.com/mmeshcher/marketplace-gateway/internal/policy"
)

// OrderInput: тело запроса на создание заказа.
// Покупатель всегда берётся из разрешённой личности.
type OrderInput struct {
	Products   []model.LineItem
	TotalPrice float64
	Status     model.OrderStatus
}

// CreateOrder создаёт заказ от имени вызывающего.
// Статус задаётся только при создании: других операций над заказом нет.
func (s *Service) CreateOrder(ctx context.Context, caller model.User, in OrderInput) (*model.Order, error) {
	if len(in.Products) == 0 || in.TotalPrice < 0 || math.IsNaN(in.TotalPrice) || math.IsInf(in.TotalPrice, 0) {
		return nil, apperr.Invalid(s.messages.InvalidOrder)
	}
	items := make([]any, 0, len(in.Products))
	for _, it := range in.Products {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, apperr.Invalid(s.messages.InvalidOrder)
		}
		items = append(items, map[string]any{
			"product_id": it.ProductID,
			"quantity":   it.Quantity,
		})
	}

	if in.Status == "" {
		in.Status = model.OrderStatusPending
	}
	if !in.Status.Valid() {
		return nil, apperr.Invalid(s.messages.InvalidStatus)
	}

	id, err := s.docs.Create(ctx, ordersCollection, docstore.Fields{
		"user_id":     caller.ID,
		"products":    items,
		"total_price": in.TotalPrice,
		"status":      string(in.Status),
		"created_at":  docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, storeError(err)
	}

	created := s.now()
	o := &model.Order{
		ID:         id,
		UserID:     caller.ID,
		Products:   in.Products,
		TotalPrice: in.TotalPrice,
		Status:     in.Status,
		CreatedAt:  &created,
	}

	s.publish(ctx, id, events.OrderCreated, o)
	return o, nil
}

// ListOrders возвращает заказы, видимые вызывающему:
// администратору все, продавцу заказы с его товарами, покупателю его собственные.
func (s *Service) ListOrders(ctx context.Context, caller model.User) ([]model.Order, error) {
	var (
		docs []docstore.Document
		err  error
	)

	scope := policy.ListOrders(caller)
	switch scope {
	case policy.ScopeOwn:
		docs, err = s.docs.Where(ctx, ordersCollection, "user_id", caller.ID)
	default:
		docs, err = s.docs.List(ctx, ordersCollection)
	}
	if err != nil {
		return nil, storeError(err)
	}

	orders := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		o, err := decodeOrder(d)
		if err != nil {
			return nil, storeError(err)
		}

		if scope == policy.ScopeVendorProducts {
			owns, err := s.vendorOwnsAny(ctx, caller.ID, o)
			if err != nil {
				return nil, storeError(err)
			}
			if !owns {
				continue
			}
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// GetOrder возвращает заказ, если вызывающему разрешено его видеть.
func (s *Service) GetOrder(ctx context.Context, caller model.User, id string) (*model.Order, error) {
	doc, err := s.docs.Get(ctx, ordersCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(s.messages.OrderNotFound)
		}
		return nil, storeError(err)
	}

	o, err := decodeOrder(doc)
	if err != nil {
		return nil, storeError(err)
	}

	allowed, err := policy.ViewOrder(caller, o, func() (bool, error) {
		return s.vendorOwnsAny(ctx, caller.ID, o)
	})
	if err != nil {
		return nil, storeError(err)
	}
	if !allowed {
		return nil, apperr.Forbidden(s.messages.OrderForbidden)
	}
	return &o, nil
}

// vendorOwnsAny проверяет, принадлежит ли продавцу хотя бы один товар заказа.
// Товары читаются по одному до первого совпадения; отсутствующие товары пропускаются.
func (s *Service) vendorOwnsAny(ctx context.Context, vendorID string, o model.Order) (bool, error) {
	for _, it := range o.Products {
		if it.ProductID == "" {
			continue
		}
		doc, err := s.docs.Get(ctx, productsCollection, it.ProductID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return false, err
		}
		if owner, _ := doc.Fields["vendor_id"].(string); owner != "" && owner == vendorID {
			return true, nil
		}
	}
	return false, nil
}

func decodeOrder(d docstore.Document) (model.Order, error) {
	var o model.Order
	if err := d.Decode(&o); err != nil {
		return model.Order{}, err
	}
	o.ID = d.ID
	if o.Products == nil {
		o.Products = []model.LineItem{}
	}
	return o, nil
}
