package service

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/blobstore"
	"github.com/mmeshcher/marketplace-gateway/internal/docstore"
	"github.com/mmeshcher/marketplace-gateway/internal/events"
	"github.com/mmeshcher/marketplace-gateway/internal/metrics"
	"github.com/mmeshcher/marketplace-gateway/internal/model"
	"github.com/mmeshcher/marketplace-gateway/internal/policy"
)

// Image: загружаемое изображение товара.
type Image struct {
	Filename string
	Content  io.Reader
}

// ProductInput: поля товара из формы.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	Barcode     *string
	Image       *Image
}

// ProductUpdate: поля обновления товара.
type ProductUpdate struct {
	ProductInput
	DeleteImage bool
}

func (in ProductInput) valid() bool {
	return strings.TrimSpace(in.Name) != "" &&
		in.Price >= 0 && !math.IsNaN(in.Price) && !math.IsInf(in.Price, 0) &&
		in.Stock >= 0
}

// ListProducts возвращает все товары.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	docs, err := s.docs.List(ctx, productsCollection)
	if err != nil {
		return nil, storeError(err)
	}

	products := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		p, err := decodeProduct(d)
		if err != nil {
			return nil, storeError(err)
		}
		products = append(products, p)
	}
	return products, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) getProduct(ctx context.Context, id string) (model.Product, error) {
	doc, err := s.docs.Get(ctx, productsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return model.Product{}, apperr.NotFound(s.messages.ProductNotFound)
		}
		return model.Product{}, storeError(err)
	}

	p, err := decodeProduct(doc)
	if err != nil {
		return model.Product{}, storeError(err)
	}
	return p, nil
}

// CreateProduct создаёт товар от имени продавца или администратора.
// Изображение загружается до записи документа, владельцем становится вызывающий.
func (s *Service) CreateProduct(ctx context.Context, caller model.User, in ProductInput) (*model.Product, error) {
	if !policy.CreateProduct(caller) {
		return nil, apperr.Forbidden(s.messages.VendorsOnly)
	}
	if !in.valid() {
		return nil, apperr.Invalid(s.messages.InvalidProduct)
	}

	var imageURL *string
	if in.Image != nil {
		u, err := s.uploadImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		imageURL = &u
	}

	id, err := s.docs.Create(ctx, productsCollection, docstore.Fields{
		"name":        in.Name,
		"description": in.Description,
		"price":       in.Price,
		"stock":       in.Stock,
		"image_url":   optional(imageURL),
		"vendor_id":   caller.ID,
		"barcode":     optional(in.Barcode),
		"created_at":  docstore.ServerTimestamp,
	})
	if err != nil {
		if imageURL != nil {
			s.discardImage(ctx, *imageURL, "")
		}
		return nil, storeError(err)
	}

	created := s.now()
	p := &model.Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    imageURL,
		VendorID:    caller.ID,
		Barcode:     in.Barcode,
		CreatedAt:   &created,
	}

	s.publish(ctx, id, events.ProductCreated, p)
	return p, nil
}

// UpdateProduct обновляет товар. Разрешено владельцу и администратору.
//
// Новое изображение загружается раньше, чем удаляется прежнее: при сбое загрузки
// документ и прежнее изображение не меняются. Удаление прежнего изображения
// выполняется до записи документа и не прерывает запрос при сбое.
func (s *Service) UpdateProduct(ctx context.Context, caller model.User, id string, in ProductUpdate) (*model.Product, error) {
	current, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.ModifyProduct(caller, current) {
		return nil, apperr.Forbidden(s.messages.UpdateForeign)
	}
	if !in.valid() {
		return nil, apperr.Invalid(s.messages.InvalidProduct)
	}

	imageURL := current.ImageURL
	var uploaded *string

	if in.Image != nil {
		u, err := s.uploadImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		uploaded = &u
	}

	if (in.Image != nil || in.DeleteImage) && current.ImageURL != nil {
		s.discardImage(ctx, *current.ImageURL, id)
	}

	switch {
	case uploaded != nil:
		imageURL = uploaded
	case in.DeleteImage:
		imageURL = nil
	}

	err = s.docs.Update(ctx, productsCollection, id, docstore.Fields{
		"name":        in.Name,
		"description": in.Description,
		"price":       in.Price,
		"stock":       in.Stock,
		"image_url":   optional(imageURL),
		"barcode":     optional(in.Barcode),
	})
	if err != nil {
		if uploaded != nil {
			s.discardImage(ctx, *uploaded, id)
		}
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(s.messages.ProductNotFound)
		}
		return nil, storeError(err)
	}

	p := &model.Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    imageURL,
		VendorID:    current.VendorID,
		Barcode:     in.Barcode,
	}

	s.publish(ctx, id, events.ProductUpdated, p)
	return p, nil
}

// DeleteProduct удаляет товар и его изображение. Разрешено владельцу и администратору.
func (s *Service) DeleteProduct(ctx context.Context, caller model.User, id string) error {
	current, err := s.getProduct(ctx, id)
	if err != nil {
		return err
	}
	if !policy.ModifyProduct(caller, current) {
		return apperr.Forbidden(s.messages.DeleteForeign)
	}

	if current.ImageURL != nil {
		s.discardImage(ctx, *current.ImageURL, id)
	}

	if err := s.docs.Delete(ctx, productsCollection, id); err != nil {
		return storeError(err)
	}

	s.publish(ctx, id, events.ProductDeleted, map[string]string{"id": id, "vendor_id": current.VendorID})
	return nil
}

func (s *Service) uploadImage(ctx context.Context, img *Image) (string, error) {
	publicID := blobstore.NewPublicID(s.blobFolder, s.now())

	u, err := s.blobs.Upload(ctx, publicID, img.Content)
	if err != nil {
		s.metrics.BlobOperation("upload", metrics.ResultFailure)
		return "", apperr.Internal(s.messages.ImageUploadFailed, err)
	}

	s.metrics.BlobOperation("upload", metrics.ResultSuccess)
	return u, nil
}

// discardImage удаляет изображение без прерывания запроса: сбой пишется в лог и метрику.
func (s *Service) discardImage(ctx context.Context, url, productID string) {
	err := s.blobs.Delete(ctx, url)
	switch {
	case err == nil:
		s.metrics.BlobOperation("delete", metrics.ResultSuccess)
	case errors.Is(err, blobstore.ErrNotManaged):
		s.metrics.BlobOperation("delete", metrics.ResultSkipped)
		s.logger.Info("image is not managed by blob store, skipping delete",
			zap.String("url", url),
			zap.String("product_id", productID),
		)
	default:
		s.metrics.BlobOperation("delete", metrics.ResultFailure)
		s.logger.Warn("image delete failed, blob may be orphaned",
			zap.String("url", url),
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

func decodeProduct(d docstore.Document) (model.Product, error) {
	var p model.Product
	if err := d.Decode(&p); err != nil {
		return model.Product{}, err
	}
	p.ID = d.ID
	return p, nil
}

func optional(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
