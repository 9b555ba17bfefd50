// Package service реализует бизнес-логику API-шлюза маркетплейса:
// разрешение личности, правила доступа к ресурсам и согласование
// изображений с документами товаров.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/blobstore"
	"github.com/mmeshcher/marketplace-gateway/internal/docstore"
	"github.com/mmeshcher/marketplace-gateway/internal/events"
	"github.com/mmeshcher/marketplace-gateway/internal/identity"
	"github.com/mmeshcher/marketplace-gateway/internal/metrics"
)

// Имена коллекций документного хранилища.
const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
)

// DefaultBlobFolder: папка для изображений товаров по умолчанию.
const DefaultBlobFolder = "marketplace/products"

// Identity описывает контракт провайдера учётных записей, используемый сервисом.
type Identity interface {
	SignUp(ctx context.Context, email, password, displayName string) (*identity.Account, error)
	SignIn(ctx context.Context, email, password string) (*identity.Account, error)
	Verify(ctx context.Context, idToken string) (*identity.Account, error)
}

// Service содержит бизнес-логику API-шлюза.
type Service struct {
	docs     docstore.Store
	blobs    blobstore.Store
	identity Identity

	publisher  events.Publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	messages   Messages
	blobFolder string
	now        func() time.Time
}

// Option настраивает сервис.
type Option func(*Service)

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher задаёт публикатор доменных событий.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMessages задаёт каталог сообщений об ошибках.
func WithMessages(m Messages) Option {
	return func(s *Service) { s.messages = m }
}

// WithBlobFolder задаёт папку для загружаемых изображений.
func WithBlobFolder(folder string) Option {
	return func(s *Service) {
		if folder != "" {
			s.blobFolder = folder
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт сервис поверх документного хранилища, хранилища изображений
// и провайдера учётных записей.
func NewService(docs docstore.Store, blobs blobstore.Store, ident Identity, opts ...Option) *Service {
	s := &Service{
		docs:       docs,
		blobs:      blobs,
		identity:   ident,
		publisher:  events.Nop{},
		logger:     zap.NewNop(),
		messages:   English,
		blobFolder: DefaultBlobFolder,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.docs != nil {
		errs = append(errs, s.docs.Close())
	}
	return errors.Join(errs...)
}

// publish отправляет доменное событие. Сбой публикации не влияет на результат запроса.
func (s *Service) publish(ctx context.Context, key, eventType string, payload any) {
	if err := s.publisher.Publish(ctx, key, events.New(eventType, payload)); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func storeError(err error) error {
	return apperr.Internal("document store error", err)
}
