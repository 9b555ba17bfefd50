// Package main запускает HTTP-сервер API-шлюза маркетплейса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/marketplace-gateway/internal/blobstore"
	"github.com/mmeshcher/marketplace-gateway/internal/config"
	"github.com/mmeshcher/marketplace-gateway/internal/docstore"
	"github.com/mmeshcher/marketplace-gateway/internal/events"
	"github.com/mmeshcher/marketplace-gateway/internal/handler"
	"github.com/mmeshcher/marketplace-gateway/internal/identity"
	"github.com/mmeshcher/marketplace-gateway/internal/metrics"
	"github.com/mmeshcher/marketplace-gateway/internal/service"
	"github.com/mmeshcher/marketplace-gateway/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		sugar.Fatalw("tracer initialization error", "error", err.Error())
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	docs, err := openDocumentStore(cfg, sugar)
	if err != nil {
		sugar.Fatalw("document store initialization error", "error", err.Error())
	}

	blobs, err := openBlobStore(cfg, sugar)
	if err != nil {
		sugar.Fatalw("blob store initialization error", "error", err.Error())
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sugar.Infow("publishing domain events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	ident := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityWebAPIKey)
	if !ident.Configured() {
		sugar.Warn("identity web API key is not set, login and authenticated routes will fail")
	}

	m := metrics.New()

	svc := service.NewService(docs, blobs, ident,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithPublisher(publisher),
		service.WithMessages(service.MessagesFor(cfg.MessagesLocale)),
		service.WithBlobFolder(cfg.BlobFolder),
	)
	defer svc.Close()

	h := handler.NewHandler(svc, logger, m, cfg.MaxUploadBytes)

	var r http.Handler = h.SetupRouter()
	if cfg.OTLPEndpoint != "" {
		r = telemetry.Handler(r, cfg.ServiceName)
	}

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting marketplace gateway", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func openDocumentStore(cfg *config.Config, sugar *zap.SugaredLogger) (docstore.Store, error) {
	switch {
	case cfg.DatabaseURI != "":
		sugar.Info("using postgres document store")
		return docstore.NewPostgresStore(cfg.DatabaseURI)
	case cfg.MongoURI != "":
		sugar.Infow("using mongodb document store", "database", cfg.MongoDatabase)
		return docstore.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
	default:
		sugar.Warn("no document store configured, using in-memory store; data is lost on restart")
		return docstore.NewMemoryStore(), nil
	}
}

func openBlobStore(cfg *config.Config, sugar *zap.SugaredLogger) (blobstore.Store, error) {
	if !cfg.BlobStoreConfigured() {
		sugar.Warn("cloudinary is not configured, using in-memory blob store")
		return blobstore.NewMemoryStore(), nil
	}
	return blobstore.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
}
