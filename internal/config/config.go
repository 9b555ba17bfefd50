// Package config содержит логику чтения конфигурации API-шлюза маркетплейса.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации API-шлюза.
type Config struct {
	RunAddress string `env:"RUN_ADDRESS"`

	DatabaseURI     string `env:"DATABASE_URI"`
	DatabaseURIFile string `env:"DATABASE_URI_FILE"`
	MongoURI        string `env:"MONGO_URI"`
	MongoDatabase   string `env:"MONGO_DATABASE" envDefault:"marketplace"`

	IdentityWebAPIKey string `env:"IDENTITY_WEB_API_KEY"`
	IdentityBaseURL   string `env:"IDENTITY_BASE_URL"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	BlobFolder          string `env:"BLOB_FOLDER" envDefault:"marketplace/products"`
	MaxUploadBytes      int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"marketplace.events"`

	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"marketplace-gateway"`
	MessagesLocale string `env:"MESSAGES_LOCALE" envDefault:"en"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMongoURI := cfg.MongoURI
	envAPIKey := cfg.IdentityWebAPIKey

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "postgres document store URI")
	flag.StringVar(&cfg.MongoURI, "m", "", "mongodb document store URI")
	flag.StringVar(&cfg.IdentityWebAPIKey, "k", "", "identity provider web API key")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMongoURI != "" {
		cfg.MongoURI = envMongoURI
	}
	if envAPIKey != "" {
		cfg.IdentityWebAPIKey = envAPIKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.DatabaseURI == "" && cfg.DatabaseURIFile != "" {
		raw, err := os.ReadFile(cfg.DatabaseURIFile)
		if err != nil {
			return nil, fmt.Errorf("read database credentials: %w", err)
		}
		cfg.DatabaseURI = strings.TrimSpace(string(raw))
	}

	return cfg, nil
}

// BlobStoreConfigured сообщает, заданы ли реквизиты облачного хранилища изображений.
func (c *Config) BlobStoreConfigured() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
