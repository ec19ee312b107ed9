package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/repo/memory"
	repopg "github.com/tendant/simple-filestore/pkg/filestore/repo/postgres"
	"github.com/tendant/simple-filestore/pkg/filestore/search/elastic"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:          "8080",
		Environment:   "development",
		DatabaseType:  "memory",
		SearchIndex:   elastic.DefaultIndexName,
		SearchTimeout: filestore.DefaultSearchTimeout,
		MaxUploadSize: filestore.DefaultMaxUploadSize,
	}
}

// ServerConfig represents server configuration for the simple-filestore
// service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Search index configuration. The index is optional: with
	// SearchEnabled false, queries go straight to the repository.
	SearchEnabled bool
	SearchAddress string
	SearchIndex   string
	SearchTimeout time.Duration

	// Upload policy
	MaxUploadSize int64
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.SearchEnabled && c.SearchAddress == "" {
		return errors.New("search address is required when the search index is enabled")
	}

	if c.MaxUploadSize <= 0 {
		return errors.New("max upload size must be positive")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (filestore.Service, error) {
	var options []filestore.Option

	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options,
		filestore.WithRepository(repo),
		filestore.WithMaxUploadSize(c.MaxUploadSize),
		filestore.WithSearchTimeout(c.SearchTimeout))

	if c.SearchEnabled {
		index, err := elastic.New(elastic.Config{
			Addresses: []string{c.SearchAddress},
			IndexName: c.SearchIndex,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build search index: %w", err)
		}
		options = append(options, filestore.WithSearchIndex(index))
	}

	return filestore.New(options...)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (filestore.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}
