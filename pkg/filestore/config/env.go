package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the environment surface. Search variables keep the
// names the deployment already uses for its Elasticsearch sidecar.
type envConfig struct {
	Port        string `env:"PORT" env-default:""`
	Environment string `env:"ENVIRONMENT" env-default:""`

	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	UseElasticsearch  bool   `env:"USE_ELASTICSEARCH" env-default:"false"`
	ElasticsearchHost string `env:"ELASTICSEARCH_HOST" env-default:"localhost"`
	ElasticsearchPort uint16 `env:"ELASTICSEARCH_PORT" env-default:"9200"`
	ElasticsearchIdx  string `env:"ELASTICSEARCH_INDEX" env-default:""`
	SearchTimeoutSecs int    `env:"SEARCH_TIMEOUT_SECONDS" env-default:"0"`

	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" env-default:"0"`
}

// WithEnv applies environment variable overrides.
//
//	PORT, ENVIRONMENT - server basics
//	DATABASE_URL - "memory" (default) or a postgres:// connection string
//	USE_ELASTICSEARCH - enable the search index
//	ELASTICSEARCH_HOST, ELASTICSEARCH_PORT, ELASTICSEARCH_INDEX
//	SEARCH_TIMEOUT_SECONDS - per-call bound on index operations
//	MAX_UPLOAD_SIZE - upload limit in bytes
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var ec envConfig
		if err := cleanenv.ReadEnv(&ec); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if ec.Port != "" {
			c.Port = ec.Port
		}
		if ec.Environment != "" {
			c.Environment = ec.Environment
		}

		if err := applyDatabaseEnv(ec.DatabaseURL, c); err != nil {
			return err
		}

		c.SearchEnabled = ec.UseElasticsearch
		if ec.UseElasticsearch {
			c.SearchAddress = fmt.Sprintf("http://%s:%d", ec.ElasticsearchHost, ec.ElasticsearchPort)
		}
		if ec.ElasticsearchIdx != "" {
			c.SearchIndex = ec.ElasticsearchIdx
		}
		if ec.SearchTimeoutSecs > 0 {
			c.SearchTimeout = time.Duration(ec.SearchTimeoutSecs) * time.Second
		}

		if ec.MaxUploadSize > 0 {
			c.MaxUploadSize = ec.MaxUploadSize
		}

		return nil
	}
}

// applyDatabaseEnv applies database configuration from DATABASE_URL
func applyDatabaseEnv(dbURL string, c *ServerConfig) error {
	if dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}
