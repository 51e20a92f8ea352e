// Package mongodb owns the shared Mongo connection pool used by every
// repository in the API and the inbound processor.
package mongodb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const maxBackoff = 16 * time.Second

type Config struct {
	URI         string
	Database    string
	AppName     string // reported to the server, shows up in currentOp and logs
	MaxPoolSize uint64
	MinPoolSize uint64
	MaxRetries  int
	TLSCAFile   string
}

func (c *Config) applyDefaults() {
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.MinPoolSize == 0 {
		c.MinPoolSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
}

func (c Config) validate() error {
	switch {
	case c.URI == "":
		return errors.New("MongoDB URI cannot be empty")
	case c.Database == "":
		return errors.New("MongoDB database name cannot be empty")
	case c.MinPoolSize > c.MaxPoolSize:
		return fmt.Errorf("MinPoolSize (%d) cannot be greater than MaxPoolSize (%d)", c.MinPoolSize, c.MaxPoolSize)
	}
	return nil
}

type Client struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// IndexSpec describes an index to create on a collection at startup.
type IndexSpec struct {
	Collection string
	Model      mongo.IndexModel
}

// NewClient connects and pings the primary, retrying with exponential backoff
// (1s, 2s, 4s, ... capped at 16s). Cancelling ctx aborts the retries.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(60 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.TLSCAFile != "" {
		tlsConfig, err := loadTLSConfig(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS CA file: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
		zap.L().Info("MongoDB TLS configured", zap.String("ca_file", cfg.TLSCAFile))
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt)
			zap.L().Warn("MongoDB connection attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("gave up connecting to MongoDB: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		client, err := connectOnce(ctx, opts)
		if err != nil {
			lastErr = err
			continue
		}
		zap.L().Info("connected to MongoDB", zap.String("database", cfg.Database))
		return &Client{Client: client, DB: client.Database(cfg.Database)}, nil
	}
	return nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", cfg.MaxRetries, lastErr)
}

func connectOnce(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Ping checks the primary answers within five seconds. It backs /health.
func (c *Client) Ping(ctx context.Context) error {
	if c.Client == nil {
		return errors.New("MongoDB client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Client.Ping(ctx, readpref.Primary())
}

func (c *Client) Collection(name string) *mongo.Collection {
	return c.DB.Collection(name)
}

// EnsureIndexes creates the given indexes. Existing identical indexes are a no-op.
func (c *Client) EnsureIndexes(ctx context.Context, specs []IndexSpec) error {
	for _, spec := range specs {
		if _, err := c.DB.Collection(spec.Collection).Indexes().CreateOne(ctx, spec.Model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", spec.Collection, err)
		}
	}
	return nil
}

// Disconnect drains the pool.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}

func loadTLSConfig(caFile string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
