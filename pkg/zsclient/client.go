package zsclient

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/zscaler/internal/client"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
	"github.com/fivetwenty-io/zscaler/pkg/zsconfig"
)

// Resource is a generic CRUD client for one collection endpoint.
type Resource[T any] = client.Resource[T]

// New creates a signed-in Zscaler API client.
func New(ctx context.Context, config *zscaler.Config) (zscaler.Client, error) {
	if config == nil {
		return nil, zscaler.ErrConfigRequired
	}

	c, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewWithCredentials creates a client for a cloud with client credentials.
func NewWithCredentials(ctx context.Context, cloud zscaler.Cloud, clientID, clientSecret, customerID string) (zscaler.Client, error) {
	return New(ctx, &zscaler.Config{
		Cloud:        cloud,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CustomerID:   customerID,
	})
}

// NewFromEnv loads the config from ZSCALER_* environment variables and the
// optional config file, then creates a client.
func NewFromEnv(ctx context.Context, configFile string) (zscaler.Client, error) {
	config, err := zsconfig.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(ctx, config)
}

// NewResource creates a resource client rooted at path.
func NewResource[T any](executor zscaler.Executor, path, name string) *Resource[T] {
	return client.NewResource[T](executor, path, name)
}
