package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ctellolasalle/RondinLS/pkg/metrics"
)

// ConfigSource provides the persisted key/value configuration rows.
type ConfigSource interface {
	LoadConfig(ctx context.Context) (map[string]string, error)
}

// ConfigCache holds the process-wide configuration. Readers always see a
// complete snapshot: Reload swaps the whole map atomically instead of
// mutating it in place. Between a config commit and the following Reload,
// readers observe the previous snapshot (small window, accepted).
type ConfigCache struct {
	values atomic.Pointer[map[string]string]
}

func NewConfigCache() *ConfigCache {
	c := &ConfigCache{}
	empty := map[string]string{}
	c.values.Store(&empty)
	return c
}

// Reload fetches a fresh snapshot from the source and swaps it in.
func (c *ConfigCache) Reload(ctx context.Context, src ConfigSource) error {
	values, err := src.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("config reload failed: %w", err)
	}
	c.values.Store(&values)
	metrics.ConfigReloads.Inc()
	return nil
}

// Get returns the configured value for key, or "" when unset.
func (c *ConfigCache) Get(key string) string {
	return (*c.values.Load())[key]
}
