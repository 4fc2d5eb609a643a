// Package redisx builds the Redis client used by the cross-instance event bridge.
package redisx

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Config configures the Redis client. Addr may list several comma-separated
// nodes, in which case a cluster client is built.
type Config struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TLSEnabled  bool
	TLSInsecure bool
	PingTimeout time.Duration
}

// Enabled reports whether an address is configured.
func (c Config) Enabled() bool {
	return len(c.addrs()) > 0
}

func (c Config) addrs() []string {
	var out []string
	for _, a := range strings.Split(c.Addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Options converts the config into go-redis universal options.
func (c Config) Options() *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:    c.addrs(),
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: c.TLSInsecure, // #nosec G402 – intentional opt-in
		}
	}
	return opts
}

// NewClient returns a connected client, or nil when no address is configured.
func NewClient(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client := redis.NewUniversalClient(cfg.Options())

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", cfg.Addr, err)
	}
	return client, nil
}
