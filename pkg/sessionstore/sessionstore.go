// Package sessionstore keeps per-browser-session key/value state.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/wellness_intake/config"
)

var ErrUnknownDriver = errors.New("unknown session store driver")

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Store is a key/value map scoped to one session namespace.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type Config struct {
	Driver    string
	KeyPrefix string
	TTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Driver:    DriverRedis,
		KeyPrefix: "wellness",
		TTL:       12 * time.Hour,
	}
}

// FromCentralConfig converts central config.SessionStoreConfig to package Config
func FromCentralConfig(c config.SessionStoreConfig) Config {
	cfg := Config{
		Driver:    c.Driver,
		KeyPrefix: c.KeyPrefix,
		TTL:       c.SessionTTL(),
	}
	if cfg.Driver == "" {
		cfg.Driver = DefaultConfig().Driver
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return cfg
}

// Provider opens stores for (namespace, session) pairs.
type Provider struct {
	cfg    Config
	client goredis.UniversalClient

	mu     sync.Mutex
	memory map[string]*Memory
}

// New returns a provider for the configured driver. The redis driver needs a
// client; the memory driver ignores it.
func New(cfg Config, client goredis.UniversalClient) (*Provider, error) {
	switch cfg.Driver {
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("session store: redis driver needs a client")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	return &Provider{cfg: cfg, client: client, memory: make(map[string]*Memory)}, nil
}

func (p *Provider) Open(namespace, sessionID string) Store {
	key := p.cfg.KeyPrefix + ":" + namespace + ":" + sessionID
	if p.cfg.Driver == DriverRedis {
		return NewRedis(p.client, key, p.cfg.TTL)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.memory[key]
	if !ok {
		m = NewMemory()
		p.memory[key] = m
	}
	return m
}
