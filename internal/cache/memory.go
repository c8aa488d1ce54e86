package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache. Vive lo que vive el proceso.
type memoryClient struct {
	prefix string
	ttl    time.Duration
	c      *gocache.Cache
}

// NewMemory crea un cliente de cache en memoria. defaultTTL 0 significa sin
// expiración.
func NewMemory(prefix string, defaultTTL time.Duration) Client {
	exp := defaultTTL
	if exp <= 0 {
		exp = gocache.NoExpiration
	}
	return &memoryClient{
		prefix: prefix,
		ttl:    exp,
		c:      gocache.New(exp, time.Minute),
	}
}

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
