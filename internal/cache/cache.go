// Package cache provee el cache de listados del console con soporte
// multi-backend.
//
// Soporta:
//   - memory (in-process, go-cache)
//   - redis (compartido entre procesos fleetctl)
//   - none (no cachea nada)
//
// Los valores son strings opacos; quien cachea decide el encoding.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. Si ttl es 0 se usa el TTL por defecto del cliente.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera el cliente.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Kind       string // "memory" | "redis" | "none"
	Addr       string // host:port, solo redis
	Password   string
	DB         int
	Prefix     string // Prefijo para todas las keys
	DefaultTTL time.Duration
}

// Errores de cache.
var (
	ErrNotFound = errNotFound{}
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown kind %q", cfg.Kind)
	}
}

// Nop no guarda nada: todo Get es un miss.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, error)              { return "", ErrNotFound }
func (Nop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }
func (Nop) Ping(context.Context) error                               { return nil }
func (Nop) Close() error                                             { return nil }

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
