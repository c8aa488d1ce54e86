package fleet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/cache"
	"github.com/dropDatabas3/fleetconsole/internal/config"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
	"github.com/dropDatabas3/fleetconsole/internal/wire/normalize"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

// NewFromConfig arma el stack completo (registry, normalizer, sender HTTP,
// invoker y cache) a partir de la configuración.
func NewFromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	reg, err := schema.NewRegistry(cfg.Normalize.OpaqueFields...)
	if err != nil {
		return nil, err
	}
	norm := normalize.New(normalize.Options{
		Opaque:           reg.OpaqueFields(),
		DisableHeuristic: cfg.Normalize.Heuristic != nil && !*cfg.Normalize.Heuristic,
		Logger:           log,
	})
	sender := transport.NewHTTPSender(transport.HTTPOptions{
		BaseURL:          cfg.Server.BaseURL,
		BasePath:         cfg.Server.BasePath,
		EntityKind:       cfg.Server.EntityKind,
		Timeout:          cfg.TransportTimeout(),
		MaxResponseBytes: cfg.Transport.MaxResponseBytes,
	})
	inv, err := transport.NewInvoker(transport.Options{
		Registry:   reg,
		Normalizer: norm,
		Sender:     sender,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	cc, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.CacheTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("fleet: cache: %w", err)
	}

	return New(Options{
		Caller:   inv,
		Cache:    cc,
		CacheTTL: cfg.CacheTTL(),
		Logger:   log,
	}), nil
}
