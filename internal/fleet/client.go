// Package fleet es el cliente tipado de la API de usuario del config server:
// un método por acción sobre el transport.Invoker, con cache de listados y
// deduplicación de lecturas concurrentes de detalle.
package fleet

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/fleetconsole/internal/cache"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

// Caller es lo que el cliente necesita del transporte.
type Caller interface {
	Call(ctx context.Context, endpoint, requestType, responseType string, fields map[string]any) *transport.Result
}

// Options configura un Client.
type Options struct {
	Caller   Caller        // requerido
	Cache    cache.Client  // opcional; nil = sin cache
	CacheTTL time.Duration // 0 = TTL por defecto del cache
	Logger   *zap.Logger
}

// Client es seguro para uso concurrente.
type Client struct {
	caller Caller
	cache  cache.Client
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group
}

// New construye un Client.
func New(opts Options) *Client {
	c := &Client{
		caller: opts.Caller,
		cache:  opts.Cache,
		ttl:    opts.CacheTTL,
		log:    opts.Logger,
	}
	if c.log == nil {
		c.log = logger.L()
	}
	c.log = c.log.With(logger.Component("fleet"))
	return c
}

// Close libera el cache.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

type noCacheKey struct{}

// Fresh marca el contexto para que los listados ignoren el cache (se
// vuelven a guardar con el valor nuevo).
func Fresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCacheKey{}, true)
}

func isFresh(ctx context.Context) bool {
	v, _ := ctx.Value(noCacheKey{}).(bool)
	return v
}

// Call ejecuta una acción arbitraria y retorna el resultado crudo.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any) *transport.Result {
	return c.caller.Call(ctx, action, schema.RequestType(action), schema.ResponseType(action), fields)
}

func (c *Client) do(ctx context.Context, action string, fields map[string]any) (transport.Record, error) {
	res := c.Call(ctx, action, fields)
	recordWarnings(ctx, action, res.Warnings)
	if err := res.Error(); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ─── Agent groups ───

func (c *Client) ListAgentGroups(ctx context.Context) ([]AgentGroup, error) {
	return cached(ctx, c, keyGroups, func() ([]AgentGroup, error) {
		data, err := c.do(ctx, schema.ListAgentGroups, nil)
		if err != nil {
			return nil, err
		}
		items := data.List("agentGroups")
		out := make([]AgentGroup, 0, len(items))
		for _, r := range items {
			out = append(out, groupFrom(r))
		}
		return out, nil
	})
}

// GetAgentGroup deduplica lecturas concurrentes del mismo grupo.
func (c *Client) GetAgentGroup(ctx context.Context, name string) (*AgentGroup, error) {
	v, err := c.shared(ctx, "group:"+name, func(ctx context.Context) (any, error) {
		data, err := c.do(ctx, schema.GetAgentGroup, map[string]any{"groupName": name})
		if err != nil {
			return nil, err
		}
		g := groupFrom(data.Record("agentGroup"))
		return &g, nil
	})
	if err != nil {
		return nil, err
	}
	g := *v.(*AgentGroup)
	return &g, nil
}

func (c *Client) CreateAgentGroup(ctx context.Context, g AgentGroup) error {
	_, err := c.do(ctx, schema.CreateAgentGroup, map[string]any{"agentGroup": g.fields()})
	c.invalidate(ctx, keyGroups)
	return err
}

func (c *Client) UpdateAgentGroup(ctx context.Context, g AgentGroup) error {
	_, err := c.do(ctx, schema.UpdateAgentGroup, map[string]any{"agentGroup": g.fields()})
	c.invalidate(ctx, keyGroups)
	return err
}

func (c *Client) DeleteAgentGroup(ctx context.Context, name string) error {
	_, err := c.do(ctx, schema.DeleteAgentGroup, map[string]any{"groupName": name})
	c.invalidate(ctx, keyGroups, appliedConfigsKey(name))
	return err
}

func (c *Client) ListAgents(ctx context.Context, group string) ([]Agent, error) {
	data, err := c.do(ctx, schema.ListAgents, map[string]any{"groupName": group})
	if err != nil {
		return nil, err
	}
	items := data.List("agents")
	out := make([]Agent, 0, len(items))
	for _, r := range items {
		out = append(out, agentFrom(r))
	}
	return out, nil
}

// ─── Configs ───

func (c *Client) ListConfigs(ctx context.Context) ([]ConfigDetail, error) {
	return cached(ctx, c, keyConfigs, func() ([]ConfigDetail, error) {
		data, err := c.do(ctx, schema.ListConfigs, nil)
		if err != nil {
			return nil, err
		}
		items := data.List("configDetails")
		out := make([]ConfigDetail, 0, len(items))
		for _, r := range items {
			out = append(out, configFrom(r))
		}
		return out, nil
	})
}

// GetConfig deduplica lecturas concurrentes del mismo config.
func (c *Client) GetConfig(ctx context.Context, name string) (*ConfigDetail, error) {
	v, err := c.shared(ctx, "config:"+name, func(ctx context.Context) (any, error) {
		data, err := c.do(ctx, schema.GetConfig, map[string]any{"configName": name})
		if err != nil {
			return nil, err
		}
		cd := configFrom(data.Record("configDetail"))
		return &cd, nil
	})
	if err != nil {
		return nil, err
	}
	cd := *v.(*ConfigDetail)
	return &cd, nil
}

func (c *Client) CreateConfig(ctx context.Context, cd ConfigDetail) error {
	_, err := c.do(ctx, schema.CreateConfig, map[string]any{"configDetail": cd.fields()})
	c.invalidate(ctx, keyConfigs)
	return err
}

func (c *Client) UpdateConfig(ctx context.Context, cd ConfigDetail) error {
	_, err := c.do(ctx, schema.UpdateConfig, map[string]any{"configDetail": cd.fields()})
	c.invalidate(ctx, keyConfigs)
	return err
}

func (c *Client) DeleteConfig(ctx context.Context, name string) error {
	_, err := c.do(ctx, schema.DeleteConfig, map[string]any{"configName": name})
	c.invalidate(ctx, keyConfigs, appliedGroupsKey(name))
	return err
}

// ─── Associations ───

func (c *Client) ApplyConfigToAgentGroup(ctx context.Context, config, group string) error {
	_, err := c.do(ctx, schema.ApplyConfigToAgentGroup, map[string]any{"configName": config, "groupName": group})
	c.invalidate(ctx, appliedConfigsKey(group), appliedGroupsKey(config))
	if err == nil {
		c.log.Debug("config applied", logger.ConfigName(config), logger.GroupName(group))
	}
	return err
}

func (c *Client) RemoveConfigFromAgentGroup(ctx context.Context, config, group string) error {
	_, err := c.do(ctx, schema.RemoveConfigFromAgentGroup, map[string]any{"configName": config, "groupName": group})
	c.invalidate(ctx, appliedConfigsKey(group), appliedGroupsKey(config))
	if err == nil {
		c.log.Debug("config removed", logger.ConfigName(config), logger.GroupName(group))
	}
	return err
}

func (c *Client) GetAppliedConfigsForAgentGroup(ctx context.Context, group string) ([]string, error) {
	return cached(ctx, c, appliedConfigsKey(group), func() ([]string, error) {
		data, err := c.do(ctx, schema.GetAppliedConfigsForAgentGroup, map[string]any{"groupName": group})
		if err != nil {
			return nil, err
		}
		return data.Strings("configNames"), nil
	})
}

func (c *Client) GetAppliedAgentGroups(ctx context.Context, config string) ([]string, error) {
	return cached(ctx, c, appliedGroupsKey(config), func() ([]string, error) {
		data, err := c.do(ctx, schema.GetAppliedAgentGroups, map[string]any{"configName": config})
		if err != nil {
			return nil, err
		}
		return data.Strings("agentGroupNames"), nil
	})
}

// ApplyMany aplica config a cada grupo concurrentemente.
func (c *Client) ApplyMany(ctx context.Context, config string, groups []string) Batch {
	return FanOut(ctx, groups, func(ctx context.Context, g string) error {
		return c.ApplyConfigToAgentGroup(ctx, config, g)
	})
}

// shared ejecuta load una sola vez por key entre lectores concurrentes. La
// carga corre con un contexto sin cancelación (el timeout lo pone el
// transporte); cada lector deja de esperar cuando se cancela su propio ctx.
func (c *Client) shared(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	flight := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (any, error) { return load(flight) })
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ─── Cache ───

const (
	keyGroups  = "groups"
	keyConfigs = "configs"
)

func appliedConfigsKey(group string) string { return "applied-configs:" + group }
func appliedGroupsKey(config string) string { return "applied-groups:" + config }

// cached lee key del cache o la carga con load. Los errores del cache se
// loguean y se tratan como miss.
func cached[T any](ctx context.Context, c *Client, key string, load func() (T, error)) (T, error) {
	if c.cache != nil && !isFresh(ctx) {
		s, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			var v T
			if err := json.Unmarshal([]byte(s), &v); err == nil {
				c.log.Debug("cache hit", logger.Key(key))
				return v, nil
			}
		case !cache.IsNotFound(err):
			c.log.Warn("cache get failed", logger.Key(key), logger.Err(err))
		}
	}

	v, err := load()
	if err != nil || c.cache == nil {
		return v, err
	}
	b, err := json.Marshal(v)
	if err == nil {
		err = c.cache.Set(ctx, key, string(b), c.ttl)
	}
	if err != nil {
		c.log.Warn("cache set failed", logger.Key(key), logger.Err(err))
	}
	return v, nil
}

// invalidate borra keys. Se llama también cuando la mutación falla.
func (c *Client) invalidate(ctx context.Context, keys ...string) {
	if c.cache == nil {
		return
	}
	for _, k := range keys {
		if err := c.cache.Delete(ctx, k); err != nil {
			c.log.Warn("cache invalidate failed", logger.Key(k), logger.Err(err))
		}
	}
}
