package association

import (
	"context"

	"github.com/dropDatabas3/fleetconsole/internal/fleet"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
)

// Relation es un lado de la relación config <-> agent group visto desde un
// ancla: el editor no sabe si edita los configs de un grupo o los grupos de
// un config.
type Relation interface {
	// Anchor es el nombre de la entidad ancla.
	Anchor() string
	// Kind describe qué se edita ("group-configs" o "config-groups").
	Kind() string
	// Members lista los miembros asociados al ancla, siempre contra el servidor.
	Members(ctx context.Context) ([]string, error)
	// Detail trae el detalle de un miembro.
	Detail(ctx context.Context, member string) (transport.Record, error)
	// Known lista todos los miembros existentes (candidatos a agregar).
	Known(ctx context.Context) ([]string, error)
	Apply(ctx context.Context, member string) error
	Remove(ctx context.Context, member string) error
}

// API es el subconjunto de fleet.Client que usan las relaciones.
type API interface {
	ListAgentGroups(ctx context.Context) ([]fleet.AgentGroup, error)
	GetAgentGroup(ctx context.Context, name string) (*fleet.AgentGroup, error)
	ListConfigs(ctx context.Context) ([]fleet.ConfigDetail, error)
	GetConfig(ctx context.Context, name string) (*fleet.ConfigDetail, error)
	ApplyConfigToAgentGroup(ctx context.Context, config, group string) error
	RemoveConfigFromAgentGroup(ctx context.Context, config, group string) error
	GetAppliedConfigsForAgentGroup(ctx context.Context, group string) ([]string, error)
	GetAppliedAgentGroups(ctx context.Context, config string) ([]string, error)
}

// GroupConfigs edita los configs aplicados a un agent group.
func GroupConfigs(api API, group string) Relation {
	return groupConfigs{api: api, group: group}
}

type groupConfigs struct {
	api   API
	group string
}

func (r groupConfigs) Anchor() string { return r.group }
func (r groupConfigs) Kind() string   { return "group-configs" }

func (r groupConfigs) Members(ctx context.Context) ([]string, error) {
	return r.api.GetAppliedConfigsForAgentGroup(fleet.Fresh(ctx), r.group)
}

func (r groupConfigs) Detail(ctx context.Context, member string) (transport.Record, error) {
	cd, err := r.api.GetConfig(ctx, member)
	if err != nil {
		return nil, err
	}
	return cd.Raw, nil
}

func (r groupConfigs) Known(ctx context.Context) ([]string, error) {
	configs, err := r.api.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(configs))
	for _, c := range configs {
		out = append(out, c.Name)
	}
	return out, nil
}

func (r groupConfigs) Apply(ctx context.Context, member string) error {
	return r.api.ApplyConfigToAgentGroup(ctx, member, r.group)
}

func (r groupConfigs) Remove(ctx context.Context, member string) error {
	return r.api.RemoveConfigFromAgentGroup(ctx, member, r.group)
}

// ConfigGroups edita los agent groups a los que está aplicado un config.
func ConfigGroups(api API, config string) Relation {
	return configGroups{api: api, config: config}
}

type configGroups struct {
	api    API
	config string
}

func (r configGroups) Anchor() string { return r.config }
func (r configGroups) Kind() string   { return "config-groups" }

func (r configGroups) Members(ctx context.Context) ([]string, error) {
	return r.api.GetAppliedAgentGroups(fleet.Fresh(ctx), r.config)
}

func (r configGroups) Detail(ctx context.Context, member string) (transport.Record, error) {
	g, err := r.api.GetAgentGroup(ctx, member)
	if err != nil {
		return nil, err
	}
	return g.Raw, nil
}

func (r configGroups) Known(ctx context.Context) ([]string, error) {
	groups, err := r.api.ListAgentGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out, nil
}

func (r configGroups) Apply(ctx context.Context, member string) error {
	return r.api.ApplyConfigToAgentGroup(ctx, r.config, member)
}

func (r configGroups) Remove(ctx context.Context, member string) error {
	return r.api.RemoveConfigFromAgentGroup(ctx, r.config, member)
}
