package fleet

import (
	"github.com/dropDatabas3/fleetconsole/internal/transport"
)

// AgentGroup es un grupo de agentes identificado por nombre. Value es el tag
// contra el que se matchean los agentes.
type AgentGroup struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`

	Raw transport.Record `json:"-"`
}

// ConfigDetail es un config con su contenido.
type ConfigDetail struct {
	Name    string `json:"name"`
	Version int64  `json:"version"`
	Detail  string `json:"detail,omitempty"`

	Raw transport.Record `json:"-"`
}

// Agent es un agente registrado en el config server.
type Agent struct {
	InstanceID    string            `json:"instance_id"`
	AgentType     string            `json:"agent_type,omitempty"`
	Version       string            `json:"version,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Hostname      string            `json:"hostname,omitempty"`
	RunningStatus string            `json:"running_status,omitempty"`
	StartupTime   int64             `json:"startup_time,omitempty"`
	Capabilities  uint64            `json:"capabilities,omitempty"`
	Flags         uint64            `json:"flags,omitempty"`
	Extras        map[string]string `json:"extras,omitempty"`
}

func groupFrom(r transport.Record) AgentGroup {
	return AgentGroup{Name: r.String("name"), Value: r.String("value"), Raw: r}
}

func configFrom(r transport.Record) ConfigDetail {
	return ConfigDetail{
		Name:    r.String("name"),
		Version: r.Int("version"),
		Detail:  r.String("detail"),
		Raw:     r,
	}
}

func agentFrom(r transport.Record) Agent {
	attrs := r.Record("attributes")
	a := Agent{
		InstanceID:    r.String("instanceId"),
		AgentType:     r.String("agentType"),
		RunningStatus: r.String("runningStatus"),
		StartupTime:   r.Int("startupTime"),
		Capabilities:  r.Uint("capabilities"),
		Flags:         r.Uint("flags"),
	}
	if attrs != nil {
		a.Version = attrs.String("version")
		a.IP = attrs.String("ip")
		a.Hostname = attrs.String("hostname")
		if ex := attrs.Map("extras"); len(ex) > 0 {
			a.Extras = ex
		}
	}
	return a
}

func (g AgentGroup) fields() map[string]any {
	return map[string]any{"name": g.Name, "value": g.Value}
}

func (c ConfigDetail) fields() map[string]any {
	return map[string]any{"name": c.Name, "version": c.Version, "detail": []byte(c.Detail)}
}
