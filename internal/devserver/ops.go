package devserver

import (
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

func (s *Server) routes() map[string]opFunc {
	st := s.store
	return map[string]opFunc{
		schema.CreateAgentGroup: func(req map[string]any) (map[string]any, error) {
			ag := record(req, "agentGroup")
			return nil, st.CreateGroup(str(ag, "name"), str(ag, "value"))
		},
		schema.UpdateAgentGroup: func(req map[string]any) (map[string]any, error) {
			ag := record(req, "agentGroup")
			return nil, st.UpdateGroup(str(ag, "name"), str(ag, "value"))
		},
		schema.DeleteAgentGroup: func(req map[string]any) (map[string]any, error) {
			return nil, st.DeleteGroup(str(req, "groupName"))
		},
		schema.GetAgentGroup: func(req map[string]any) (map[string]any, error) {
			g, err := st.GetGroup(str(req, "groupName"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"agentGroup": groupTree(g)}, nil
		},
		schema.ListAgentGroups: func(map[string]any) (map[string]any, error) {
			groups := st.ListGroups()
			out := make([]any, 0, len(groups))
			for _, g := range groups {
				out = append(out, groupTree(g))
			}
			return map[string]any{"agentGroups": out}, nil
		},
		schema.ListAgents: func(req map[string]any) (map[string]any, error) {
			agents, err := st.ListAgents(str(req, "groupName"))
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(agents))
			for _, a := range agents {
				out = append(out, agentTree(a))
			}
			return map[string]any{"agents": out}, nil
		},
		schema.CreateConfig: func(req map[string]any) (map[string]any, error) {
			cd := record(req, "configDetail")
			return nil, st.CreateConfig(str(cd, "name"), raw(cd, "detail"))
		},
		schema.UpdateConfig: func(req map[string]any) (map[string]any, error) {
			cd := record(req, "configDetail")
			return nil, st.UpdateConfig(str(cd, "name"), raw(cd, "detail"))
		},
		schema.DeleteConfig: func(req map[string]any) (map[string]any, error) {
			return nil, st.DeleteConfig(str(req, "configName"))
		},
		schema.GetConfig: func(req map[string]any) (map[string]any, error) {
			c, err := st.GetConfig(str(req, "configName"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"configDetail": configTree(c)}, nil
		},
		schema.ListConfigs: func(map[string]any) (map[string]any, error) {
			configs := st.ListConfigs()
			out := make([]any, 0, len(configs))
			for _, c := range configs {
				out = append(out, configTree(c))
			}
			return map[string]any{"configDetails": out}, nil
		},
		schema.ApplyConfigToAgentGroup: func(req map[string]any) (map[string]any, error) {
			return nil, st.Apply(str(req, "configName"), str(req, "groupName"))
		},
		schema.RemoveConfigFromAgentGroup: func(req map[string]any) (map[string]any, error) {
			return nil, st.Remove(str(req, "configName"), str(req, "groupName"))
		},
		schema.GetAppliedConfigsForAgentGroup: func(req map[string]any) (map[string]any, error) {
			names, err := st.AppliedConfigs(str(req, "groupName"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"configNames": anyList(names)}, nil
		},
		schema.GetAppliedAgentGroups: func(req map[string]any) (map[string]any, error) {
			names, err := st.AppliedGroups(str(req, "configName"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"agentGroupNames": anyList(names)}, nil
		},
	}
}

func groupTree(g Group) map[string]any {
	return map[string]any{"name": g.Name, "value": g.Value}
}

func configTree(c Config) map[string]any {
	return map[string]any{"name": c.Name, "version": c.Version, "detail": c.Detail}
}

func agentTree(a Agent) map[string]any {
	extras := make(map[string]any, len(a.Extras))
	for k, v := range a.Extras {
		extras[k] = v
	}
	return map[string]any{
		"instanceId":    []byte(a.InstanceID),
		"agentType":     a.AgentType,
		"runningStatus": a.RunningStatus,
		"startupTime":   a.StartupTime,
		"attributes": map[string]any{
			"version":  []byte(a.Version),
			"ip":       []byte(a.IP),
			"hostname": []byte(a.Hostname),
			"extras":   extras,
		},
	}
}

func record(m map[string]any, key string) map[string]any {
	r, _ := m[key].(map[string]any)
	return r
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func raw(m map[string]any, key string) []byte {
	switch v := m[key].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
