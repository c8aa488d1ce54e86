package devserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed es el estado inicial del servidor, cargado desde YAML:
//
//	groups:
//	  - {name: linux, value: os=linux}
//	configs:
//	  - {name: c1, detail: "inputs: []"}
//	applied:
//	  - {config: c1, group: linux}
//	agents:
//	  - {instance_id: a-1, hostname: web-1, tags: [os=linux]}
type Seed struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Value string `yaml:"value"`
	} `yaml:"groups"`

	Configs []struct {
		Name   string `yaml:"name"`
		Detail string `yaml:"detail"`
	} `yaml:"configs"`

	Applied []struct {
		Config string `yaml:"config"`
		Group  string `yaml:"group"`
	} `yaml:"applied"`

	Agents []struct {
		InstanceID    string            `yaml:"instance_id"`
		AgentType     string            `yaml:"agent_type"`
		Version       string            `yaml:"version"`
		IP            string            `yaml:"ip"`
		Hostname      string            `yaml:"hostname"`
		RunningStatus string            `yaml:"running_status"`
		StartupTime   int64             `yaml:"startup_time"`
		Tags          []string          `yaml:"tags"`
		Extras        map[string]string `yaml:"extras"`
	} `yaml:"agents"`
}

// LoadSeed lee un seed desde path.
func LoadSeed(path string) (*Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sd Seed
	if err := yaml.Unmarshal(b, &sd); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return &sd, nil
}

// ApplySeed carga sd en el store con las mismas reglas que la API: un grupo
// o config repetido, o un apply contra algo que no existe, es error.
func (s *Store) ApplySeed(sd *Seed) error {
	for _, g := range sd.Groups {
		if err := s.CreateGroup(g.Name, g.Value); err != nil {
			return fmt.Errorf("seed group %s: %w", g.Name, err)
		}
	}
	for _, c := range sd.Configs {
		if err := s.CreateConfig(c.Name, []byte(c.Detail)); err != nil {
			return fmt.Errorf("seed config %s: %w", c.Name, err)
		}
	}
	for _, ap := range sd.Applied {
		if err := s.Apply(ap.Config, ap.Group); err != nil {
			return fmt.Errorf("seed apply %s -> %s: %w", ap.Config, ap.Group, err)
		}
	}
	for _, a := range sd.Agents {
		extras := make(map[string][]byte, len(a.Extras))
		for k, v := range a.Extras {
			extras[k] = []byte(v)
		}
		s.AddAgent(Agent{
			InstanceID:    a.InstanceID,
			AgentType:     a.AgentType,
			Version:       a.Version,
			IP:            a.IP,
			Hostname:      a.Hostname,
			RunningStatus: a.RunningStatus,
			StartupTime:   a.StartupTime,
			Tags:          a.Tags,
			Extras:        extras,
		})
	}
	return nil
}
