package devserver

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Códigos de commonResponse.status que usa el servidor de desarrollo.
const (
	StatusOK               int32 = 0
	StatusInvalidParameter int32 = 1
	StatusNotFound         int32 = 2
	StatusAlreadyExists    int32 = 3
	StatusInternal         int32 = 4
)

// DefaultGroup no se puede borrar y ve a todos los agentes.
const DefaultGroup = "default"

// opError es una falla de aplicación: status + mensaje para el operador.
type opError struct {
	status int32
	msg    string
}

func (e *opError) Error() string { return e.msg }

func fail(status int32, format string, args ...any) *opError {
	return &opError{status: status, msg: fmt.Sprintf(format, args...)}
}

// Group es un agent group con su tag.
type Group struct {
	Name    string
	Value   string
	applied map[string]int64 // config -> unix del apply
}

// Config es un config detail. Los borrados quedan marcados para que el
// próximo create continúe la numeración de versiones.
type Config struct {
	Name    string
	Version int64
	Detail  []byte
	deleted bool
}

// Agent es un agente registrado. Tags se matchean contra el value de los grupos.
type Agent struct {
	InstanceID    string
	AgentType     string
	Version       string
	IP            string
	Hostname      string
	RunningStatus string
	StartupTime   int64
	Tags          []string
	Extras        map[string][]byte
}

// Store es el estado en memoria del servidor. Seguro para uso concurrente.
type Store struct {
	mu      sync.Mutex
	groups  map[string]*Group
	configs map[string]*Config
	agents  []Agent
	now     func() time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		groups:  make(map[string]*Group),
		configs: make(map[string]*Config),
		now:     time.Now,
	}
}

// AddAgent registra un agente.
func (s *Store) AddAgent(a Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = append(s.agents, a)
}

func (s *Store) CreateGroup(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return fail(StatusInvalidParameter, "Agent group name is required.")
	}
	if _, ok := s.groups[name]; ok {
		return fail(StatusAlreadyExists, "Agent group %s already exists.", name)
	}
	s.groups[name] = &Group{Name: name, Value: value, applied: make(map[string]int64)}
	return nil
}

func (s *Store) UpdateGroup(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return fail(StatusNotFound, "Agent group %s doesn't exist.", name)
	}
	g.Value = value
	return nil
}

func (s *Store) DeleteGroup(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == DefaultGroup {
		return fail(StatusInvalidParameter, "Cannot delete agent group '%s'", DefaultGroup)
	}
	g, ok := s.groups[name]
	if !ok {
		return fail(StatusNotFound, "Agent group %s doesn't exist.", name)
	}
	if len(g.applied) > 0 {
		return fail(StatusInvalidParameter, "Agent group %s was applied to some configs, cannot be deleted.", name)
	}
	delete(s.groups, name)
	return nil
}

func (s *Store) GetGroup(name string) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return Group{}, fail(StatusNotFound, "Agent group %s doesn't exist.", name)
	}
	return Group{Name: g.Name, Value: g.Value}, nil
}

// ListGroups retorna los grupos ordenados por nombre.
func (s *Store) ListGroups() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, Group{Name: g.Name, Value: g.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAgents retorna los agentes cuyo tag coincide con el value del grupo.
// El grupo default ve a todos.
func (s *Store) ListAgents(group string) ([]Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, fail(StatusNotFound, "Agent group %s doesn't exist.", group)
	}
	out := make([]Agent, 0)
	for _, a := range s.agents {
		if g.Name == DefaultGroup || hasTag(a.Tags, g.Value) {
			out = append(out, a)
		}
	}
	return out, nil
}

func hasTag(tags []string, v string) bool {
	for _, t := range tags {
		if t == v {
			return true
		}
	}
	return false
}

func (s *Store) CreateConfig(name string, detail []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return fail(StatusInvalidParameter, "Config name is required.")
	}
	if c, ok := s.configs[name]; ok {
		if !c.deleted {
			return fail(StatusAlreadyExists, "Config %s already exists.", name)
		}
		c.Version++
		c.Detail = detail
		c.deleted = false
		return nil
	}
	s.configs[name] = &Config{Name: name, Detail: detail}
	return nil
}

func (s *Store) UpdateConfig(name string, detail []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.liveConfig(name)
	if err != nil {
		return err
	}
	c.Version++
	c.Detail = detail
	return nil
}

func (s *Store) DeleteConfig(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.liveConfig(name)
	if err != nil {
		return err
	}
	if len(s.groupsWith(name)) > 0 {
		return fail(StatusInvalidParameter, "Config %s was applied to some agent groups, cannot be deleted.", name)
	}
	c.deleted = true
	c.Version++
	return nil
}

func (s *Store) GetConfig(name string) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.liveConfig(name)
	if err != nil {
		return Config{}, err
	}
	return *c, nil
}

// ListConfigs retorna los configs vivos ordenados por nombre.
func (s *Store) ListConfigs() []Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Config, 0, len(s.configs))
	for _, c := range s.configs {
		if !c.deleted {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) Apply(config, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return fail(StatusNotFound, "Agent group %s doesn't exist.", group)
	}
	if _, err := s.liveConfig(config); err != nil {
		return err
	}
	if _, ok := g.applied[config]; ok {
		return fail(StatusAlreadyExists, "Agent group %s already has config %s.", group, config)
	}
	g.applied[config] = s.now().Unix()
	return nil
}

func (s *Store) Remove(config, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return fail(StatusNotFound, "Agent group %s doesn't exist.", group)
	}
	if _, err := s.liveConfig(config); err != nil {
		return err
	}
	if _, ok := g.applied[config]; !ok {
		return fail(StatusNotFound, "Agent group %s doesn't have config %s.", group, config)
	}
	delete(g.applied, config)
	return nil
}

// AppliedConfigs retorna los configs aplicados a un grupo, ordenados.
func (s *Store) AppliedConfigs(group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, fail(StatusNotFound, "Agent group %s doesn't exist.", group)
	}
	out := make([]string, 0, len(g.applied))
	for name := range g.applied {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// AppliedGroups retorna los grupos que tienen aplicado un config, ordenados.
func (s *Store) AppliedGroups(config string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.liveConfig(config); err != nil {
		return nil, err
	}
	return s.groupsWith(config), nil
}

// liveConfig requiere s.mu tomado.
func (s *Store) liveConfig(name string) (*Config, error) {
	c, ok := s.configs[name]
	if !ok || c.deleted {
		return nil, fail(StatusNotFound, "Config %s doesn't exist.", name)
	}
	return c, nil
}

// groupsWith requiere s.mu tomado.
func (s *Store) groupsWith(config string) []string {
	out := make([]string, 0)
	for name, g := range s.groups {
		if _, ok := g.applied[config]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
