package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML).
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	// Servicio de configuración remoto.
	Server struct {
		BaseURL    string `yaml:"base_url"`
		BasePath   string `yaml:"base_path"`   // prefijo antes de /<EntityKind>/<Action>
		EntityKind string `yaml:"entity_kind"` // default "User"
	} `yaml:"server"`

	Transport struct {
		Timeout          string `yaml:"timeout"`
		MaxResponseBytes int64  `yaml:"max_response_bytes"`
	} `yaml:"transport"`

	Log struct {
		Env   string `yaml:"env"`   // dev | prod | silent
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis | none
		TTL   string `yaml:"ttl"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Normalize struct {
		// Campos extra marcados como opacos (nombre simple o path con puntos).
		OpaqueFields []string `yaml:"opaque_fields"`
		// Heuristic habilita la detección base64 en campos de texto no marcados.
		Heuristic *bool `yaml:"heuristic"`
	} `yaml:"normalize"`

	Metrics struct {
		Addr string `yaml:"addr"` // vacío = sin /metrics
	} `yaml:"metrics"`

	DevServer struct {
		Addr             string `yaml:"addr"`
		DoubleEncodeText bool   `yaml:"double_encode_text"`
	} `yaml:"devserver"`
}

// Default retorna la configuración con todos los defaults aplicados y los
// overrides de entorno, sin leer ningún archivo.
func Default() (*Config, error) {
	var c Config
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) finish() error {
	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	return c.Validate()
}

func (c *Config) applyDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://127.0.0.1:8899"
	}
	if c.Server.EntityKind == "" {
		c.Server.EntityKind = "User"
	}
	if c.Transport.Timeout == "" {
		c.Transport.Timeout = "10s"
	}
	if c.Transport.MaxResponseBytes == 0 {
		c.Transport.MaxResponseBytes = 4 << 20
	}
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "15s"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "fleetconsole"
	}
	if c.Normalize.Heuristic == nil {
		on := true
		c.Normalize.Heuristic = &on
	}
	if c.DevServer.Addr == "" {
		c.DevServer.Addr = ":8899"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("FLEET_BASE_URL")); v != "" {
		c.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FLEET_BASE_PATH")); v != "" {
		c.Server.BasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("FLEET_TIMEOUT")); v != "" {
		c.Transport.Timeout = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		c.App.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_ENV")); v != "" {
		c.Log.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_KIND")); v != "" {
		c.Cache.Kind = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("FLEET_OPAQUE_FIELDS")); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				c.Normalize.OpaqueFields = append(c.Normalize.OpaqueFields, f)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ADDR")); v != "" {
		c.Metrics.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVSERVER_ADDR")); v != "" {
		c.DevServer.Addr = v
	}
}

// Validate verifica que los valores sean utilizables.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.base_url: invalid url %q", c.Server.BaseURL))
	}
	if strings.Contains(c.Server.EntityKind, "/") {
		errs = append(errs, fmt.Errorf("server.entity_kind: must not contain '/'"))
	}
	if _, err := time.ParseDuration(c.Transport.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("transport.timeout: %w", err))
	}
	if c.Transport.MaxResponseBytes < 0 {
		errs = append(errs, errors.New("transport.max_response_bytes: must be positive"))
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		errs = append(errs, fmt.Errorf("cache.ttl: %w", err))
	}
	switch c.Cache.Kind {
	case "memory", "none":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr: required when cache.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unknown kind %q", c.Cache.Kind))
	}
	return errors.Join(errs...)
}

// TransportTimeout retorna transport.timeout ya parseado.
func (c *Config) TransportTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Transport.Timeout)
	return d
}

// CacheTTL retorna cache.ttl ya parseado.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
