package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/ion/internal/errors"
	"github.com/vango-dev/ion/pkg/client"
	"github.com/vango-dev/ion/pkg/server"
	"github.com/vango-dev/ion/pkg/ticket"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "ion.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "ion.yaml"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "ion"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "github.com/vango-dev/ion"
)

// Config represents the complete ion.json / ion.yaml configuration.
type Config struct {
	// Server contains listener and limit settings.
	Server ServerSection `json:"server,omitempty" yaml:"server,omitempty"`

	// Stream contains client reconnect settings.
	Stream StreamSection `json:"stream,omitempty" yaml:"stream,omitempty"`

	// Ticket contains stream ticket settings.
	Ticket TicketSection `json:"ticket,omitempty" yaml:"ticket,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsSection `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingSection `json:"tracing,omitempty" yaml:"tracing,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerSection configures pkg/server. Durations use time.ParseDuration
// syntax (e.g. "30s").
type ServerSection struct {
	Address         string `json:"address,omitempty" yaml:"address,omitempty"`
	ReadTimeout     string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout    string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	IdleTimeout     string `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// MaxMessageSize bounds unary bodies and stream messages in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty" yaml:"maxMessageSize,omitempty"`
}

// StreamSection configures client stream reconnects.
type StreamSection struct {
	BaseDelay   string `json:"baseDelay,omitempty" yaml:"baseDelay,omitempty"`
	MaxDelay    string `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
	MaxAttempts int    `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
}

// TicketSection configures the keyed ticket exchanger.
type TicketSection struct {
	// Secret is the exchanger key. Environment references such as
	// "$ION_TICKET_SECRET" are expanded. Empty disables tickets.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`

	// TTL is how long an issued ticket stays valid.
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// MetricsSection configures the Prometheus interceptor.
type MetricsSection struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TracingSection configures the OpenTelemetry interceptor.
type TracingSection struct {
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerSection{
			Address:         DefaultAddress,
			ReadTimeout:     "30s",
			WriteTimeout:    "30s",
			IdleTimeout:     "120s",
			ShutdownTimeout: "30s",
		},
		Stream: StreamSection{
			BaseDelay: "200ms",
			MaxDelay:  "30s",
		},
		Ticket: TicketSection{
			TTL: "30s",
		},
		Metrics: MetricsSection{
			Enabled:   true,
			Namespace: DefaultNamespace,
			Path:      "/metrics",
		},
		Tracing: TracingSection{
			TracerName: DefaultTracerName,
		},
	}
}

// Load reads configuration from dir. ion.yaml takes precedence over
// ion.json.
func Load(dir string) (*Config, error) {
	for _, name := range []string{YAMLConfigFileName, "ion.yml", ConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("CONFIG_NOT_FOUND").
		WithDetail("No ion.yaml or ion.json found in " + dir)
}

// LoadFile reads configuration from path. The format is chosen by
// extension: .yaml and .yml are YAML, anything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("CONFIG_NOT_FOUND").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("CONFIG_INVALID").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("CONFIG_INVALID").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path in the format its extension
// names.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("CONFIG_INVALID").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("CONFIG_INVALID").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == "" {
		c.Server.IdleTimeout = d.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Stream.BaseDelay == "" {
		c.Stream.BaseDelay = d.Stream.BaseDelay
	}
	if c.Stream.MaxDelay == "" {
		c.Stream.MaxDelay = d.Stream.MaxDelay
	}

	if c.Ticket.TTL == "" {
		c.Ticket.TTL = d.Ticket.TTL
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}

	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = d.Tracing.TracerName
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	durations := []struct {
		field string
		value string
	}{
		{"server.readTimeout", c.Server.ReadTimeout},
		{"server.writeTimeout", c.Server.WriteTimeout},
		{"server.idleTimeout", c.Server.IdleTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"stream.baseDelay", c.Stream.BaseDelay},
		{"stream.maxDelay", c.Stream.MaxDelay},
		{"ticket.ttl", c.Ticket.TTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return errors.New("CONFIG_INVALID").
				WithDetail(d.field + ": " + err.Error())
		}
		if v < 0 {
			return errors.New("CONFIG_INVALID").
				WithDetail(d.field + " must not be negative")
		}
	}

	if c.Server.MaxMessageSize < 0 {
		return errors.New("CONFIG_INVALID").
			WithDetail("server.maxMessageSize must not be negative")
	}
	if c.Stream.MaxAttempts < 0 {
		return errors.New("CONFIG_INVALID").
			WithDetail("stream.maxAttempts must not be negative")
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("CONFIG_INVALID").
			WithDetail("metrics.path must start with /")
	}
	return nil
}

// duration parses a validated duration field. Empty yields zero so the
// consumer's own default applies.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ServerConfig returns the pkg/server configuration described by the
// server and ticket sections. Interceptors and metrics are left for the
// caller to attach.
func (c *Config) ServerConfig() (*server.ServerConfig, error) {
	sc := server.DefaultServerConfig()
	sc.Address = c.Server.Address
	if d := duration(c.Server.ReadTimeout); d > 0 {
		sc.ReadTimeout = d
	}
	if d := duration(c.Server.WriteTimeout); d > 0 {
		sc.WriteTimeout = d
	}
	if d := duration(c.Server.IdleTimeout); d > 0 {
		sc.IdleTimeout = d
	}
	if d := duration(c.Server.ShutdownTimeout); d > 0 {
		sc.ShutdownTimeout = d
	}
	if c.Server.MaxMessageSize > 0 {
		sc.MaxMessageSize = c.Server.MaxMessageSize
	}

	ex, err := c.Exchanger()
	if err != nil {
		return nil, err
	}
	if ex != nil {
		sc.Exchanger = ex
	}
	return sc, nil
}

// Exchanger returns the keyed exchanger for the ticket section, or nil
// when no secret is configured.
func (c *Config) Exchanger() (ticket.Exchanger, error) {
	secret := os.ExpandEnv(c.Ticket.Secret)
	if secret == "" {
		return nil, nil
	}
	var opts []ticket.KeyedOption
	if d := duration(c.Ticket.TTL); d > 0 {
		opts = append(opts, ticket.WithTTL(d))
	}
	ex, err := ticket.NewKeyedExchanger([]byte(secret), opts...)
	if err != nil {
		return nil, errors.New("CONFIG_INVALID").WithDetail("ticket.secret").Wrap(err)
	}
	return ex, nil
}

// StreamConfig returns the client reconnect settings.
func (c *Config) StreamConfig() client.StreamConfig {
	sc := client.DefaultConfig().Stream
	if d := duration(c.Stream.BaseDelay); d > 0 {
		sc.BaseDelay = d
	}
	if d := duration(c.Stream.MaxDelay); d > 0 {
		sc.MaxDelay = d
	}
	sc.MaxAttempts = c.Stream.MaxAttempts
	return sc
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{YAMLConfigFileName, "ion.yml", ConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
