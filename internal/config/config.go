// Package config provides configuration management for the Athena engine
// using Viper for loading from files, environment variables and
// command-line flags.
//
// Configuration comes from .athena.yml (or the file named by --config),
// with ATHENA_ prefixed environment overrides. Load applies defaults and
// validates the result before anything is started.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/response"
	"github.com/athena-engine/athena/internal/server"
	"github.com/athena-engine/athena/internal/telemetry"
)

// EnvPrefix is the prefix of environment overrides, e.g. ATHENA_SERVER_PORT.
const EnvPrefix = "ATHENA"

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".athena.yml"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Pages     PagesConfig     `mapstructure:"pages" yaml:"pages"`
	Template  TemplateConfig  `mapstructure:"template" yaml:"template"`
	Response  ResponseConfig  `mapstructure:"response" yaml:"response"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Admin     AdminConfig     `mapstructure:"admin" yaml:"admin"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	Mode           string        `mapstructure:"mode" yaml:"mode"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	QueueSize      int           `mapstructure:"queue_size" yaml:"queue_size"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ReadBufferSize int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	ReadMode       string        `mapstructure:"read_mode" yaml:"read_mode"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PagesConfig struct {
	Entries []PageConfig `mapstructure:"entries" yaml:"entries"`
	Cache   bool         `mapstructure:"cache" yaml:"cache"`
	Watch   bool         `mapstructure:"watch" yaml:"watch"`
}

// PageConfig maps a request path to a file. Accessible defaults to true
// when omitted.
type PageConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	File       string `mapstructure:"file" yaml:"file"`
	Accessible *bool  `mapstructure:"accessible" yaml:"accessible,omitempty"`
}

// IsAccessible reports whether the page may be served.
func (p PageConfig) IsAccessible() bool {
	return p.Accessible == nil || *p.Accessible
}

type TemplateConfig struct {
	Enabled   bool              `mapstructure:"enabled" yaml:"enabled"`
	Variables map[string]string `mapstructure:"variables" yaml:"variables"`
}

type ResponseConfig struct {
	ServerName       string `mapstructure:"server_name" yaml:"server_name"`
	ContentLanguage  string `mapstructure:"content_language" yaml:"content_language"`
	RejectWithStatus bool   `mapstructure:"reject_with_status" yaml:"reject_with_status"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
}

// Telemetry converts the section into telemetry.Config.
func (t TelemetryConfig) Telemetry() telemetry.Config {
	return telemetry.Config{
		Enabled:     t.Enabled,
		Endpoint:    t.Endpoint,
		ServiceName: t.ServiceName,
		Insecure:    t.Insecure,
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7878)
	v.SetDefault("server.mode", string(server.ModePool))
	v.SetDefault("server.workers", server.DefaultWorkers)
	v.SetDefault("server.queue_size", server.DefaultQueueSize)
	v.SetDefault("server.read_timeout", server.DefaultTimeout)
	v.SetDefault("server.write_timeout", server.DefaultTimeout)
	v.SetDefault("server.read_buffer_size", server.DefaultReadBufferSize)
	v.SetDefault("server.read_mode", string(server.ReadBuffer))

	v.SetDefault("pages.cache", false)
	v.SetDefault("pages.watch", false)

	v.SetDefault("template.enabled", true)

	v.SetDefault("response.server_name", response.DefaultServerName)
	v.SetDefault("response.content_language", response.DefaultContentLanguage)
	v.SetDefault("response.reject_with_status", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logging.FormatLine)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 7879)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "athena")
	v.SetDefault("telemetry.insecure", true)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
	if config.Template.Variables == nil {
		config.Template.Variables = make(map[string]string)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
