package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/server"
)

// invalid builds a config error naming the offending field.
func invalid(field string, value interface{}, format string, args ...interface{}) error {
	msg := field + ": " + fmt.Sprintf(format, args...)
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, msg).
		WithContext("field", field).
		WithContext("value", value)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validatePagesConfig(&config.Pages); err != nil {
		return fmt.Errorf("pages config: %w", err)
	}
	if err := validateResponseConfig(&config.Response); err != nil {
		return fmt.Errorf("response config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := validateAdminConfig(&config.Admin, &config.Server); err != nil {
		return fmt.Errorf("admin config: %w", err)
	}
	return nil
}

var dangerousHostChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}

func validateHost(field, host string) error {
	for _, char := range dangerousHostChars {
		if strings.Contains(host, char) {
			return invalid(field, host, "host contains dangerous character %q", char)
		}
	}
	return nil
}

func validatePort(field string, port int) error {
	// 0 asks the system for a free port
	if port < 0 || port > 65535 {
		return invalid(field, port, "port %d is not in valid range 0-65535", port)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if err := validatePort("server.port", config.Port); err != nil {
		return err
	}
	if err := validateHost("server.host", config.Host); err != nil {
		return err
	}

	switch server.Mode(config.Mode) {
	case server.ModePool:
		if config.Workers < 1 {
			return invalid("server.workers", config.Workers, "pool mode needs at least one worker")
		}
		if config.QueueSize < 0 {
			return invalid("server.queue_size", config.QueueSize, "queue size cannot be negative")
		}
	case server.ModeSpawn:
	default:
		return invalid("server.mode", config.Mode, "mode must be %q or %q", server.ModePool, server.ModeSpawn)
	}

	switch server.ReadMode(config.ReadMode) {
	case server.ReadBuffer, server.ReadLines:
	default:
		return invalid("server.read_mode", config.ReadMode, "read mode must be %q or %q", server.ReadBuffer, server.ReadLines)
	}

	if config.ReadTimeout <= 0 {
		return invalid("server.read_timeout", config.ReadTimeout, "read timeout must be positive")
	}
	if config.WriteTimeout <= 0 {
		return invalid("server.write_timeout", config.WriteTimeout, "write timeout must be positive")
	}
	if config.ReadBufferSize < 16 {
		return invalid("server.read_buffer_size", config.ReadBufferSize, "read buffer must hold at least 16 bytes")
	}
	return nil
}

func validatePagesConfig(config *PagesConfig) error {
	seen := make(map[string]bool, len(config.Entries))
	for i, p := range config.Entries {
		field := fmt.Sprintf("pages.entries[%d]", i)
		if !strings.HasPrefix(p.Path, "/") {
			return invalid(field+".path", p.Path, "page path must start with /")
		}
		if strings.ContainsAny(p.Path, "?# \t") {
			return invalid(field+".path", p.Path, "page path cannot contain a query, fragment or whitespace")
		}
		if strings.TrimSpace(p.File) == "" {
			return invalid(field+".file", p.File, "page file is required")
		}
		key := strings.ToLower(p.Path)
		if seen[key] {
			return invalid(field+".path", p.Path, "duplicate page path")
		}
		seen[key] = true
	}
	return nil
}

func validateResponseConfig(config *ResponseConfig) error {
	if strings.ContainsAny(config.ServerName, "\r\n") {
		return invalid("response.server_name", config.ServerName, "server name cannot contain line breaks")
	}
	if _, err := language.Parse(config.ContentLanguage); err != nil {
		return invalid("response.content_language", config.ContentLanguage, "not a BCP 47 language tag: %v", err)
	}
	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return invalid("logging.level", config.Level, "%v", err)
	}
	switch config.Format {
	case logging.FormatLine, logging.FormatText, logging.FormatJSON, logging.FormatOTel:
	default:
		return invalid("logging.format", config.Format, "unknown log format")
	}
	return nil
}

func validateAdminConfig(config *AdminConfig, srv *ServerConfig) error {
	if !config.Enabled {
		return nil
	}
	if err := validatePort("admin.port", config.Port); err != nil {
		return err
	}
	if err := validateHost("admin.host", config.Host); err != nil {
		return err
	}
	if config.Port != 0 && config.Port == srv.Port && config.Host == srv.Host {
		return invalid("admin.port", config.Port, "admin endpoint cannot share the engine address")
	}
	return nil
}
