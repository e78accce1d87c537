package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, v := range e {
		fields = append(fields, v.Field)
	}
	return fields
}

// ValidateConfig validates c and returns ValidationErrors, or nil.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateTransport(&c.Transport)...)
	errs = append(errs, validateKeyboard(&c.Keyboard)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if c.Metrics.Listen != "" {
		if _, port, err := net.SplitHostPort(c.Metrics.Listen); err != nil || port == "" {
			errs = append(errs, ValidationError{
				Field:   "metrics.listen",
				Message: fmt.Sprintf("invalid listen address: %s", c.Metrics.Listen),
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateTransport(t *TransportConfig) ValidationErrors {
	var errs ValidationErrors

	switch {
	case t.SocketPath == "":
		errs = append(errs, ValidationError{
			Field:   "transport.socket_path",
			Message: "socket path is required",
		})
	case !filepath.IsAbs(t.SocketPath):
		errs = append(errs, ValidationError{
			Field:   "transport.socket_path",
			Message: fmt.Sprintf("socket path must be absolute: %s", t.SocketPath),
		})
	case len(t.SocketPath) > 104:
		// sun_path is 104 bytes on darwin and 108 on linux.
		errs = append(errs, ValidationError{
			Field:   "transport.socket_path",
			Message: "socket path is too long",
		})
	}

	if t.MaxConnections < 0 {
		errs = append(errs, ValidationError{
			Field:   "transport.max_connections",
			Message: "max connections cannot be negative",
		})
	}
	return errs
}

func validateKeyboard(k *KeyboardConfig) ValidationErrors {
	var errs ValidationErrors

	switch k.OSK {
	case OSKNone:
		return nil
	case OSKDBus:
	default:
		return append(errs, ValidationError{
			Field:   "keyboard.osk",
			Message: fmt.Sprintf("invalid on-screen keyboard backend: %s (valid: dbus, none)", k.OSK),
		})
	}

	if k.DBus.BusName == "" {
		errs = append(errs, ValidationError{
			Field:   "keyboard.dbus.bus_name",
			Message: "bus name is required",
		})
	}
	if !dbus.ObjectPath(k.DBus.ObjectPath).IsValid() {
		errs = append(errs, ValidationError{
			Field:   "keyboard.dbus.object_path",
			Message: fmt.Sprintf("invalid object path: %q", k.DBus.ObjectPath),
		})
	}
	if k.DBus.Interface == "" {
		errs = append(errs, ValidationError{
			Field:   "keyboard.dbus.interface",
			Message: "interface is required",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch strings.ToLower(l.Output) {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}
	return errs
}
