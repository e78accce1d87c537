// Package config handles configuration loading, validation, and management
// for textbridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Transport configures the engine socket.
	Transport TransportConfig `toml:"transport" json:"transport" yaml:"transport"`

	// Keyboard configures the on-screen keyboard.
	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`

	// KeyEvents configures raw key event forwarding.
	KeyEvents KeyEventsConfig `toml:"key_events" json:"key_events" yaml:"key_events"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configures the metrics endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// TransportConfig configures the unix socket engines connect to.
type TransportConfig struct {
	// SocketPath is the socket path.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// RequireSameUser rejects peers running as another user.
	RequireSameUser bool `toml:"require_same_user" json:"require_same_user" yaml:"require_same_user"`

	// MaxConnections limits concurrent engines. Zero selects the default.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`
}

// On-screen keyboard backends.
const (
	OSKDBus = "dbus"
	OSKNone = "none"
)

// KeyboardConfig selects the on-screen keyboard backend.
type KeyboardConfig struct {
	// OSK is "dbus" or "none".
	OSK string `toml:"osk" json:"osk" yaml:"osk"`

	DBus DBusConfig `toml:"dbus" json:"dbus" yaml:"dbus"`
}

// DBusConfig names the on-screen keyboard service on the session bus.
type DBusConfig struct {
	BusName    string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`
	ObjectPath string `toml:"object_path" json:"object_path" yaml:"object_path"`
	Interface  string `toml:"interface" json:"interface" yaml:"interface"`
}

// KeyEventsConfig controls forwarding of raw key events to the engine
// before text editing sees them.
type KeyEventsConfig struct {
	Forward bool `toml:"forward" json:"forward" yaml:"forward"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where logs go: stdout, stderr, file, or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file used by the file and both outputs.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the age after which rotated files are removed.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig configures the HTTP endpoint serving /metrics and /healthz.
type MetricsConfig struct {
	// Listen is a host:port address. Empty disables the endpoint.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Transport: TransportConfig{
			SocketPath:      defaultSocketPath(),
			RequireSameUser: true,
			MaxConnections:  8,
		},
		Keyboard: KeyboardConfig{
			OSK: OSKDBus,
			DBus: DBusConfig{
				BusName:    "sm.puri.OSK0",
				ObjectPath: "/sm/puri/OSK0",
				Interface:  "sm.puri.OSK0",
			},
		},
		KeyEvents: KeyEventsConfig{
			Forward: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(stateDir(), "textbridge.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// Dir returns the configuration directory. TEXTBRIDGE_CONFIG_DIR overrides
// the platform default.
func Dir() string {
	if dir := os.Getenv("TEXTBRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "textbridge")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "textbridge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "textbridge")
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies TEXTBRIDGE_* environment variables. Malformed
// boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TEXTBRIDGE_SOCKET_PATH"); v != "" {
		c.Transport.SocketPath = v
	}
	if v := os.Getenv("TEXTBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TEXTBRIDGE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TEXTBRIDGE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("TEXTBRIDGE_OSK"); v != "" {
		c.Keyboard.OSK = v
	}
	if v := os.Getenv("TEXTBRIDGE_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("TEXTBRIDGE_FORWARD_KEYS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.KeyEvents.Forward = b
		}
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// RuntimeDir returns the directory for the socket.
func RuntimeDir() string {
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "textbridge")
	}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "textbridge")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("textbridge-%d", os.Getuid()))
}

func defaultSocketPath() string {
	return filepath.Join(RuntimeDir(), "textbridge.sock")
}

func stateDir() string {
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", "textbridge")
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "textbridge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "textbridge")
}

// Save writes cfg to path in the format given by its extension, TOML by
// default.
func Save(cfg *Config, path string) error {
	data, err := marshal(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return marshal(c, ".toml")
}
