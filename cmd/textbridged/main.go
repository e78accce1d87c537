// textbridged bridges engine text input calls to the platform's editing
// model and keyboard.
//
// Engines connect to a unix socket and exchange platform messages and raw
// key events with the daemon. Each connection gets its own text input
// client state.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"textbridge/internal/config"
	"textbridge/internal/logging"
	"textbridge/internal/osk"
)

// Version is set at build time.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (default: "+config.Path()+")")
	socketPath := flag.String("socket", "", "override the socket path")
	logLevel := flag.String("log-level", "", "override the log level (debug, info, warn, error)")
	noOSK := flag.Bool("no-osk", false, "disable the on-screen keyboard")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("textbridged %s\n", Version)
		return
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *socketPath, *logLevel, *noOSK)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg, err := loggingConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", "path", loader.Path(), "error", err)
	} else {
		defer loader.Close()
		loader.OnChange(func(next *config.Config) {
			level, err := logging.ParseLevel(next.Logging.Level)
			if err != nil {
				return
			}
			// A -log-level flag pins the level.
			if *logLevel == "" && level != logger.Level() {
				logger.SetLevel(level)
				logger.Info("log level changed", "level", logging.LevelString(level))
			}
			if next.Transport != cfg.Transport || next.Keyboard != cfg.Keyboard || next.KeyEvents != cfg.KeyEvents || next.Metrics != cfg.Metrics {
				logger.Info("configuration changed, restart to apply transport and keyboard settings")
			}
		})
		go func() {
			for err := range loader.Errors() {
				logger.Warn("config reload failed", "error", err)
			}
		}()
	}

	daemon := NewDaemon(cfg, openPanel(cfg, logger), logger.Logger)
	if err := daemon.Start(); err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	logger.Info("textbridged started", "version", Version, "socket", daemon.SocketPath())
	if addr := daemon.MetricsAddr(); addr != "" {
		logger.Info("serving metrics", "addr", addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("shutting down", "signal", sig.String())
	if err := daemon.Stop(); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

func applyFlags(cfg *config.Config, socketPath, logLevel string, noOSK bool) {
	if socketPath != "" {
		cfg.Transport.SocketPath = socketPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if noOSK {
		cfg.Keyboard.OSK = config.OSKNone
	}
}

// loggingConfig converts the file configuration to a logger configuration.
func loggingConfig(c config.LoggingConfig) (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    int64(c.MaxSizeMB),
		MaxAge:     c.MaxAgeDays,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
		Component:  "textbridged",
	}, nil
}

// openPanel connects to the configured on-screen keyboard. The bridge
// still runs without one.
func openPanel(cfg *config.Config, logger *logging.Logger) osk.Panel {
	if cfg.Keyboard.OSK != config.OSKDBus {
		return osk.Nop{}
	}
	panel, err := osk.ConnectSession(osk.DBusConfig{
		BusName:    cfg.Keyboard.DBus.BusName,
		ObjectPath: cfg.Keyboard.DBus.ObjectPath,
		Interface:  cfg.Keyboard.DBus.Interface,
	})
	if err != nil {
		logger.Warn("on-screen keyboard unavailable", "error", err)
		return osk.Nop{}
	}
	return panel
}
