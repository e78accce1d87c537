package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"textbridge/internal/config"
	"textbridge/internal/ipc"
	"textbridge/internal/keyevent"
	"textbridge/internal/metrics"
	"textbridge/internal/osk"
	"textbridge/internal/textinput"
)

// Daemon serves one text input bridge per engine connection.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	panel   osk.Panel
	server  *ipc.Server
	metrics *metrics.Bridge

	httpServer *http.Server
	metricsLn  net.Listener
	running    atomic.Bool
	nextID     atomic.Uint64
}

// NewDaemon creates a daemon. A nil panel disables the on-screen keyboard.
func NewDaemon(cfg *config.Config, panel osk.Panel, logger *slog.Logger) *Daemon {
	if panel == nil {
		panel = osk.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		panel:   panel,
		metrics: metrics.NewBridge(metrics.NewRegistry("textbridge")),
	}
	d.server = ipc.NewServer(ipc.ServerConfig{
		SocketPath:      cfg.Transport.SocketPath,
		RequireSameUser: cfg.Transport.RequireSameUser,
		MaxConnections:  cfg.Transport.MaxConnections,
	}, d.setupConn, logger.With("component", "ipc"))
	return d
}

// Start listens for engines and, when configured, serves metrics.
func (d *Daemon) Start() error {
	if d.cfg.Metrics.Listen != "" {
		ln, err := net.Listen("tcp", d.cfg.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
		d.metricsLn = ln
		d.httpServer = &http.Server{
			Handler:           metrics.NewMux(d.metrics.Registry(), d.running.Load),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := d.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("metrics server", "error", err)
			}
		}()
	}

	if err := d.server.Start(); err != nil {
		if d.httpServer != nil {
			d.httpServer.Close()
		}
		return fmt.Errorf("start server: %w", err)
	}
	d.running.Store(true)
	return nil
}

// Stop closes every engine connection, removes the socket and stops the
// metrics endpoint.
func (d *Daemon) Stop() error {
	d.running.Store(false)
	err := d.server.Stop()
	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if herr := d.httpServer.Shutdown(ctx); herr != nil && err == nil {
			err = herr
		}
	}
	return err
}

// SocketPath returns the socket path.
func (d *Daemon) SocketPath() string {
	return d.server.SocketPath()
}

// MetricsAddr returns the metrics listen address, or "" when disabled.
func (d *Daemon) MetricsAddr() string {
	if d.metricsLn == nil {
		return ""
	}
	return d.metricsLn.Addr().String()
}

// setupConn builds the key dispatch chain and the text input plugin for
// one engine. Everything it creates runs on the connection's read loop.
func (d *Daemon) setupConn(c *ipc.Conn) func() {
	id := d.nextID.Add(1)
	logger := d.logger.With("conn", id)
	messenger := d.metrics.Instrument(c)
	d.metrics.ConnectionOpened()

	dispatcher := keyevent.NewDispatcher()

	// A nil *Forwarder must not reach the adapter as a non-nil interface.
	var lookup textinput.DelegateLookup
	if d.cfg.KeyEvents.Forward {
		forwarder := keyevent.NewForwarder(messenger, dispatcher, logger.With("component", "keyevent"))
		dispatcher.Register("keyevent", forwarder, keyevent.PriorityHigh)
		c.OnClose(forwarder.Close)
		lookup = forwarder
	}

	plugin := textinput.New(messenger, d.panel, logger.With("component", "textinput"))
	dispatcher.Register("textinput", textinput.NewKeyAdapter(plugin, lookup), keyevent.PriorityNormal)

	c.SetKeyHandler(func(ev keyevent.Event) {
		claimed := dispatcher.Dispatch(ev)
		d.metrics.KeyEvent(claimed)
		if !claimed {
			logger.Debug("key event unclaimed", "event", ev.String())
		}
	})
	logger.Info("engine connected", "consumers", dispatcher.Names())

	return func() {
		c.SetKeyHandler(nil)
		plugin.Close()
		d.metrics.ConnectionClosed()
		logger.Info("engine disconnected")
	}
}
