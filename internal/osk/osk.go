// Package osk toggles the platform's on-screen keyboard.
//
// The bridge only asks for the panel to be shown or hidden; what that means
// is up to the implementation. DBusPanel talks to a squeekboard-style
// service on the session bus, Nop does nothing.
package osk

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Panel is an input-method visibility toggle.
type Panel interface {
	Show() error
	Hide() error
}

// Nop is a Panel that does nothing.
type Nop struct{}

func (Nop) Show() error { return nil }
func (Nop) Hide() error { return nil }

// DBusConfig names the on-screen keyboard service.
type DBusConfig struct {
	BusName    string
	ObjectPath string
	Interface  string
}

// DefaultDBusConfig returns the names used by squeekboard.
func DefaultDBusConfig() DBusConfig {
	return DBusConfig{
		BusName:    "sm.puri.OSK0",
		ObjectPath: "/sm/puri/OSK0",
		Interface:  "sm.puri.OSK0",
	}
}

// caller is the part of dbus.BusObject the panel uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusPanel shows and hides the keyboard with SetVisible calls.
type DBusPanel struct {
	obj    caller
	method string
}

// NewDBusPanel returns a panel calling the service named in cfg on conn.
func NewDBusPanel(conn *dbus.Conn, cfg DBusConfig) *DBusPanel {
	return newDBusPanel(conn.Object(cfg.BusName, dbus.ObjectPath(cfg.ObjectPath)), cfg.Interface)
}

func newDBusPanel(obj caller, iface string) *DBusPanel {
	return &DBusPanel{obj: obj, method: iface + ".SetVisible"}
}

// ConnectSession connects to the session bus and returns a panel on it.
func ConnectSession(cfg DBusConfig) (*DBusPanel, error) {
	if !dbus.ObjectPath(cfg.ObjectPath).IsValid() {
		return nil, fmt.Errorf("osk: invalid object path %q", cfg.ObjectPath)
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("osk: connect session bus: %w", err)
	}
	return NewDBusPanel(conn, cfg), nil
}

func (p *DBusPanel) Show() error {
	return p.setVisible(true)
}

func (p *DBusPanel) Hide() error {
	return p.setVisible(false)
}

func (p *DBusPanel) setVisible(visible bool) error {
	if call := p.obj.Call(p.method, 0, visible); call.Err != nil {
		return fmt.Errorf("osk: %s(%t): %w", p.method, visible, call.Err)
	}
	return nil
}
