package metrics

import (
	"net/http"
	"time"

	"textbridge/internal/channel"
)

// Bridge holds the daemon's metrics.
type Bridge struct {
	registry    *Registry
	connections *Gauge
}

// NewBridge registers the bridge metrics on registry.
func NewBridge(registry *Registry) *Bridge {
	return &Bridge{
		registry: registry,
		connections: registry.Gauge("connections",
			"Number of connected engines", nil),
	}
}

// Registry returns the underlying registry.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// ConnectionOpened counts a new engine connection.
func (b *Bridge) ConnectionOpened() {
	b.connections.Inc()
	b.registry.Counter("connections_total", "Total number of engine connections", nil).Inc()
}

// ConnectionClosed counts a closed engine connection.
func (b *Bridge) ConnectionClosed() {
	b.connections.Dec()
}

// Connections returns the number of connected engines.
func (b *Bridge) Connections() int64 {
	return b.connections.Value()
}

// KeyEvent counts a dispatched key event by whether a consumer claimed it.
func (b *Bridge) KeyEvent(claimed bool) {
	result := "unclaimed"
	if claimed {
		result = "claimed"
	}
	b.registry.Counter("key_events_total",
		"Total number of key events dispatched",
		Labels{"result": result}).Inc()
}

// Instrument wraps m so messages and reply times are counted per channel.
func (b *Bridge) Instrument(m channel.BinaryMessenger) channel.BinaryMessenger {
	return &instrumentedMessenger{inner: m, bridge: b}
}

func (b *Bridge) messages(direction, ch string) *Counter {
	return b.registry.Counter("messages_total",
		"Total number of platform messages by direction and channel",
		Labels{"direction": direction, "channel": ch})
}

func (b *Bridge) replyTime(ch string) *Histogram {
	return b.registry.Histogram("reply_seconds",
		"Time until the engine replied to a platform message",
		Labels{"channel": ch}, DurationBuckets)
}

type instrumentedMessenger struct {
	inner  channel.BinaryMessenger
	bridge *Bridge
}

func (m *instrumentedMessenger) Send(ch string, message []byte, reply channel.BinaryReply) error {
	m.bridge.messages("out", ch).Inc()
	if reply != nil {
		start := time.Now()
		next := reply
		reply = func(data []byte) {
			m.bridge.replyTime(ch).ObserveDuration(time.Since(start))
			next(data)
		}
	}
	return m.inner.Send(ch, message, reply)
}

func (m *instrumentedMessenger) SetMessageHandler(ch string, handler channel.BinaryMessageHandler) {
	if handler == nil {
		m.inner.SetMessageHandler(ch, nil)
		return
	}
	m.inner.SetMessageHandler(ch, func(message []byte, reply channel.BinaryReply) {
		m.bridge.messages("in", ch).Inc()
		handler(message, reply)
	})
}

// NewMux serves the registry on /metrics and a liveness probe on /healthz.
// healthy may be nil.
func NewMux(registry *Registry, healthy func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", registry.HTTPHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable\n"))
			return
		}
		w.Write([]byte("ok\n"))
	})
	return mux
}
