package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbridge/internal/channel"
)

func TestLabelsString(t *testing.T) {
	assert.Equal(t, "", Labels(nil).String())
	assert.Equal(t, `{a="1",b="x\"y"}`, Labels{"b": `x"y`, "a": "1"}.String())
}

func TestRegistrySeries(t *testing.T) {
	r := NewRegistry("tb")
	a := r.Counter("hits_total", "Hits", Labels{"k": "a"})
	a.Inc()
	assert.Same(t, a, r.Counter("hits_total", "Hits", Labels{"k": "a"}))
	assert.NotSame(t, a, r.Counter("hits_total", "Hits", Labels{"k": "b"}))

	assert.Panics(t, func() { r.Gauge("hits_total", "Hits", nil) })
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("tb")
	r.Counter("hits_total", "Hits", Labels{"k": "b"}).Add(2)
	r.Counter("hits_total", "Hits", Labels{"k": "a"}).Inc()
	g := r.Gauge("open", "Open things", nil)
	g.Inc()
	g.Inc()
	g.Dec()
	h := r.Histogram("wait_seconds", "Waits", Labels{"ch": "x"}, []float64{2, 1})
	h.Observe(0.5)
	h.Observe(1)
	h.Observe(4)

	var b strings.Builder
	require.NoError(t, r.WritePrometheus(&b))

	assert.Equal(t, `# HELP tb_hits_total Hits
# TYPE tb_hits_total counter
tb_hits_total{k="a"} 1
tb_hits_total{k="b"} 2
# HELP tb_open Open things
# TYPE tb_open gauge
tb_open 1
# HELP tb_wait_seconds Waits
# TYPE tb_wait_seconds histogram
tb_wait_seconds_bucket{ch="x",le="1"} 2
tb_wait_seconds_bucket{ch="x",le="2"} 2
tb_wait_seconds_bucket{ch="x",le="+Inf"} 3
tb_wait_seconds_sum{ch="x"} 5.5
tb_wait_seconds_count{ch="x"} 3
`, b.String())
}

func TestInstrumentedMessenger(t *testing.T) {
	b := NewBridge(NewRegistry("tb"))
	platform, engine := channel.NewPipe()
	m := b.Instrument(platform)

	m.SetMessageHandler("in", func(msg []byte, reply channel.BinaryReply) { reply(msg) })
	engine.SetMessageHandler("out", func(msg []byte, reply channel.BinaryReply) { reply(msg) })

	var got []byte
	require.NoError(t, m.Send("out", []byte("x"), func(r []byte) { got = r }))
	require.NoError(t, engine.Send("in", []byte("y"), func([]byte) {}))

	assert.Equal(t, []byte("x"), got)
	assert.EqualValues(t, 1, b.messages("out", "out").Value())
	assert.EqualValues(t, 1, b.messages("in", "in").Value())
	assert.EqualValues(t, 1, b.replyTime("out").Count())
}

func TestBridgeCounters(t *testing.T) {
	b := NewBridge(NewRegistry("tb"))
	b.ConnectionOpened()
	b.ConnectionOpened()
	b.ConnectionClosed()
	b.KeyEvent(true)
	b.KeyEvent(false)
	b.KeyEvent(false)

	assert.EqualValues(t, 1, b.Connections())
	assert.EqualValues(t, 2, b.Registry().Counter("connections_total", "", nil).Value())
	assert.EqualValues(t, 2, b.Registry().Counter("key_events_total", "", Labels{"result": "unclaimed"}).Value())
}

func TestMux(t *testing.T) {
	r := NewRegistry("tb")
	r.Counter("hits_total", "Hits", nil).Inc()
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(NewMux(r, healthy.Load))
	defer srv.Close()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tb_hits_total 1")

	resp, err = client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, err = client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
