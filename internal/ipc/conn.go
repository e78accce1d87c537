package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"textbridge/internal/channel"
	"textbridge/internal/keyevent"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("ipc: connection closed")

const writeTimeout = 10 * time.Second

// KeyHandler receives key events read from the connection.
type KeyHandler func(ev keyevent.Event)

// Conn is one end of a bridge connection. It implements
// channel.BinaryMessenger for platform messages and delivers key events to
// a KeyHandler.
//
// Handlers and reply callbacks all run on the goroutine calling Serve.
// Send, SendKeyEvent, Call and Ping may be used from any goroutine.
type Conn struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]channel.BinaryMessageHandler
	keys     KeyHandler
	pending  map[uint32]func(*Message)
	onClose  []func()

	nextID    atomic.Uint32
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		conn:     conn,
		logger:   logger,
		handlers: make(map[string]channel.BinaryMessageHandler),
		pending:  make(map[uint32]func(*Message)),
	}
}

// Dial connects to a bridge socket.
func Dial(ctx context.Context, socketPath string, logger *slog.Logger) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", socketPath, err)
	}
	return NewConn(conn, logger), nil
}

// Close closes the connection. Serve returns and pending replies receive
// nil.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
	})
	return err
}

// SetMessageHandler registers handler for channel. A nil handler removes
// the registration.
func (c *Conn) SetMessageHandler(channel string, handler channel.BinaryMessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.handlers, channel)
		return
	}
	c.handlers[channel] = handler
}

// SetKeyHandler registers the receiver of key events.
func (c *Conn) SetKeyHandler(h KeyHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = h
}

// OnClose registers fn to run on the Serve goroutine when the connection
// shuts down, before pending replies are released with nil.
func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// Send sends a platform message. When reply is not nil the peer is asked
// to answer and reply is called with its response, or with nil when the
// peer has no handler or the connection closes first.
func (c *Conn) Send(ch string, message []byte, reply channel.BinaryReply) error {
	id := c.nextID.Add(1)
	payload, err := Encode(PlatformMessage{Channel: ch, Data: message})
	if err != nil {
		return fmt.Errorf("ipc: encode message on %s: %w", ch, err)
	}
	msg := NewMessage(MsgPlatformMessage, id, payload)

	if reply != nil {
		msg.Header.Flags |= FlagExpectReply
		err := c.expect(id, func(resp *Message) {
			if resp == nil || resp.Header.Type != MsgPlatformResponse {
				reply(nil)
				return
			}
			reply(resp.Payload)
		})
		if err != nil {
			return err
		}
	}
	if err := c.write(msg); err != nil {
		c.take(id)
		return err
	}
	return nil
}

// Call sends a platform message and waits for the reply. Serve must be
// running on another goroutine.
func (c *Conn) Call(ctx context.Context, ch string, message []byte) ([]byte, error) {
	done := make(chan []byte, 1)
	if err := c.Send(ch, message, func(reply []byte) { done <- reply }); err != nil {
		return nil, err
	}
	select {
	case reply := <-done:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendKeyEvent sends a raw key event to the peer.
func (c *Conn) SendKeyEvent(ev keyevent.Event) error {
	msg, err := NewResponse(MsgKeyEvent, c.nextID.Add(1), NewKeyEvent(ev))
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Ping checks that the peer is serving. Serve must be running on another
// goroutine.
func (c *Conn) Ping(ctx context.Context) error {
	id := c.nextID.Add(1)
	done := make(chan *Message, 1)
	if err := c.expect(id, func(m *Message) { done <- m }); err != nil {
		return err
	}
	if err := c.write(NewMessage(MsgPing, id, nil)); err != nil {
		c.take(id)
		return err
	}
	select {
	case m := <-done:
		if m == nil {
			return ErrClosed
		}
		if m.Header.Type != MsgPong {
			return fmt.Errorf("ipc: unexpected %s in reply to ping", m.Header.Type)
		}
		return nil
	case <-ctx.Done():
		c.take(id)
		return ctx.Err()
	}
}

// Serve reads messages until the connection closes or ctx is done. It
// returns nil on a clean shutdown.
func (c *Conn) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()
	defer c.shutdown()

	for {
		msg, err := ReadMessage(c.conn)
		if err != nil {
			if c.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			c.Close()
			return fmt.Errorf("ipc: read: %w", err)
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg *Message) {
	id := msg.Header.RequestID
	switch msg.Header.Type {
	case MsgPing:
		c.writeLogged(NewMessage(MsgPong, id, nil))

	case MsgPong, MsgPlatformResponse:
		if fn := c.take(id); fn != nil {
			fn(msg)
		}

	case MsgError:
		var resp ErrorResponse
		_ = Decode(msg.Payload, &resp)
		c.logger.Warn("peer reported error", "request_id", id, "code", resp.Code, "message", resp.Message)
		if fn := c.take(id); fn != nil {
			fn(msg)
		}

	case MsgPlatformMessage:
		c.handlePlatformMessage(msg)

	case MsgKeyEvent:
		c.handleKeyEvent(msg)

	default:
		c.writeLogged(NewErrorMessage(id, ErrUnsupported, fmt.Sprintf("unsupported message %s", msg.Header.Type)))
	}
}

func (c *Conn) handlePlatformMessage(msg *Message) {
	id := msg.Header.RequestID
	var pm PlatformMessage
	if err := Decode(msg.Payload, &pm); err != nil {
		c.writeLogged(NewErrorMessage(id, ErrInvalidRequest, "invalid platform message"))
		return
	}

	reply := func([]byte) {}
	if msg.ExpectsReply() {
		var once sync.Once
		reply = func(data []byte) {
			once.Do(func() {
				c.writeLogged(NewMessage(MsgPlatformResponse, id, data))
			})
		}
	}

	c.mu.Lock()
	h := c.handlers[pm.Channel]
	c.mu.Unlock()
	if h == nil {
		c.logger.Debug("no handler for channel", "channel", pm.Channel)
		reply(nil)
		return
	}
	h(pm.Data, reply)
}

func (c *Conn) handleKeyEvent(msg *Message) {
	var wire KeyEvent
	if err := Decode(msg.Payload, &wire); err != nil {
		c.writeLogged(NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid key event"))
		return
	}
	ev, err := wire.Event()
	if err != nil {
		c.writeLogged(NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()))
		return
	}

	c.mu.Lock()
	h := c.keys
	c.mu.Unlock()
	if h == nil {
		c.logger.Debug("key event dropped", "event", ev.String())
		return
	}
	h(ev)
}

func (c *Conn) expect(id uint32, fn func(*Message)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return ErrClosed
	}
	c.pending[id] = fn
	return nil
}

func (c *Conn) take(id uint32) func(*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn := c.pending[id]
	delete(c.pending, id)
	return fn
}

func (c *Conn) shutdown() {
	c.Close()
	c.mu.Lock()
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	c.failPending()
}

func (c *Conn) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn(nil)
	}
}

func (c *Conn) write(msg *Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := msg.Write(c.conn); err != nil {
		return fmt.Errorf("ipc: write %s: %w", msg.Header.Type, err)
	}
	return nil
}

func (c *Conn) writeLogged(msg *Message) {
	if err := c.write(msg); err != nil {
		c.logger.Warn("write failed", "type", msg.Header.Type.String(), "error", err)
	}
}
