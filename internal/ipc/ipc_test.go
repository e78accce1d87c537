package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbridge/internal/channel"
	"textbridge/internal/keyevent"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := NewMessage(MsgPlatformMessage, 42, []byte(`{"channel":"x"}`))
	msg.Header.Flags = FlagExpectReply

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))
	assert.Equal(t, HeaderSize+len(msg.Payload), buf.Len())
	assert.Equal(t, []byte("TBRG"), buf.Bytes()[:4])

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, got.Header)
	assert.Equal(t, msg.Payload, got.Payload)
	assert.True(t, got.ExpectsReply())
}

func TestReadHeaderRejects(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		h := NewMessage(MsgPing, 1, nil).Header
		h.Magic = 0x57495043
		_, err := ReadHeader(bytes.NewReader(h.bytes()))
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("newer version", func(t *testing.T) {
		h := NewMessage(MsgPing, 1, nil).Header
		h.Version = ProtocolVersion + 1
		_, err := ReadHeader(bytes.NewReader(h.bytes()))
		assert.Error(t, err)
	})

	t.Run("oversized payload", func(t *testing.T) {
		h := NewMessage(MsgPing, 1, nil).Header
		h.Length = MaxPayload + 1
		_, err := ReadHeader(bytes.NewReader(h.bytes()))
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadHeader(bytes.NewReader([]byte("TBRG")))
		assert.Error(t, err)
	})
}

func TestKeyEventWire(t *testing.T) {
	ev := keyevent.Event{Type: keyevent.Up, ScanCode: 36, Keysym: keyevent.KeyReturn, Modifiers: keyevent.ModShift}
	back, err := NewKeyEvent(ev).Event()
	require.NoError(t, err)
	assert.Equal(t, ev, back)

	_, err = KeyEvent{Type: "keypress"}.Event()
	assert.Error(t, err)
}

// pair returns two served connections joined by net.Pipe.
func pair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	ca, cb := NewConn(a, nil), NewConn(b, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	for _, c := range []*Conn{ca, cb} {
		go func(c *Conn) {
			c.Serve(ctx)
			done <- struct{}{}
		}(c)
	}
	t.Cleanup(func() {
		cancel()
		<-done
		<-done
	})
	return ca, cb
}

func TestConnCall(t *testing.T) {
	platform, engine := pair(t)
	platform.SetMessageHandler("echo", func(msg []byte, reply channel.BinaryReply) {
		reply(append([]byte("echo:"), msg...))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := engine.Call(ctx, "echo", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", string(reply))

	reply, err = engine.Call(ctx, "nobody", []byte("hi"))
	require.NoError(t, err)
	assert.Empty(t, reply, "unhandled channels answer empty")
}

func TestConnPing(t *testing.T) {
	a, _ := pair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, a.Ping(ctx))
}

func TestConnKeyEvents(t *testing.T) {
	platform, engine := pair(t)
	got := make(chan keyevent.Event, 1)
	platform.SetKeyHandler(func(ev keyevent.Event) { got <- ev })

	ev := keyevent.Event{Type: keyevent.Down, ScanCode: 38, Keysym: 'a'}
	require.NoError(t, engine.SendKeyEvent(ev))

	select {
	case e := <-got:
		assert.Equal(t, ev, e)
	case <-time.After(5 * time.Second):
		t.Fatal("key event not delivered")
	}
}

func TestConnMethodChannel(t *testing.T) {
	platform, engine := pair(t)
	channel.NewMethodChannel(platform, "calc").SetMethodCallHandler(func(call *channel.MethodCall, result channel.MethodResult) {
		if call.Method != "double" {
			result.NotImplemented()
			return
		}
		var n int
		if err := call.DecodeArgs(&n); err != nil {
			result.Error("Bad Arguments", err.Error(), nil)
			return
		}
		result.Success(n * 2)
	})

	type outcome struct {
		result any
		code   string
	}
	got := make(chan outcome, 1)
	err := channel.NewMethodChannel(engine, "calc").InvokeMethod("double", 21, channel.ResultFunctions{
		OnSuccess: func(r any) { got <- outcome{result: r} },
		OnError:   func(code, _ string, _ any) { got <- outcome{code: code} },
	})
	require.NoError(t, err)

	select {
	case o := <-got:
		assert.Empty(t, o.code)
		assert.JSONEq(t, `42`, string(o.result.(json.RawMessage)))
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
}

func TestConnCloseFailsPending(t *testing.T) {
	a, b := net.Pipe()
	platform := NewConn(a, nil)
	defer b.Close()

	served := make(chan error, 1)
	go func() { served <- platform.Serve(context.Background()) }()

	// Drain the outgoing request so the write completes.
	go ReadMessage(b)

	replied := make(chan []byte, 1)
	require.NoError(t, platform.Send("x", []byte("1"), func(r []byte) { replied <- r }))
	require.NoError(t, platform.Close())

	select {
	case r := <-replied:
		assert.Nil(t, r)
	case <-time.After(5 * time.Second):
		t.Fatal("pending reply not released")
	}
	assert.NoError(t, <-served)

	assert.ErrorIs(t, platform.Send("x", nil, nil), ErrClosed)
}

func TestConnOnCloseRunsBeforePendingReplies(t *testing.T) {
	a, b := net.Pipe()
	platform := NewConn(a, nil)

	order := make(chan string, 2)
	platform.OnClose(func() { order <- "closed" })

	served := make(chan error, 1)
	go func() { served <- platform.Serve(context.Background()) }()

	go ReadMessage(b)
	require.NoError(t, platform.Send("x", []byte("1"), func(r []byte) {
		assert.Nil(t, r)
		order <- "reply"
	}))

	// The peer hanging up ends Serve the same way as a local Close.
	require.NoError(t, b.Close())
	require.NoError(t, <-served)

	assert.Equal(t, "closed", <-order)
	assert.Equal(t, "reply", <-order)
	assert.ErrorIs(t, platform.Send("x", nil, nil), ErrClosed)
}

func TestServer(t *testing.T) {
	dir, err := os.MkdirTemp("", "tb")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")

	torndown := make(chan struct{})
	srv := NewServer(ServerConfig{SocketPath: sock, RequireSameUser: true}, func(c *Conn) func() {
		c.SetMessageHandler("hello", func(_ []byte, reply channel.BinaryReply) {
			reply([]byte("world"))
		})
		return func() { close(torndown) }
	}, nil)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	info, err := os.Stat(sock)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.True(t, IsSocketListening(sock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, sock, nil)
	require.NoError(t, err)
	go c.Serve(ctx)

	reply, err := c.Call(ctx, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "world", string(reply))
	assert.Equal(t, 1, srv.ConnCount())

	c.Close()
	select {
	case <-torndown:
	case <-time.After(5 * time.Second):
		t.Fatal("teardown not called")
	}

	require.NoError(t, srv.Stop())
	_, err = os.Stat(sock)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupSocket(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CleanupSocket(filepath.Join(dir, "missing")))

	regular := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(regular, nil, 0600))
	assert.Error(t, CleanupSocket(regular))
	_, err := os.Stat(regular)
	assert.NoError(t, err, "non-socket files are kept")
}

func TestPeerIsCurrentUser(t *testing.T) {
	dir, err := os.MkdirTemp("", "tb")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	ln, err := net.Listen("unix", filepath.Join(dir, "p.sock"))
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	client, err := net.Dial("unix", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	ok, err := PeerIsCurrentUser(server)
	if errors.Is(err, ErrPeerCredentialsUnsupported) {
		t.Skip(err)
	}
	require.NoError(t, err)
	assert.True(t, ok)

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	_, err = PeerIsCurrentUser(a)
	assert.Error(t, err)
}
