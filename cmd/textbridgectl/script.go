package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"textbridge/internal/channel"
	"textbridge/internal/ipc"
	"textbridge/internal/keyevent"
	"textbridge/internal/textinput"
)

// Runner plays the engine side of a bridge connection from a line-based
// script and prints what the bridge sends back.
//
// Script commands:
//
//	setClient <id> <inputAction> <inputType>
//	setEditingState <json>
//	clearClient | show | hide
//	call <method> [json]
//	key [down|up] <key>        key is a keysym name or character with
//	                           optional shift+ ctrl+ alt+ super+ prefixes
//	type <text>
//	handled true|false         verdict returned for forwarded key events
//	wait <duration>
//	ping
type Runner struct {
	conn      *ipc.Conn
	textinput *channel.MethodChannel
	timeout   time.Duration

	outMu sync.Mutex
	out   io.Writer

	handledMu sync.Mutex
	handled   bool

	scanCode uint32
}

// NewRunner registers the engine handlers on conn. conn must be served by
// the caller.
func NewRunner(conn *ipc.Conn, out io.Writer) *Runner {
	r := &Runner{
		conn:      conn,
		textinput: channel.NewMethodChannel(conn, textinput.ChannelName),
		timeout:   5 * time.Second,
		out:       out,
	}
	r.textinput.SetMethodCallHandler(func(call *channel.MethodCall, result channel.MethodResult) {
		r.printf("<- %s %s\n", call.Method, compact(call.Args))
		result.Success(nil)
	})
	channel.NewMessageChannel(conn, keyevent.ChannelName).SetMessageHandler(func(raw json.RawMessage, reply func(any)) {
		r.handledMu.Lock()
		handled := r.handled
		r.handledMu.Unlock()
		reply(keyevent.Response{Handled: handled})
	})
	return r
}

func (r *Runner) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Run executes every command in script. It stops at the first command
// that fails to parse or send; method errors are printed, not returned.
func (r *Runner) Run(ctx context.Context, script io.Reader) error {
	sc := bufio.NewScanner(script)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := r.exec(ctx, text); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func (r *Runner) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "setClient":
		fields := strings.Fields(rest)
		if len(fields) != 3 {
			return fmt.Errorf("usage: setClient <id> <inputAction> <inputType>")
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("client id: %w", err)
		}
		return r.call(ctx, textinput.MethodSetClient, []any{id, textinput.ClientConfig{
			InputAction: fields[1],
			InputType:   textinput.InputType{Name: fields[2]},
		}})

	case "setEditingState":
		if !json.Valid([]byte(rest)) {
			return fmt.Errorf("setEditingState: invalid JSON")
		}
		return r.call(ctx, textinput.MethodSetEditingState, json.RawMessage(rest))

	case "clearClient":
		return r.call(ctx, textinput.MethodClearClient, nil)
	case "show":
		return r.call(ctx, textinput.MethodShow, nil)
	case "hide":
		return r.call(ctx, textinput.MethodHide, nil)

	case "call":
		method, args, _ := strings.Cut(rest, " ")
		if method == "" {
			return fmt.Errorf("usage: call <method> [json]")
		}
		var payload any
		if args = strings.TrimSpace(args); args != "" {
			if !json.Valid([]byte(args)) {
				return fmt.Errorf("call: invalid JSON")
			}
			payload = json.RawMessage(args)
		}
		return r.call(ctx, method, payload)

	case "key":
		return r.key(rest)

	case "type":
		for _, c := range rest {
			if err := r.press(keyevent.FromRune(c), 0, true, true); err != nil {
				return err
			}
		}
		return nil

	case "handled":
		v, err := strconv.ParseBool(rest)
		if err != nil {
			return fmt.Errorf("handled: %w", err)
		}
		r.handledMu.Lock()
		r.handled = v
		r.handledMu.Unlock()
		return nil

	case "wait":
		d, err := time.ParseDuration(rest)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case "ping":
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if err := r.conn.Ping(ctx); err != nil {
			return err
		}
		r.printf("-> pong\n")
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (r *Runner) key(spec string) error {
	fields := strings.Fields(spec)
	down, up := true, true
	if len(fields) == 2 {
		switch fields[0] {
		case "down":
			up = false
		case "up":
			down = false
		default:
			return fmt.Errorf("key: expected down or up, got %q", fields[0])
		}
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return fmt.Errorf("usage: key [down|up] <key>")
	}
	sym, mods, err := parseKeySpec(fields[0])
	if err != nil {
		return err
	}
	return r.press(sym, mods, down, up)
}

func (r *Runner) press(sym keyevent.Keysym, mods keyevent.Modifiers, down, up bool) error {
	// Each key gets its own scan code so transitions pair up in the
	// bridge's pending table.
	r.scanCode++
	ev := keyevent.Event{ScanCode: r.scanCode, Keysym: sym, Modifiers: mods}
	if down {
		ev.Type = keyevent.Down
		if err := r.conn.SendKeyEvent(ev); err != nil {
			return err
		}
	}
	if up {
		ev.Type = keyevent.Up
		if err := r.conn.SendKeyEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// call invokes a text input method and prints its outcome.
func (r *Runner) call(ctx context.Context, method string, args any) error {
	done := make(chan string, 1)
	err := r.textinput.InvokeMethod(method, args, channel.ResultFunctions{
		OnSuccess: func(any) { done <- "ok" },
		OnError: func(code, message string, _ any) {
			done <- fmt.Sprintf("error %s: %s", code, message)
		},
		OnNotImplemented: func() { done <- "not implemented" },
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	select {
	case outcome := <-done:
		r.printf("-> %s: %s\n", method, outcome)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

var modifierNames = map[string]keyevent.Modifiers{
	"shift": keyevent.ModShift,
	"ctrl":  keyevent.ModControl,
	"alt":   keyevent.ModAlt,
	"super": keyevent.ModSuper,
}

// parseKeySpec parses keys like "a", "Return", "ctrl+a" or "shift+Left".
// A lone "+" is the plus key.
func parseKeySpec(spec string) (keyevent.Keysym, keyevent.Modifiers, error) {
	var mods keyevent.Modifiers
	for {
		prefix, rest, ok := strings.Cut(spec, "+")
		if !ok || rest == "" {
			break
		}
		m, known := modifierNames[strings.ToLower(prefix)]
		if !known {
			return 0, 0, fmt.Errorf("unknown modifier %q", prefix)
		}
		mods |= m
		spec = rest
	}
	sym, err := keyevent.ParseKeysym(spec)
	if err != nil {
		return 0, 0, err
	}
	return sym, mods, nil
}

func compact(raw json.RawMessage) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return string(raw)
	}
	return strings.TrimSpace(b.String())
}
