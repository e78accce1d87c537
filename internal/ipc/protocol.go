// Package ipc carries platform messages and raw key events between the
// bridge daemon and an engine over a unix socket.
//
// Every message is a 16 byte big-endian header followed by a payload:
//
//	magic "TBRG" | version | flags | type | request id | payload length
//
// Both ends speak the same protocol through Conn. Platform messages name a
// channel and carry opaque bytes; a sender that wants an answer sets
// FlagExpectReply and gets a PlatformResponse with the same request id.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"textbridge/internal/keyevent"
)

// Peers reject headers with a newer version or a different magic.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x54425247 // "TBRG"
)

// MaxPayload bounds the payload of a single message.
const MaxPayload = 16 * 1024 * 1024

// MessageType selects how a payload is interpreted.
type MessageType uint16

const (
	// Liveness and failures.
	MsgPing  MessageType = 0x0001
	MsgPong  MessageType = 0x0002
	MsgError MessageType = 0x0003

	// Platform channels.
	MsgPlatformMessage  MessageType = 0x0100
	MsgPlatformResponse MessageType = 0x0101

	// Raw keyboard input.
	MsgKeyEvent MessageType = 0x0200
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	case MsgError:
		return "error"
	case MsgPlatformMessage:
		return "platform-message"
	case MsgPlatformResponse:
		return "platform-response"
	case MsgKeyEvent:
		return "key-event"
	default:
		return fmt.Sprintf("type(%#04x)", uint16(t))
	}
}

// Header precedes every payload on the wire.
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32 // pairs replies with requests
	Length    uint32 // payload bytes following the header
}

// HeaderSize is the encoded length of a Header.
const HeaderSize = 16

const (
	FlagExpectReply uint8 = 0x01
)

var (
	ErrBadMagic        = errors.New("ipc: invalid magic number")
	ErrPayloadTooLarge = errors.New("ipc: payload too large")
)

// Message is one framed unit.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage frames payload as a message of type msgType.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// ExpectsReply reports whether the sender waits for a PlatformResponse.
func (m *Message) ExpectsReply() bool {
	return m.Header.Flags&FlagExpectReply != 0
}

func (h *Header) bytes() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	return buf
}

// ReadHeader decodes and checks one header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("%w: %#x", ErrBadMagic, h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("ipc: unsupported protocol version: %d", h.Version)
	}
	if h.Length > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.Length)
	}
	return h, nil
}

// Write writes the header and payload in one call.
func (m *Message) Write(w io.Writer) error {
	if len(m.Payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(m.Payload))
	}
	m.Header.Length = uint32(len(m.Payload))
	_, err := w.Write(append(m.Header.bytes(), m.Payload...))
	return err
}

// ReadMessage reads a header and its payload from r.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PlatformMessage is the payload of MsgPlatformMessage.
type PlatformMessage struct {
	Channel string `json:"channel"`
	Data    []byte `json:"data,omitempty"`
}

// KeyEvent is the payload of MsgKeyEvent.
type KeyEvent struct {
	Type      string `json:"type"`
	ScanCode  uint32 `json:"scan_code"`
	Keysym    uint32 `json:"keysym"`
	Modifiers uint32 `json:"modifiers"`
}

// NewKeyEvent converts ev to its wire form.
func NewKeyEvent(ev keyevent.Event) KeyEvent {
	return KeyEvent{
		Type:      ev.Type.String(),
		ScanCode:  ev.ScanCode,
		Keysym:    uint32(ev.Keysym),
		Modifiers: uint32(ev.Modifiers),
	}
}

// Event converts k back to a key event.
func (k KeyEvent) Event() (keyevent.Event, error) {
	typ, err := keyevent.ParseType(k.Type)
	if err != nil {
		return keyevent.Event{}, err
	}
	return keyevent.Event{
		Type:      typ,
		ScanCode:  k.ScanCode,
		Keysym:    keyevent.Keysym(k.Keysym),
		Modifiers: keyevent.Modifiers(k.Modifiers),
	}, nil
}

// ErrorResponse is the payload of MsgError.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse codes.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrUnsupported    = 3
)

// Encode marshals a JSON payload.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a JSON payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage answers requestID with an ErrorResponse.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{Code: code, Message: message})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a message carrying v as its payload.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, fmt.Errorf("ipc: encode %s: %w", msgType, err)
	}
	return NewMessage(msgType, requestID, payload), nil
}
