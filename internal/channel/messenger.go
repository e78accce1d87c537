// Package channel implements named message channels between the platform
// and the UI engine.
//
// A BinaryMessenger moves opaque byte messages between the two sides.
// MethodChannel layers method calls with success/error/not-implemented
// results on top of it, and MessageChannel exchanges plain JSON messages.
// Both use the JSON codecs in this package.
package channel

import "errors"

// ErrNoMessenger is returned when a channel is used without a messenger.
var ErrNoMessenger = errors.New("channel: no messenger")

// BinaryReply receives the reply to a message. A nil or empty reply means
// the receiver did not handle the message.
type BinaryReply func(reply []byte)

// BinaryMessageHandler handles one incoming message. It must call reply
// exactly once, possibly later on the same dispatch loop.
type BinaryMessageHandler func(message []byte, reply BinaryReply)

// BinaryMessenger sends and receives messages on named channels.
type BinaryMessenger interface {
	// Send delivers message on channel. reply may be nil when no answer
	// is expected.
	Send(channel string, message []byte, reply BinaryReply) error

	// SetMessageHandler registers handler for channel, replacing any
	// previous one. A nil handler unregisters the channel.
	SetMessageHandler(channel string, handler BinaryMessageHandler)
}
