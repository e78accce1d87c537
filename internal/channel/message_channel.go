package channel

import "encoding/json"

// MessageReply receives the decoded reply to a message. raw is nil when
// the other side did not answer.
type MessageReply func(raw json.RawMessage, err error)

// MessageHandler handles one decoded message and answers through reply.
type MessageHandler func(message json.RawMessage, reply func(v any))

// MessageChannel exchanges JSON messages on one named channel.
type MessageChannel struct {
	messenger BinaryMessenger
	name      string
	codec     JSONMessageCodec
}

// NewMessageChannel returns a JSON message channel named name.
func NewMessageChannel(messenger BinaryMessenger, name string) *MessageChannel {
	return &MessageChannel{messenger: messenger, name: name}
}

// Name returns the channel name.
func (c *MessageChannel) Name() string {
	return c.name
}

// Send encodes message and sends it. reply may be nil.
func (c *MessageChannel) Send(message any, reply MessageReply) error {
	if c.messenger == nil {
		return ErrNoMessenger
	}
	data, err := c.codec.EncodeMessage(message)
	if err != nil {
		return err
	}
	var binReply BinaryReply
	if reply != nil {
		binReply = func(data []byte) {
			reply(c.codec.DecodeMessage(data))
		}
	}
	return c.messenger.Send(c.name, data, binReply)
}

// SetMessageHandler registers handler for incoming messages. A nil
// handler unregisters the channel.
func (c *MessageChannel) SetMessageHandler(handler MessageHandler) {
	if c.messenger == nil {
		return
	}
	if handler == nil {
		c.messenger.SetMessageHandler(c.name, nil)
		return
	}
	c.messenger.SetMessageHandler(c.name, func(message []byte, reply BinaryReply) {
		respond := func(v any) {
			if reply == nil {
				return
			}
			data, err := c.codec.EncodeMessage(v)
			if err != nil {
				data = nil
			}
			reply(data)
		}
		raw, err := c.codec.DecodeMessage(message)
		if err != nil {
			if reply != nil {
				reply(nil)
			}
			return
		}
		handler(raw, respond)
	})
}
