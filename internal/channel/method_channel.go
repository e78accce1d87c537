package channel

// MethodCallHandler handles one decoded method call and reports its
// outcome through result.
type MethodCallHandler func(call *MethodCall, result MethodResult)

// MethodChannel exchanges method calls on one named channel.
type MethodChannel struct {
	messenger BinaryMessenger
	name      string
	codec     JSONMethodCodec
}

// NewMethodChannel returns a method channel named name on messenger.
func NewMethodChannel(messenger BinaryMessenger, name string) *MethodChannel {
	return &MethodChannel{messenger: messenger, name: name}
}

// Name returns the channel name.
func (c *MethodChannel) Name() string {
	return c.name
}

// InvokeMethod sends a call to the other side. result may be nil when the
// caller does not care about the outcome.
func (c *MethodChannel) InvokeMethod(method string, args any, result MethodResult) error {
	if c.messenger == nil {
		return ErrNoMessenger
	}
	msg, err := c.codec.EncodeMethodCall(method, args)
	if err != nil {
		return err
	}
	var reply BinaryReply
	if result != nil {
		reply = func(data []byte) {
			if err := c.codec.DecodeEnvelope(data, result); err != nil {
				result.Error("Decoding Error", err.Error(), nil)
			}
		}
	}
	return c.messenger.Send(c.name, msg, reply)
}

// SetMethodCallHandler registers handler for incoming calls. A nil handler
// unregisters the channel. Messages that do not decode as a method call
// get an empty reply.
func (c *MethodChannel) SetMethodCallHandler(handler MethodCallHandler) {
	if c.messenger == nil {
		return
	}
	if handler == nil {
		c.messenger.SetMessageHandler(c.name, nil)
		return
	}
	c.messenger.SetMessageHandler(c.name, func(message []byte, reply BinaryReply) {
		call, err := c.codec.DecodeMethodCall(message)
		if err != nil {
			if reply != nil {
				reply(nil)
			}
			return
		}
		handler(call, &replyResult{codec: c.codec, reply: reply})
	})
}
