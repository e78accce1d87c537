package channel

// PipeEnd is one side of an in-process messenger pair. Messages are
// delivered synchronously on the caller's goroutine, which keeps the
// single dispatch loop model intact for in-process wiring and tests.
type PipeEnd struct {
	peer     *PipeEnd
	handlers map[string]BinaryMessageHandler
}

// NewPipe returns two connected messengers.
func NewPipe() (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{handlers: make(map[string]BinaryMessageHandler)}
	b := &PipeEnd{handlers: make(map[string]BinaryMessageHandler)}
	a.peer, b.peer = b, a
	return a, b
}

// Send delivers message to the peer's handler for channel. When the peer
// has no handler the reply is called with nil.
func (p *PipeEnd) Send(channel string, message []byte, reply BinaryReply) error {
	h, ok := p.peer.handlers[channel]
	if !ok {
		if reply != nil {
			reply(nil)
		}
		return nil
	}
	if reply == nil {
		reply = func([]byte) {}
	}
	h(message, reply)
	return nil
}

// SetMessageHandler registers handler for channel.
func (p *PipeEnd) SetMessageHandler(channel string, handler BinaryMessageHandler) {
	if handler == nil {
		delete(p.handlers, channel)
		return
	}
	p.handlers[channel] = handler
}

