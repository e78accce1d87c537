package channel

import "fmt"

// MethodResult receives the outcome of a method call. Exactly one of its
// methods is called once per call.
type MethodResult interface {
	Success(result any)
	Error(code, message string, details any)
	NotImplemented()
}

// MethodError is an error result carried back to the caller.
type MethodError struct {
	Code    string
	Message string
	Details any
}

func (e *MethodError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ResultFunctions adapts plain functions to MethodResult. Nil fields are
// ignored.
type ResultFunctions struct {
	OnSuccess        func(result any)
	OnError          func(code, message string, details any)
	OnNotImplemented func()
}

func (r ResultFunctions) Success(result any) {
	if r.OnSuccess != nil {
		r.OnSuccess(result)
	}
}

func (r ResultFunctions) Error(code, message string, details any) {
	if r.OnError != nil {
		r.OnError(code, message, details)
	}
}

func (r ResultFunctions) NotImplemented() {
	if r.OnNotImplemented != nil {
		r.OnNotImplemented()
	}
}

// replyResult encodes a handler's result into the messenger reply.
type replyResult struct {
	codec JSONMethodCodec
	reply BinaryReply
	done  bool
}

func (r *replyResult) send(data []byte, err error) {
	if r.done {
		return
	}
	r.done = true
	if err != nil {
		data, _ = r.codec.EncodeErrorEnvelope("Encoding Error", err.Error(), nil)
	}
	if r.reply != nil {
		r.reply(data)
	}
}

func (r *replyResult) Success(result any) {
	r.send(r.codec.EncodeSuccessEnvelope(result))
}

func (r *replyResult) Error(code, message string, details any) {
	r.send(r.codec.EncodeErrorEnvelope(code, message, details))
}

func (r *replyResult) NotImplemented() {
	r.send(nil, nil)
}
