package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MethodCall is a decoded method invocation. Args stays raw so each
// handler can validate and decode it into its own record type.
type MethodCall struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// HasArgs reports whether the call carries a non-null argument.
func (c *MethodCall) HasArgs() bool {
	trimmed := bytes.TrimSpace(c.Args)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// DecodeArgs unmarshals the arguments into v.
func (c *MethodCall) DecodeArgs(v any) error {
	if !c.HasArgs() {
		return errors.New("channel: method call has no arguments")
	}
	if err := json.Unmarshal(c.Args, v); err != nil {
		return fmt.Errorf("channel: decode %s args: %w", c.Method, err)
	}
	return nil
}

// JSONMethodCodec encodes method calls as {"method": ..., "args": ...}.
// Success replies are [result], errors are [code, message, details] and an
// empty reply means not implemented.
type JSONMethodCodec struct{}

// EncodeMethodCall encodes a call to method with args.
func (JSONMethodCodec) EncodeMethodCall(method string, args any) ([]byte, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("channel: encode %s args: %w", method, err)
	}
	return json.Marshal(MethodCall{Method: method, Args: raw})
}

// DecodeMethodCall decodes a method call message.
func (JSONMethodCodec) DecodeMethodCall(data []byte) (*MethodCall, error) {
	var call MethodCall
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("channel: decode method call: %w", err)
	}
	if call.Method == "" {
		return nil, errors.New("channel: method call without method name")
	}
	return &call, nil
}

// EncodeSuccessEnvelope encodes a successful result.
func (JSONMethodCodec) EncodeSuccessEnvelope(result any) ([]byte, error) {
	return json.Marshal([]any{result})
}

// EncodeErrorEnvelope encodes an error result.
func (JSONMethodCodec) EncodeErrorEnvelope(code, message string, details any) ([]byte, error) {
	return json.Marshal([]any{code, message, details})
}

// DecodeEnvelope decodes a reply and reports it to result.
func (JSONMethodCodec) DecodeEnvelope(data []byte, result MethodResult) error {
	if len(bytes.TrimSpace(data)) == 0 {
		result.NotImplemented()
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("channel: decode envelope: %w", err)
	}
	switch len(parts) {
	case 1:
		result.Success(parts[0])
	case 3:
		var code string
		if err := json.Unmarshal(parts[0], &code); err != nil {
			return fmt.Errorf("channel: decode error code: %w", err)
		}
		var message *string
		if err := json.Unmarshal(parts[1], &message); err != nil {
			return fmt.Errorf("channel: decode error message: %w", err)
		}
		msg := ""
		if message != nil {
			msg = *message
		}
		result.Error(code, msg, parts[2])
	default:
		return fmt.Errorf("channel: envelope has %d elements", len(parts))
	}
	return nil
}

// JSONMessageCodec encodes plain messages as JSON values.
type JSONMessageCodec struct{}

// EncodeMessage encodes v.
func (JSONMessageCodec) EncodeMessage(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeMessage returns the raw JSON value of data, or nil for an empty
// message.
func (JSONMessageCodec) DecodeMessage(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("channel: message is not valid JSON")
	}
	return json.RawMessage(trimmed), nil
}
