package textinput

import (
	"fmt"

	"textbridge/internal/channel"
)

// Error codes reported to the engine.
const (
	ErrorBadArguments        = "Bad Arguments"
	ErrorInternalConsistency = "Internal Consistency Error"
)

func badArguments(format string, args ...any) *channel.MethodError {
	return &channel.MethodError{Code: ErrorBadArguments, Message: fmt.Sprintf(format, args...)}
}

func internalConsistency(format string, args ...any) *channel.MethodError {
	return &channel.MethodError{Code: ErrorInternalConsistency, Message: fmt.Sprintf(format, args...)}
}

func replyError(result channel.MethodResult, err *channel.MethodError) {
	result.Error(err.Code, err.Message, err.Details)
}
