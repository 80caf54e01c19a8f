package bridge

import (
	"errors"
	"fmt"

	"github.com/stealthrocket/cloak/internal/netengine"
)

var (
	// ErrCanceled is delivered when the engine canceled a request.
	ErrCanceled = errors.New("Canceled")

	// ErrChannelClosed is reported when a result channel is closed without
	// a terminal event having delivered an outcome. It indicates an internal
	// consistency failure.
	ErrChannelClosed = errors.New("Internal Executor Error")

	// ErrResponseTooLarge is delivered when a response body exceeds the size
	// limit configured on the engine.
	ErrResponseTooLarge = errors.New("response body too large")

	// ErrEngineClosed is returned when starting requests on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)

// EngineStartError is returned when a native engine fails to start.
type EngineStartError struct {
	Result netengine.Result
}

func (e *EngineStartError) Error() string {
	return fmt.Sprintf("engine failed to start: %s (%d)", e.Result, int(e.Result))
}

// NativeRequestError is delivered when the engine reports that a request
// failed. The message is the one produced by the engine, verbatim.
type NativeRequestError struct {
	Code         netengine.ErrorCode
	Message      string
	InternalCode int
}

func (e *NativeRequestError) Error() string {
	return e.Message
}

// RequestError is returned when a native request could not be initialized or
// started.
type RequestError struct {
	Op     string
	Result netengine.Result
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Result, int(e.Result))
}
