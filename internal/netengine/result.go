package netengine

import "fmt"

// Result is the status code returned by native engine operations. Values
// match Cronet_RESULT.
type Result int

const (
	ResultSuccess                        Result = 0
	ResultIllegalArgument                Result = -100
	ResultIllegalArgumentInvalidMethod   Result = -104
	ResultIllegalArgumentInvalidHeader   Result = -105
	ResultIllegalState                   Result = -200
	ResultIllegalStateEngineStarted      Result = -203
	ResultIllegalStateRequestStarted     Result = -204
	ResultIllegalStateRequestNotInit     Result = -205
	ResultIllegalStateRequestInit        Result = -206
	ResultIllegalStateRequestNotStarted  Result = -207
	ResultIllegalStateUnexpectedRedirect Result = -208
	ResultIllegalStateUnexpectedRead     Result = -209
	ResultIllegalStateReadFailed         Result = -210
	ResultNullPointer                    Result = -300
	ResultNullPointerEngine              Result = -304
	ResultNullPointerURL                 Result = -305
	ResultNullPointerCallback            Result = -306
	ResultNullPointerExecutor            Result = -307
	ResultNullPointerMethod              Result = -308
)

var resultNames = map[Result]string{
	ResultSuccess:                        "SUCCESS",
	ResultIllegalArgument:                "ILLEGAL_ARGUMENT",
	ResultIllegalArgumentInvalidMethod:   "ILLEGAL_ARGUMENT_INVALID_HTTP_METHOD",
	ResultIllegalArgumentInvalidHeader:   "ILLEGAL_ARGUMENT_INVALID_HTTP_HEADER",
	ResultIllegalState:                   "ILLEGAL_STATE",
	ResultIllegalStateEngineStarted:      "ILLEGAL_STATE_ENGINE_ALREADY_STARTED",
	ResultIllegalStateRequestStarted:     "ILLEGAL_STATE_REQUEST_ALREADY_STARTED",
	ResultIllegalStateRequestNotInit:     "ILLEGAL_STATE_REQUEST_NOT_INITIALIZED",
	ResultIllegalStateRequestInit:        "ILLEGAL_STATE_REQUEST_ALREADY_INITIALIZED",
	ResultIllegalStateRequestNotStarted:  "ILLEGAL_STATE_REQUEST_NOT_STARTED",
	ResultIllegalStateUnexpectedRedirect: "ILLEGAL_STATE_UNEXPECTED_REDIRECT",
	ResultIllegalStateUnexpectedRead:     "ILLEGAL_STATE_UNEXPECTED_READ",
	ResultIllegalStateReadFailed:         "ILLEGAL_STATE_READ_FAILED",
	ResultNullPointer:                    "NULL_POINTER",
	ResultNullPointerEngine:              "NULL_POINTER_ENGINE",
	ResultNullPointerURL:                 "NULL_POINTER_URL",
	ResultNullPointerCallback:            "NULL_POINTER_CALLBACK",
	ResultNullPointerExecutor:            "NULL_POINTER_EXECUTOR",
	ResultNullPointerMethod:              "NULL_POINTER_METHOD",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(%d)", int(r))
}

// Error returns nil on success, and an error wrapping r otherwise.
func (r Result) Error() error {
	if r == ResultSuccess {
		return nil
	}
	return &ResultError{Result: r}
}

// ResultError is an error carrying a non-success Result.
type ResultError struct {
	Result Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("native engine: %s (%d)", e.Result, int(e.Result))
}

// ErrorCode classifies request failures. Values match
// Cronet_Error_ERROR_CODE.
type ErrorCode int

const (
	ErrorCallback ErrorCode = iota
	ErrorHostnameNotResolved
	ErrorInternetDisconnected
	ErrorNetworkChanged
	ErrorTimedOut
	ErrorConnectionClosed
	ErrorConnectionTimedOut
	ErrorConnectionRefused
	ErrorConnectionReset
	ErrorAddressUnreachable
	ErrorQUICProtocolFailed
	ErrorOther
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCallback:
		return "CALLBACK"
	case ErrorHostnameNotResolved:
		return "HOSTNAME_NOT_RESOLVED"
	case ErrorInternetDisconnected:
		return "INTERNET_DISCONNECTED"
	case ErrorNetworkChanged:
		return "NETWORK_CHANGED"
	case ErrorTimedOut:
		return "TIMED_OUT"
	case ErrorConnectionClosed:
		return "CONNECTION_CLOSED"
	case ErrorConnectionTimedOut:
		return "CONNECTION_TIMED_OUT"
	case ErrorConnectionRefused:
		return "CONNECTION_REFUSED"
	case ErrorConnectionReset:
		return "CONNECTION_RESET"
	case ErrorAddressUnreachable:
		return "ADDRESS_UNREACHABLE"
	case ErrorQUICProtocolFailed:
		return "QUIC_PROTOCOL_FAILED"
	default:
		return "OTHER"
	}
}

// Error describes the failure of a URL request. Message is the human readable
// description produced by the engine, for example
// "net::ERR_NAME_NOT_RESOLVED".
type Error struct {
	Code    ErrorCode
	Message string
	// InternalCode is the engine specific error number (negative net error
	// codes for Chromium based engines).
	InternalCode int
}

func (e *Error) Error() string { return e.Message }
