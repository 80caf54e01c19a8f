package bridge

import (
	"bytes"
	"log/slog"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// readBufferSize is the size of the buffers handed to the engine to receive
// response data.
const readBufferSize = 32 * 1024

// requestContext is the state of a request that callbacks mutate. It is
// registered with the engine through a ticket, and claimed back by the
// terminal callback, which is the only one allowed to resolve the result.
type requestContext struct {
	state  *stateCell
	result chan Outcome
	log    *slog.Logger

	followRedirects bool
	maxBodySize     int64

	statusCode int
	statusText string
	headers    []netengine.Header
	url        string
	protocol   string
	redirects  []string
	body       bytes.Buffer

	// stop is set when the bridge cancels the request itself, it is the
	// outcome delivered in place of the cancellation.
	stop *Outcome
}

func newRequestContext(target *Target, config *ExecutionConfig, maxBodySize int64, log *slog.Logger) *requestContext {
	return &requestContext{
		state:           new(stateCell),
		result:          make(chan Outcome, 1),
		log:             log,
		followRedirects: config.followRedirects(),
		maxBodySize:     maxBodySize,
		url:             target.URL,
	}
}

func (rc *requestContext) transition(next State) {
	if prev, ok := rc.state.transition(next); !ok {
		rc.log.Warn("ignoring invalid request state transition",
			"from", prev.String(),
			"to", next.String())
	}
}

func (rc *requestContext) capture(info *netengine.ResponseInfo) {
	if info == nil {
		return
	}
	rc.statusCode = info.StatusCode
	rc.statusText = info.StatusText
	rc.headers = append(rc.headers[:0], info.Headers...)
	rc.protocol = info.NegotiatedProtocol
	if info.URL != "" {
		rc.url = info.URL
	}
}

func (rc *requestContext) requestResult() *RequestResult {
	return &RequestResult{
		StatusCode:         rc.statusCode,
		StatusText:         rc.statusText,
		Headers:            rc.headers,
		Body:               rc.body.Bytes(),
		URL:                rc.url,
		NegotiatedProtocol: rc.protocol,
		Redirects:          rc.redirects,
	}
}

// resolve delivers the outcome of the request. The channel has room for the
// single value it ever receives, so the send never blocks, whether or not a
// receiver is still waiting.
func (rc *requestContext) resolve(outcome Outcome) {
	select {
	case rc.result <- outcome:
	default:
		rc.log.Warn("dropping request outcome, result already delivered")
	}
	close(rc.result)
}
