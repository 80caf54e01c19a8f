package gonet

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/stealthrocket/cloak/internal/netengine"
	"golang.org/x/net/proxy"
	"golang.org/x/sys/unix"
)

// Chromium net error codes reported by the engine.
const (
	errFailed                 = -2
	errTimedOut               = -7
	errConnectionReset        = -101
	errConnectionRefused      = -102
	errNameNotResolved        = -105
	errSSLProtocolError       = -107
	errAddressUnreachable     = -109
	errTunnelConnectionFailed = -111
	errConnectionTimedOut     = -118
	errSOCKSConnectionFailed  = -120
	errProxyAuthRequested     = -127
	errProxyConnectionFailed  = -130
	errCertCommonNameInvalid  = -200
	errCertDateInvalid        = -201
	errCertAuthorityInvalid   = -202
	errUnknownURLScheme       = -302
	errTooManyRedirectsCode   = -310
	errEmptyResponse          = -324
	errContentDecodingFailed  = -330
)

var netErrorNames = map[int]string{
	errFailed:                 "FAILED",
	errTimedOut:               "TIMED_OUT",
	errConnectionReset:        "CONNECTION_RESET",
	errConnectionRefused:      "CONNECTION_REFUSED",
	errNameNotResolved:        "NAME_NOT_RESOLVED",
	errSSLProtocolError:       "SSL_PROTOCOL_ERROR",
	errAddressUnreachable:     "ADDRESS_UNREACHABLE",
	errTunnelConnectionFailed: "TUNNEL_CONNECTION_FAILED",
	errConnectionTimedOut:     "CONNECTION_TIMED_OUT",
	errSOCKSConnectionFailed:  "SOCKS_CONNECTION_FAILED",
	errProxyAuthRequested:     "PROXY_AUTH_REQUESTED",
	errProxyConnectionFailed:  "PROXY_CONNECTION_FAILED",
	errCertCommonNameInvalid:  "CERT_COMMON_NAME_INVALID",
	errCertDateInvalid:        "CERT_DATE_INVALID",
	errCertAuthorityInvalid:   "CERT_AUTHORITY_INVALID",
	errUnknownURLScheme:       "UNKNOWN_URL_SCHEME",
	errTooManyRedirectsCode:   "TOO_MANY_REDIRECTS",
	errEmptyResponse:          "EMPTY_RESPONSE",
	errContentDecodingFailed:  "CONTENT_DECODING_FAILED",
}

func netError(code netengine.ErrorCode, internalCode int) *netengine.Error {
	return &netengine.Error{
		Code:         code,
		Message:      "net::ERR_" + netErrorNames[internalCode],
		InternalCode: internalCode,
	}
}

var errTooManyRedirects = errors.New("too many redirects")

type unknownSchemeError struct {
	scheme string
}

func (e *unknownSchemeError) Error() string {
	return fmt.Sprintf("unsupported URL scheme: %q", e.scheme)
}

type decodeError struct {
	err     error
	encoded bool
}

func (e *decodeError) Error() string { return "decoding response body: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

type uploadError struct {
	message string
}

func (e *uploadError) Error() string { return e.message }

// tunnelError is returned when a proxy refuses a CONNECT request.
type tunnelError struct {
	status int
}

func (e *tunnelError) Error() string {
	return fmt.Sprintf("proxy refused tunnel: %d %s", e.status, http.StatusText(e.status))
}

func onProxyConnectResponse(ctx context.Context, proxyURL *url.URL, connectReq *http.Request, connectRes *http.Response) error {
	if connectRes.StatusCode != http.StatusOK {
		return &tunnelError{status: connectRes.StatusCode}
	}
	return nil
}

// socksError is returned when connecting through a SOCKS proxy fails.
type socksError struct {
	err error
}

func (e *socksError) Error() string { return e.err.Error() }

func (e *socksError) Unwrap() error { return e.err }

type socksDialer struct {
	dialer proxy.ContextDialer
}

func (d socksDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c, err := d.dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, &socksError{err: err}
	}
	return c, nil
}

// classify maps Go errors to the errors a Chromium based engine would report.
func classify(err error) *netengine.Error {
	var (
		uploadErr    *uploadError
		decodeErr    *decodeError
		tunnelErr    *tunnelError
		socksErr     *socksError
		schemeErr    *unknownSchemeError
		dnsErr       *net.DNSError
		opErr        *net.OpError
		hostnameErr  x509.HostnameError
		authorityErr x509.UnknownAuthorityError
		invalidErr   x509.CertificateInvalidError
		recordErr    tls.RecordHeaderError
		netErr       net.Error
	)

	switch {
	case errors.As(err, &uploadErr):
		return &netengine.Error{
			Code:    netengine.ErrorCallback,
			Message: "Exception received from UploadDataProvider: " + uploadErr.message,
		}
	case errors.As(err, &decodeErr) && decodeErr.encoded:
		return netError(netengine.ErrorOther, errContentDecodingFailed)
	case errors.Is(err, errTooManyRedirects):
		return netError(netengine.ErrorOther, errTooManyRedirectsCode)
	case errors.As(err, &schemeErr):
		return netError(netengine.ErrorOther, errUnknownURLScheme)
	case errors.As(err, &tunnelErr):
		if tunnelErr.status == http.StatusProxyAuthRequired {
			return netError(netengine.ErrorOther, errProxyAuthRequested)
		}
		return netError(netengine.ErrorOther, errTunnelConnectionFailed)
	case errors.As(err, &socksErr):
		if isDialError(socksErr.err) {
			return netError(netengine.ErrorOther, errProxyConnectionFailed)
		}
		return netError(netengine.ErrorOther, errSOCKSConnectionFailed)
	case errors.As(err, &opErr) && opErr.Op == "proxyconnect":
		return netError(netengine.ErrorOther, errProxyConnectionFailed)
	case errors.As(err, &dnsErr):
		return netError(netengine.ErrorHostnameNotResolved, errNameNotResolved)
	case errors.As(err, &hostnameErr):
		return netError(netengine.ErrorOther, errCertCommonNameInvalid)
	case errors.As(err, &authorityErr):
		return netError(netengine.ErrorOther, errCertAuthorityInvalid)
	case errors.As(err, &invalidErr):
		if invalidErr.Reason == x509.Expired {
			return netError(netengine.ErrorOther, errCertDateInvalid)
		}
		return netError(netengine.ErrorOther, errCertAuthorityInvalid)
	case errors.As(err, &recordErr):
		return netError(netengine.ErrorOther, errSSLProtocolError)
	case errors.Is(err, unix.ECONNREFUSED):
		return netError(netengine.ErrorConnectionRefused, errConnectionRefused)
	case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.EPIPE):
		return netError(netengine.ErrorConnectionReset, errConnectionReset)
	case errors.Is(err, unix.EHOSTUNREACH), errors.Is(err, unix.ENETUNREACH):
		return netError(netengine.ErrorAddressUnreachable, errAddressUnreachable)
	case errors.As(err, &netErr) && netErr.Timeout():
		if isDialError(err) {
			return netError(netengine.ErrorConnectionTimedOut, errConnectionTimedOut)
		}
		return netError(netengine.ErrorTimedOut, errTimedOut)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return netError(netengine.ErrorConnectionClosed, errEmptyResponse)
	default:
		return netError(netengine.ErrorOther, errFailed)
	}
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
