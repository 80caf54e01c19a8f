package client

import (
	"context"
	"crypto/tls"
	"net"
)

// dialer connects to servers over TCP, or over a unix socket when the client
// was created with a unix:// address. h2c connections never negotiate TLS.
type dialer struct {
	socket string
}

func (d dialer) DialTLSContext(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
	var nd net.Dialer
	if d.socket != "" {
		return nd.DialContext(ctx, "unix", d.socket)
	}
	return nd.DialContext(ctx, network, addr)
}
