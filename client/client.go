// Package client is the Go client of the cloak service.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/planetscale/vtprotobuf/codec/grpc"
	"github.com/stealthrocket/cloak/pkg/enginev1"
	"github.com/stealthrocket/cloak/pkg/enginev1/enginev1connect"
	"golang.org/x/net/http2"
)

// Client is a client to the cloak service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	grpcClient enginev1connect.EngineServiceClient
}

// New creates a client to the service listening at address, which is either
// an http:// URL or a unix:// socket path. Calls are made over HTTP/2
// without TLS.
func New(address string) (*Client, error) {
	baseURL := address
	d := dialer{}
	switch {
	case strings.HasPrefix(address, "unix://"):
		d.socket = strings.TrimPrefix(address, "unix://")
		baseURL = "http://cloak"
	case strings.HasPrefix(address, "http://"):
	default:
		return nil, fmt.Errorf("unsupported service address: %q", address)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP:      true,
			DialTLSContext: d.DialTLSContext,
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		grpcClient: enginev1connect.NewEngineServiceClient(httpClient, baseURL,
			connect.WithCodec(grpc.Codec{}),
			connect.WithSendGzip(),
		),
	}, nil
}

// Execute asks the service to execute req.
func (c *Client) Execute(ctx context.Context, req *enginev1.ExecuteRequest) (*enginev1.ExecuteResponse, error) {
	res, err := c.grpcClient.Execute(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// Version fetches the version of the service from its REST endpoint.
func (c *Client) Version(ctx context.Context) (*enginev1.VersionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("GET /api/version: %s: %s", res.Status, strings.TrimSpace(string(b)))
	}
	v := new(enginev1.VersionResponse)
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return nil, fmt.Errorf("decoding version: %w", err)
	}
	return v, nil
}

// Close releases the idle connections of the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
