// Package enginev1connect contains the connect handler and client of the
// cronet.engine.v1.EngineService service.
package enginev1connect

import (
	"context"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/stealthrocket/cloak/pkg/enginev1"
)

const EngineServiceName = "cronet.engine.v1.EngineService"

const (
	EngineServiceExecuteProcedure = "/" + EngineServiceName + "/Execute"
	EngineServiceVersionProcedure = "/" + EngineServiceName + "/Version"
)

type EngineServiceHandler interface {
	Execute(context.Context, *connect.Request[enginev1.ExecuteRequest]) (*connect.Response[enginev1.ExecuteResponse], error)
	Version(context.Context, *connect.Request[enginev1.VersionRequest]) (*connect.Response[enginev1.VersionResponse], error)
}

// NewEngineServiceHandler returns the path prefix of the service and the
// handler serving its procedures.
func NewEngineServiceHandler(svc EngineServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(EngineServiceExecuteProcedure, connect.NewUnaryHandler(
		EngineServiceExecuteProcedure,
		svc.Execute,
		opts...,
	))
	mux.Handle(EngineServiceVersionProcedure, connect.NewUnaryHandler(
		EngineServiceVersionProcedure,
		svc.Version,
		opts...,
	))
	return "/" + EngineServiceName + "/", mux
}

type EngineServiceClient interface {
	Execute(context.Context, *connect.Request[enginev1.ExecuteRequest]) (*connect.Response[enginev1.ExecuteResponse], error)
	Version(context.Context, *connect.Request[enginev1.VersionRequest]) (*connect.Response[enginev1.VersionResponse], error)
}

func NewEngineServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) EngineServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &engineServiceClient{
		execute: connect.NewClient[enginev1.ExecuteRequest, enginev1.ExecuteResponse](
			httpClient,
			baseURL+EngineServiceExecuteProcedure,
			opts...,
		),
		version: connect.NewClient[enginev1.VersionRequest, enginev1.VersionResponse](
			httpClient,
			baseURL+EngineServiceVersionProcedure,
			opts...,
		),
	}
}

type engineServiceClient struct {
	execute *connect.Client[enginev1.ExecuteRequest, enginev1.ExecuteResponse]
	version *connect.Client[enginev1.VersionRequest, enginev1.VersionResponse]
}

func (c *engineServiceClient) Execute(ctx context.Context, req *connect.Request[enginev1.ExecuteRequest]) (*connect.Response[enginev1.ExecuteResponse], error) {
	return c.execute.CallUnary(ctx, req)
}

func (c *engineServiceClient) Version(ctx context.Context, req *connect.Request[enginev1.VersionRequest]) (*connect.Response[enginev1.VersionResponse], error) {
	return c.version.CallUnary(ctx, req)
}
