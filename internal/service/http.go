package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bufbuild/connect-go"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/planetscale/vtprotobuf/codec/grpc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stealthrocket/cloak/pkg/enginev1"
	"github.com/stealthrocket/cloak/pkg/enginev1/enginev1connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// maxRequestSize bounds the size of JSON documents accepted by the REST
// endpoints.
const maxRequestSize = 64 << 20

// Handler returns the HTTP handler of the server. It accepts HTTP/2 without
// TLS.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	path, handler := enginev1connect.NewEngineServiceHandler(
		&connectHandler{s},
		connect.WithCodec(grpc.Codec{}),
		connect.WithCodec(enginev1.JSONCodec{}),
		connect.WithCompression("gzip", newGzipReader, newGzipWriter),
	)
	router.PathPrefix(path).Handler(handler)

	router.HandleFunc("/api/execute", s.serveExecute).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/execute", s.serveExecute).Methods(http.MethodPost)
	router.HandleFunc("/version", s.serveVersion).Methods(http.MethodGet)
	router.HandleFunc("/api/version", s.serveVersion).Methods(http.MethodGet)
	router.HandleFunc("/healthz", serveHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return h2c.NewHandler(router, &http2.Server{})
}

func newGzipReader() connect.Decompressor { return new(gzip.Reader) }

func newGzipWriter() connect.Compressor { return gzip.NewWriter(io.Discard) }

type connectHandler struct {
	s *Server
}

func (h *connectHandler) Execute(ctx context.Context, req *connect.Request[enginev1.ExecuteRequest]) (*connect.Response[enginev1.ExecuteResponse], error) {
	return connect.NewResponse(h.s.Execute(ctx, req.Msg)), nil
}

func (h *connectHandler) Version(ctx context.Context, req *connect.Request[enginev1.VersionRequest]) (*connect.Response[enginev1.VersionResponse], error) {
	return connect.NewResponse(h.s.Version()), nil
}

func (s *Server) serveExecute(w http.ResponseWriter, r *http.Request) {
	req := new(enginev1.ExecuteRequest)
	d := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err := d.Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, &enginev1.ExecuteResponse{
			ErrorMessage: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.Execute(r.Context(), req))
}

func (s *Server) serveVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Version())
}

func serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
