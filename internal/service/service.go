// Package service exposes a bridge.Engine over HTTP.
//
// The same execution logic serves the connect endpoint of the
// cronet.engine.v1.EngineService and the REST endpoints. Executions never
// fail at the transport level: every failure is reported in the response
// message, with success set to false.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/stealthrocket/cloak/internal/bridge"
	"github.com/stealthrocket/cloak/pkg/enginev1"
	"golang.org/x/time/rate"
)

// ServiceName is reported by the version endpoints.
const ServiceName = "cronet-cloak"

// Config configures a Server.
type Config struct {
	// Version is the build version of the program.
	Version string
	// RequestTimeout applies to executions which do not carry their own
	// timeout. Zero means no timeout.
	RequestTimeout time.Duration
	// RequestsPerSecond limits the rate of executions, with bursts of up to
	// Burst executions. Zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// Server serves executions on a bridge.Engine.
type Server struct {
	engine  *bridge.Engine
	config  Config
	log     *slog.Logger
	limiter *rate.Limiter
	metrics *metrics
}

func New(engine *bridge.Engine, config Config) *Server {
	s := &Server{
		engine:  engine,
		config:  config,
		log:     config.Logger,
		metrics: newMetrics(engine),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return s
}

// Version returns the version reported by the server.
func (s *Server) Version() *enginev1.VersionResponse {
	return &enginev1.VersionResponse{
		Version: s.engine.Version(),
		Service: ServiceName,
		Build:   s.config.Version,
	}
}

// errMissingTarget is reported for execution requests without a target.
var errMissingTarget = errors.New("Missing target configuration")

type timeoutError struct {
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.timeout)
}

// Execute runs req on the engine.
func (s *Server) Execute(ctx context.Context, req *enginev1.ExecuteRequest) *enginev1.ExecuteResponse {
	res := &enginev1.ExecuteResponse{RequestId: req.RequestId}
	if res.RequestId == "" {
		res.RequestId = uuid.NewString()
	}

	if req.Target == nil {
		res.ErrorMessage = errMissingTarget.Error()
		s.metrics.requests.WithLabelValues(outcomeInvalid, "false").Inc()
		return res
	}
	target, config, err := convertRequest(req)
	proxied := labelProxied(config)
	if err != nil {
		res.ErrorMessage = err.Error()
		s.metrics.requests.WithLabelValues(outcomeInvalid, proxied).Inc()
		return res
	}

	timeout := s.config.RequestTimeout
	if req.Config != nil && req.Config.TimeoutMs > 0 {
		timeout = time.Duration(req.Config.TimeoutMs) * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, &timeoutError{timeout})
		defer cancel()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			res.ErrorMessage = fmt.Sprintf("request rejected by rate limiter: %v", err)
			s.metrics.requests.WithLabelValues(outcomeRejected, proxied).Inc()
			return res
		}
	}

	s.metrics.inflight.Inc()
	start := time.Now()
	result, err := s.engine.Execute(ctx, target, config)
	duration := time.Since(start)
	s.metrics.inflight.Dec()
	s.metrics.duration.WithLabelValues(proxied).Observe(duration.Seconds())

	res.DurationMs = duration.Milliseconds()
	log := s.log.With(
		"request_id", res.RequestId,
		"method", target.Method,
		"host", hostOf(target.URL),
		"proxied", config.Proxy != nil,
		"duration", duration,
	)

	if err != nil {
		var timedOut *timeoutError
		outcome := outcomeFailure
		if errors.As(err, &timedOut) {
			res.ErrorMessage = timedOut.Error()
			outcome = outcomeTimeout
		} else {
			res.ErrorMessage = err.Error()
		}
		s.metrics.requests.WithLabelValues(outcome, proxied).Inc()
		log.Info("request failed", "error", res.ErrorMessage)
		return res
	}

	res.Success = true
	res.Response = convertResult(result)
	s.metrics.requests.WithLabelValues(outcomeSuccess, proxied).Inc()
	s.metrics.size.Observe(float64(len(result.Body)))
	log.Info("request executed",
		"status", result.StatusCode,
		"size", humanize.Bytes(uint64(len(result.Body))))
	return res
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
