// Package cloak wires the configuration of the program to the bridge engine
// and the service.
package cloak

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stealthrocket/cloak/internal/bridge"
	"github.com/stealthrocket/cloak/internal/netengine"
	"github.com/stealthrocket/cloak/internal/service"
)

// EngineParams returns the parameters of the shared engine.
func (c *Config) EngineParams() netengine.EngineParams {
	return netengine.EngineParams{
		UserAgent:    c.Engine.UserAgent,
		EnableQUIC:   c.Engine.EnableQUIC,
		EnableHTTP2:  c.Engine.EnableHTTP2,
		EnableBrotli: c.Engine.EnableBrotli,
	}
}

// NewEngine creates the shared engine of the configured backend.
func (c *Config) NewEngine(log *slog.Logger) (*bridge.Engine, error) {
	lib, err := NewLibrary(c.Engine.Backend)
	if err != nil {
		return nil, err
	}
	options := []bridge.Option{bridge.WithLogger(log)}
	if size, ok := c.Engine.MaxResponseSize.Value(); ok && size > 0 {
		options = append(options, bridge.WithMaxResponseSize(int64(size)))
	}
	engine, err := bridge.NewEngine(lib, c.EngineParams(), options...)
	if err != nil {
		return nil, fmt.Errorf("creating %s engine: %w", c.Engine.Backend, err)
	}
	return engine, nil
}

// ServiceConfig returns the configuration of the service.
func (c *Config) ServiceConfig(log *slog.Logger) service.Config {
	return service.Config{
		Version:           Version(),
		RequestTimeout:    time.Duration(c.Server.RequestTimeout),
		RequestsPerSecond: c.Server.RateLimit.RequestsPerSecond,
		Burst:             c.Server.RateLimit.Burst,
		Logger:            log,
	}
}
