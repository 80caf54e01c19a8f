package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stealthrocket/cloak/internal/cloak"
	"github.com/stealthrocket/cloak/internal/logger"
	"github.com/stealthrocket/cloak/internal/service"
	"golang.org/x/sync/errgroup"
)

const serveUsage = `
Usage:	cloak serve [options]

   Start the service exposing the engine over gRPC (connect, grpc and
   grpc-web protocols) and REST endpoints. Variables declared in a .env file
   of the working directory are loaded in the environment before reading the
   configuration.

   The service runs until it receives SIGINT or SIGTERM, then waits for the
   requests in flight to complete before exiting.

Options:
   -a, --address addr   Address to listen on (default to server.address)
   -c, --config path    Path to the cloak configuration file (overrides CLOAKCONFIG)
   -h, --help           Show this usage information
       --socket path    Path of a unix socket to listen on in addition to the address
`

const shutdownTimeout = 30 * time.Second

func serve(ctx context.Context, args []string) error {
	var (
		address string
		socket  cloak.Path
	)

	flagSet := newFlagSet("cloak serve", serveUsage)
	stringVar(flagSet, &address, "a", "address")
	customVar(flagSet, &socket, "socket")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError("cloak serve: unexpected arguments: %q", args)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}
	if address != "" {
		config.Server.Address = address
	}
	if socket != "" {
		config.Server.Socket = cloak.Some(socket)
	}

	log, err := logger.New(config.Log.Level, config.Log.Format, stderr)
	if err != nil {
		return err
	}

	engine, err := config.NewEngine(log)
	if err != nil {
		return err
	}
	defer engine.Close()

	listeners, err := listen(config)
	if err != nil {
		return err
	}

	server := service.New(engine, config.ServiceConfig(log))
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderTimeout),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		log.Info("listening", "network", l.Addr().Network(), "address", l.Addr().String())
		group.Go(func() error {
			if err := httpServer.Serve(l); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func listen(config *cloak.Config) ([]net.Listener, error) {
	l, err := net.Listen("tcp", config.Server.Address)
	if err != nil {
		return nil, err
	}
	listeners := []net.Listener{l}

	if socket, ok := config.Server.Socket.Value(); ok {
		path, err := socket.Resolve()
		if err != nil {
			l.Close()
			return nil, err
		}
		// A socket left behind by a previous run would fail the bind.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.Close()
			return nil, err
		}
		u, err := net.Listen("unix", path)
		if err != nil {
			l.Close()
			return nil, err
		}
		listeners = append(listeners, u)
	}
	return listeners, nil
}
