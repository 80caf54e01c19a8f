package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stealthrocket/cloak/client"
	"github.com/stealthrocket/cloak/internal/assert"
	"github.com/stealthrocket/cloak/pkg/enginev1"
)

var serveTests = tests{
	"show the serve command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "serve", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak serve ")
		assert.Equal(t, stderr, "")
	},

	"passing arguments to the command causes an error": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "serve", "now")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "cloak serve: unexpected arguments")
	},

	"serve until the context is canceled": func(t *testing.T) {
		origin := startOrigin(t)
		socket := filepath.Join(t.TempDir(), "cloak.sock")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		type result struct {
			stderr   string
			exitCode int
		}
		done := make(chan result, 1)
		go func() {
			_, stderr, exitCode := cloakCommandContext(ctx, t, "serve", "--address", "127.0.0.1:0", "--socket", socket)
			done <- result{stderr, exitCode}
		}()

		waitForSocket(t, socket, done)

		c, err := client.New("unix://" + socket)
		assert.OK(t, err)
		defer c.Close()

		v, err := c.Version(ctx)
		assert.OK(t, err)
		assert.Equal(t, v.Service, "cronet-cloak")

		res, err := c.Execute(ctx, &enginev1.ExecuteRequest{
			RequestId: "serve-test",
			Target:    &enginev1.TargetRequest{Url: origin + "/hello"},
		})
		assert.OK(t, err)
		assert.Equal(t, res.RequestId, "serve-test")
		assert.True(t, res.Success, res.ErrorMessage)
		assert.Equal(t, string(res.Response.Body), "hello world")

		cancel()
		select {
		case r := <-done:
			assert.Equal(t, r.exitCode, 0)
		case <-time.After(10 * time.Second):
			t.Fatal("the service did not shut down")
		}
	},
}

func waitForSocket[T any](t *testing.T, path string, done <-chan T) {
	t.Helper()
	for deadline := time.Now().Add(10 * time.Second); time.Now().Before(deadline); {
		if _, err := os.Stat(path); err == nil {
			return
		}
		select {
		case r := <-done:
			t.Fatalf("the service exited before listening: %+v", r)
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("timeout waiting for the service to listen on", path)
}
