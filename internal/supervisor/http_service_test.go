// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// fakeServer blocks in ListenAndServe until Shutdown or a scripted error.
type fakeServer struct {
	serveErr chan error
	shutdown chan struct{}

	shutdownErr error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		serveErr: make(chan error, 1),
		shutdown: make(chan struct{}),
	}
}

func (f *fakeServer) ListenAndServe() error {
	select {
	case err := <-f.serveErr:
		return err
	case <-f.shutdown:
		return http.ErrServerClosed
	}
}

func (f *fakeServer) Shutdown(context.Context) error {
	close(f.shutdown)
	return f.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := newFakeServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestHTTPServiceListenFailure(t *testing.T) {
	server := newFakeServer()
	listenErr := errors.New("address in use")
	server.serveErr <- listenErr

	svc := NewHTTPService(server, time.Second)
	err := svc.Serve(context.Background())
	if !errors.Is(err, listenErr) {
		t.Errorf("Serve returned %v, want wrapped %v", err, listenErr)
	}
}

func TestHTTPServiceShutdownFailure(t *testing.T) {
	server := newFakeServer()
	server.shutdownErr = errors.New("connections still open")

	svc := NewHTTPService(server, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, server.shutdownErr) {
			t.Errorf("Serve returned %v, want wrapped shutdown error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestTreeDefaults(t *testing.T) {
	tree := NewTree(TreeConfig{})
	if tree.Root() == nil {
		t.Fatal("nil root supervisor")
	}

	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
