// gewebridge - WeChat bridge for the gewechat gateway
// Inspired by nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 gewebridge contributors

// Package server runs the callback listener the gateway talks to. POST
// delivers message callbacks, GET serves staged media back to the gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"gewebridge/pkg/logger"
	"gewebridge/pkg/media"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultServiceName = "gewechat"
	maxCallbackBytes   = 1 << 20
)

var ErrAlreadyListening = errors.New("server already listening")

// Handler consumes one raw callback body. Errors wrapping
// message.ErrInvalidJSON or message.ErrMalformedPayload become a 400.
type Handler interface {
	HandleCallback(ctx context.Context, payload []byte) error
}

type HandlerFunc func(ctx context.Context, payload []byte) error

func (f HandlerFunc) HandleCallback(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

type Options struct {
	Addr        string
	Path        string
	TempRoot    string
	ServiceName string
	MetricsPath string
	Metrics     prometheus.Gatherer
}

type Server struct {
	opts    Options
	tmp     *media.TempDir
	handler Handler
	mux     *http.ServeMux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	ready    chan struct{}
}

func New(opts Options, handler Handler) (*Server, error) {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}
	tmp, err := media.NewTempDir(opts.TempRoot)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:    opts,
		tmp:     tmp,
		handler: handler,
		mux:     http.NewServeMux(),
		ready:   make(chan struct{}),
	}
	s.mux.HandleFunc(opts.Path, s.handleCallback)
	if opts.MetricsPath != "" && opts.MetricsPath != opts.Path {
		gatherer := opts.Metrics
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		s.mux.Handle(opts.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) TempDir() *media.TempDir {
	return s.tmp
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Addr is the bound address, or "" while stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrAlreadyListening
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.server = srv
	s.listener = ln

	logger.InfoCF("server", "Callback server listening", map[string]interface{}{
		"addr":            ln.Addr().String(),
		logger.FieldPath:  s.opts.Path,
		"temp_root":       s.tmp.Root(),
		"metrics_enabled": s.opts.MetricsPath != "",
	})

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("server", "Callback server failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()
	close(s.ready)
	return nil
}

// Stop shuts the listener down and returns to the stopped state.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.ready = make(chan struct{})
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	logger.InfoC("server", "Stopping callback server")
	return srv.Shutdown(ctx)
}
