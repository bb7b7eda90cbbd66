package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "server")

// Server runs the HTTP API.
type Server struct {
	cfg     *Config
	version string
	srv     *http.Server
}

// New creates a new Server serving handler.
func New(cfg *Config, handler http.Handler, version string) *Server {
	return &Server{
		cfg:     cfg,
		version: version,
		srv: &http.Server{
			Addr:         cfg.Address(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.cfg.Address())
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		if s.cfg.TLS() {
			errChan <- s.srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			errChan <- s.srv.Serve(ln)
		}
	}()

	logger.KV(xlog.NOTICE,
		"status", "started",
		"address", ln.Addr().String(),
		"tls", s.cfg.TLS(),
		"version", s.version)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown error")
	}
	logger.KV(xlog.NOTICE, "status", "stopped")
	return nil
}

// PrintStartupInfo writes a banner with the listen address and endpoints.
func (s *Server) PrintStartupInfo(w io.Writer) {
	scheme := "http"
	if s.cfg.TLS() {
		scheme = "https"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "QCRL API Server")
	fmt.Fprintln(w, "===============")
	fmt.Fprintf(w, "  Version:  %s\n", s.version)
	fmt.Fprintf(w, "  Address:  %s://%s\n", scheme, s.cfg.Address())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Endpoints:")
	fmt.Fprintln(w, "  GET  /health                  - Health check")
	fmt.Fprintln(w, "  GET  /ready                   - Readiness check")
	fmt.Fprintln(w, "  GET  /metrics                 - Prometheus metrics")
	fmt.Fprintln(w, "  GET  /api/openapi.yaml        - OpenAPI specification")
	fmt.Fprintln(w, "  POST /api/v1/crl/validate     - Validate a CRL")
	fmt.Fprintln(w, "  POST /api/v1/crl/{id}/lookup  - Look up a serial")
	fmt.Fprintln(w, "  POST /api/v1/crl/inspect      - Decode a CRL")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use Ctrl+C to stop")
	fmt.Fprintln(w)
}
