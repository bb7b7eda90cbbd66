package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/xlog"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/qcrl/internal/api/router"
	"github.com/remiblancher/qcrl/internal/api/server"
	"github.com/remiblancher/qcrl/internal/api/service"
	"github.com/remiblancher/qcrl/internal/metrics"
	"github.com/remiblancher/qcrl/pkg/crl"
	"github.com/remiblancher/qcrl/pkg/crlcache"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "qcrl")

// Serve command flags
var (
	servePort    int
	serveHost    string
	serveTLSCert string
	serveTLSKey  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CRL validation API",
	Long: `Start the HTTP API for CRL validation and revocation lookups.

Endpoints:
  POST /api/v1/crl/validate     Validate a CRL against an issuer certificate
  POST /api/v1/crl/{id}/lookup  Look up a serial in a validated CRL
  POST /api/v1/crl/inspect      Decode a CRL
  GET  /metrics                 Prometheus metrics

Environment variables:
  QCRL_HOST          Host to bind to
  QCRL_PORT          Port to listen on
  QCRL_TLS_CERT      TLS certificate file
  QCRL_TLS_KEY       TLS private key file
  QCRL_CAPABILITIES  Optional algorithms (rsa-pss, ed448, pqc, all)
  QCRL_CACHE_SIZE    Number of validated CRLs kept in memory

Examples:
  # Start on the default port
  qcrl serve

  # Start with TLS
  qcrl serve --port 8443 --tls-cert server.crt --tls-key server.key`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: 8080)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: all interfaces)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key file")
}

// serverConfig merges command-line flags over the loaded configuration.
func serverConfig() *server.Config {
	sc := cfg.Server
	if servePort != 0 {
		sc.Port = servePort
	}
	if serveHost != "" {
		sc.Host = serveHost
	}
	if serveTLSCert != "" {
		sc.TLSCert = serveTLSCert
	}
	if serveTLSKey != "" {
		sc.TLSKey = serveTLSKey
	}
	return &server.Config{
		Host:            sc.Host,
		Port:            sc.Port,
		TLSCert:         sc.TLSCert,
		TLSKey:          sc.TLSKey,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     sc.IdleTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
	}
}

// newAPIHandler wires the validator, cache, metrics and service behind the
// router. Collectors are registered on reg.
func newAPIHandler(reg *prometheus.Registry, clk clock.Clock) (*router.Config, error) {
	caps, err := cfg.Capabilities()
	if err != nil {
		return nil, err
	}
	validator := crl.NewValidator(&crl.Config{Capabilities: caps})

	cache, err := crlcache.New(validator, crlcache.Config{
		Size:       cfg.Cache.Size,
		Clock:      clk,
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}
	m, err := metrics.New(reg, clk)
	if err != nil {
		return nil, err
	}
	svc, err := service.NewCRLService(validator, cache, m)
	if err != nil {
		return nil, err
	}
	return &router.Config{
		Version:      version,
		Capabilities: caps,
		Service:      svc,
		Metrics:      m,
		Gatherer:     reg,
		Clock:        clk,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	routerCfg, err := newAPIHandler(reg, clock.New())
	if err != nil {
		return err
	}

	srv := server.New(serverConfig(), router.New(routerCfg), version)
	srv.PrintStartupInfo(cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.KV(xlog.INFO, "capabilities", routerCfg.Capabilities.String(), "cache_size", cfg.Cache.Size)
	return srv.Start(ctx)
}
