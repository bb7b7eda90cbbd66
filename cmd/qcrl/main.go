// Command qcrl validates X.509 CRLs against their issuer and answers
// revocation queries, from the command line or as an HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/qcrl/internal/audit"
	"github.com/remiblancher/qcrl/internal/config"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	auditLogPath string
	logLevel     string
	logFormat    string
)

// cfg is loaded once per invocation by the root command.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = audit.Close()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qcrl",
	Short: "QCRL - X.509 CRL validation with post-quantum signatures",
	Long: `QCRL decodes X.509 Certificate Revocation Lists, validates them against a
candidate issuer certificate and answers "is this serial revoked?" queries.

Supported signature algorithms:
  Classical: RSA PKCS#1 v1.5, ECDSA (SHA-2 and SHA-3), Ed25519
  Optional:  RSASSA-PSS, Ed448 (--capability rsa-pss, ed448)
  PQC:       ML-DSA-44/65/87, SLH-DSA (--capability pqc)

Examples:
  # Validate a CRL against its issuer
  qcrl validate ca.crl --issuer ca.crt

  # Check whether a certificate is revoked
  qcrl lookup ca.crl --issuer ca.crt --serial 0A:1B:2C

  # Decode a CRL without validating it
  qcrl inspect ca.crl

  # Run the HTTP API
  qcrl serve --config qcrl.yaml`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if logFormat != "" {
			loaded.Log.Format = logFormat
		}
		if err := loaded.Log.SetupLogging(cmd.ErrOrStderr()); err != nil {
			return err
		}
		if auditLogPath != "" {
			loaded.Audit.Path = auditLogPath
		}
		if err := audit.InitFile(loaded.Audit.Path); err != nil {
			return errors.Wrap(err, "failed to initialize audit log")
		}
		cfg = loaded
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set QCRL_AUDIT_LOG env var)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: trace, debug, info, notice, warning, error, critical")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format: text, json, pretty")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
}
