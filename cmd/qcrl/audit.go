package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/qcrl/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log management",
	Long: `Commands for managing and verifying audit logs.

The audit log records every CRL validation, rejection and serial lookup.
Each event is cryptographically chained using SHA-256 hashes.

Examples:
  # Verify audit log integrity
  qcrl audit verify --log /var/log/qcrl/audit.jsonl

  # Show last 10 events
  qcrl audit tail --log /var/log/qcrl/audit.jsonl -n 10`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log integrity",
	Long: `Verify the cryptographic hash chain of an audit log file.

Each event in the log contains:
  - hash_prev: SHA-256 hash of the previous event
  - hash: SHA-256 hash of the current event

The chain starts with hash_prev="sha256:genesis" for the first event.

If the chain is broken (events modified, deleted, or inserted),
this command will report the location and nature of the tampering.`,
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit events",
	Long:  `Display the most recent audit events from the log file.`,
	RunE:  runAuditTail,
}

var (
	auditLogFile  string
	auditTailNum  int
	auditShowJSON bool
)

func init() {
	auditVerifyCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (required)")
	_ = auditVerifyCmd.MarkFlagRequired("log")

	auditTailCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (required)")
	_ = auditTailCmd.MarkFlagRequired("log")
	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to show")
	auditTailCmd.Flags().BoolVar(&auditShowJSON, "json", false, "Output as JSON")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verifying audit log: %s\n\n", auditLogFile)

	count, err := audit.VerifyChain(auditLogFile)
	if err != nil {
		fmt.Fprintf(out, "VERIFICATION FAILED\n")
		fmt.Fprintf(out, "  Valid events: %d\n", count)
		fmt.Fprintf(out, "  Error: %s\n", err)
		return errors.Wrap(err, "audit log verification failed")
	}

	fmt.Fprintf(out, "VERIFICATION PASSED\n")
	fmt.Fprintf(out, "  Total events: %d\n", count)
	fmt.Fprintf(out, "  Hash chain: VALID\n")
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	events, err := audit.Tail(auditLogFile, auditTailNum)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(events) == 0 {
		fmt.Fprintln(out, "Audit log is empty")
		return nil
	}

	if auditShowJSON {
		return writeJSON(out, events)
	}
	for _, e := range events {
		printEvent(out, e)
	}
	return nil
}

func printEvent(w io.Writer, e *audit.Event) {
	resultIcon := "✓"
	if e.Result == audit.ResultFailure {
		resultIcon = "✗"
	}

	fmt.Fprintf(w, "%s %s [%s] %s\n", resultIcon, e.Timestamp, e.EventType, e.Actor.ID)
	if e.Object.ID != "" {
		fmt.Fprintf(w, "    crl: %s\n", e.Object.ID)
	}
	if e.Object.Issuer != "" {
		fmt.Fprintf(w, "    issuer: %s\n", e.Object.Issuer)
	}
	if e.Object.Serial != "" {
		status := "not revoked"
		if e.Context.Revoked {
			status = "revoked"
			if e.Context.Revocation != "" {
				status += " (" + e.Context.Revocation + ")"
			}
		}
		fmt.Fprintf(w, "    serial: %s %s\n", e.Object.Serial, status)
	}
	if e.Context.Reason != "" {
		fmt.Fprintf(w, "    reason: %s\n", e.Context.Reason)
	}
}
