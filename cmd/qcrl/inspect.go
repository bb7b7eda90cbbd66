package main

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/qcrl/internal/api/service"
	"github.com/remiblancher/qcrl/pkg/crl"
	"github.com/remiblancher/qcrl/pkg/x509util"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <crl-file>",
	Short: "Display CRL information",
	Long: `Decode a Certificate Revocation List and display its contents.

The CRL is not validated: no issuer certificate is needed.

Examples:
  qcrl inspect ca.crl
  qcrl inspect ca.crl --limit 20
  qcrl inspect ca.crl --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectLimit int
	inspectJSON  bool
)

func init() {
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 0, "Maximum number of revoked entries to show (0 = all)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectLimit < 0 {
		return errors.New("--limit must not be negative")
	}
	data, err := readFile(args[0], "CRL")
	if err != nil {
		return err
	}
	rl, err := crl.Decode(data)
	if err != nil {
		return errors.Wrap(err, "failed to parse CRL")
	}
	validator, err := newValidator(nil)
	if err != nil {
		return err
	}

	entries := rl.Entries
	if inspectLimit > 0 && len(entries) > inspectLimit {
		entries = entries[:inspectLimit]
	}

	info := service.InfoFromList(rl, validator.Resolver())
	out := cmd.OutOrStdout()
	if inspectJSON {
		for i := range entries {
			info.RevokedCertificates = append(info.RevokedCertificates, service.EntryInfo(&entries[i]))
		}
		return writeJSON(out, info)
	}

	fmt.Fprintln(out, "Certificate Revocation List:")
	fmt.Fprintf(out, "  Version:        v%d\n", rl.Version)
	fmt.Fprintf(out, "  Issuer:         %s\n", info.Issuer)
	fmt.Fprintf(out, "  This Update:    %s\n", formatTime(rl.ThisUpdate))
	fmt.Fprintf(out, "  Next Update:    %s\n", formatTime(rl.NextUpdate))
	fmt.Fprintf(out, "  Signature Alg:  %s\n", info.Algorithm)
	if info.Number != "" {
		fmt.Fprintf(out, "  CRL Number:     %s\n", info.Number)
	}
	if info.DeltaCRLIndicator != "" {
		fmt.Fprintf(out, "  Delta of CRL:   %s\n", info.DeltaCRLIndicator)
	}
	if info.AuthorityKeyID != "" {
		fmt.Fprintf(out, "  Auth Key ID:    %s\n", info.AuthorityKeyID)
	}
	if info.DistributionPointURL != "" {
		fmt.Fprintf(out, "  Dist. Point:    %s\n", info.DistributionPointURL)
	}
	for _, url := range info.FreshestCRL {
		fmt.Fprintf(out, "  Freshest CRL:   %s\n", url)
	}
	if info.Indirect {
		fmt.Fprintln(out, "  Indirect:       yes")
	}
	if info.UnknownCriticalExtension {
		fmt.Fprintln(out, "  WARNING:        unrecognized critical extension")
	}
	fmt.Fprintf(out, "  Revoked Certs:  %d\n", len(rl.Entries))

	if !rl.NextUpdate.IsZero() {
		now := time.Now()
		if now.After(rl.NextUpdate) {
			fmt.Fprintln(out, "  Status:         EXPIRED")
		} else {
			fmt.Fprintf(out, "  Status:         current (next update in %s)\n", formatDuration(rl.NextUpdate.Sub(now)))
		}
	}

	if len(entries) > 0 {
		fmt.Fprintln(out, "\nRevoked Certificates:")
		for i := range entries {
			e := &entries[i]
			reason := "unspecified"
			if e.Reason != nil {
				reason = e.Reason.String()
			}
			fmt.Fprintf(out, "  - %s  revoked: %s  reason: %s\n",
				x509util.FormatSerial(e.SerialNumber), formatTime(e.RevocationTime), reason)
		}
		if len(entries) < len(rl.Entries) {
			fmt.Fprintf(out, "  ... %d more\n", len(rl.Entries)-len(entries))
		}
	}
	return nil
}
