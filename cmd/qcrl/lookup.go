package main

import (
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/qcrl/internal/api/dto"
	"github.com/remiblancher/qcrl/internal/api/service"
	"github.com/remiblancher/qcrl/internal/audit"
	"github.com/remiblancher/qcrl/pkg/x509util"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <crl-file>",
	Short: "Check whether a serial number is revoked",
	Long: `Validate a CRL against its issuer, then look up a certificate serial number.

The serial is hexadecimal by default (colons and a 0x prefix are accepted).
Use --format dec for a decimal serial.

A CRL that does not validate is never consulted: the command fails instead.

Examples:
  qcrl lookup ca.crl --issuer ca.crt --serial 0A:1B:2C
  qcrl lookup ca.crl --issuer ca.crt --serial 123456789 --format dec`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

var (
	lookupIssuer string
	lookupSerial string
	lookupFormat string
	lookupCaps   []string
	lookupJSON   bool
)

func init() {
	lookupCmd.Flags().StringVar(&lookupIssuer, "issuer", "", "Issuer certificate file, PEM or DER (required)")
	_ = lookupCmd.MarkFlagRequired("issuer")
	lookupCmd.Flags().StringVar(&lookupSerial, "serial", "", "Certificate serial number (required)")
	_ = lookupCmd.MarkFlagRequired("serial")
	lookupCmd.Flags().StringVar(&lookupFormat, "format", "hex", "Serial format: hex, dec")
	lookupCmd.Flags().StringSliceVar(&lookupCaps, "capability", nil, "Enable optional algorithms: rsa-pss, ed448, pqc, all")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Output as JSON")
}

func runLookup(cmd *cobra.Command, args []string) error {
	serial, err := x509util.ParseSerial(lookupSerial, lookupFormat)
	if err != nil {
		return err
	}

	_, v, _, err := validateFile(args[0], lookupIssuer, "", lookupCaps)
	if err != nil {
		return err
	}
	if !v.Valid {
		return errors.Newf("CRL is not valid: %s", v.InvalidityReason)
	}

	id := hex.EncodeToString(v.Digest[:])
	entry, revoked := v.Lookup(serial)
	if err := audit.LogLookup(nil, id, serial, entry); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if lookupJSON {
		resp := dto.CRLLookupResponse{
			CRLID:   id,
			Serial:  x509util.FormatSerial(serial),
			Revoked: revoked,
			Valid:   v.Valid,
		}
		if revoked {
			e := service.EntryInfo(entry)
			resp.Entry = &e
		}
		return writeJSON(out, resp)
	}

	fmt.Fprintf(out, "Serial:  %s\n", x509util.FormatSerial(serial))
	if !revoked {
		fmt.Fprintln(out, "Status:  not revoked")
		return nil
	}
	fmt.Fprintln(out, "Status:  REVOKED")
	fmt.Fprintf(out, "  Revoked at:  %s\n", formatTime(entry.RevocationTime))
	if entry.Reason != nil {
		fmt.Fprintf(out, "  Reason:      %s\n", entry.Reason)
	}
	if entry.InvalidityDate != nil {
		fmt.Fprintf(out, "  Invalid at:  %s\n", formatTime(*entry.InvalidityDate))
	}
	if len(entry.CertificateIssuer) > 0 {
		fmt.Fprintf(out, "  Issued by:   %s\n", entry.CertificateIssuer.String())
	}
	return nil
}
