package main

import (
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/qcrl/internal/api/dto"
	"github.com/remiblancher/qcrl/internal/api/service"
)

var validateCmd = &cobra.Command{
	Use:   "validate <crl-file>",
	Short: "Validate a CRL against its issuer certificate",
	Long: `Validate a Certificate Revocation List against a candidate issuer.

Checks:
  - CRL issuer name matches the certificate subject
  - CRL signature verifies with the certificate public key
  - Certificate key usage allows CRL signing
  - No unrecognized critical extension is present

The command exits with an error when the CRL is not valid.

Examples:
  # Validate a CRL
  qcrl validate ca.crl --issuer ca.crt

  # Validate an RSASSA-PSS CRL and print the result as JSON
  qcrl validate ca.crl --issuer ca.crt --capability rsa-pss --json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var (
	validateIssuer    string
	validateSourceURL string
	validateCaps      []string
	validateJSON      bool
)

func init() {
	validateCmd.Flags().StringVar(&validateIssuer, "issuer", "", "Issuer certificate file, PEM or DER (required)")
	_ = validateCmd.MarkFlagRequired("issuer")
	validateCmd.Flags().StringVar(&validateSourceURL, "source-url", "", "URL the CRL was fetched from")
	validateCmd.Flags().StringSliceVar(&validateCaps, "capability", nil, "Enable optional algorithms: rsa-pss, ed448, pqc, all")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	rl, v, validator, err := validateFile(args[0], validateIssuer, validateSourceURL, validateCaps)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if validateJSON {
		resp := dto.CRLValidateResponse{
			CRLID:                    hex.EncodeToString(v.Digest[:]),
			Valid:                    v.Valid,
			InvalidityReason:         string(v.InvalidityReason),
			IssuerMatches:            v.IssuerPrincipalMatches,
			SignatureIntact:          v.SignatureIntact,
			CRLSignKeyUsage:          v.CRLSignKeyUsage,
			UnknownCriticalExtension: v.UnknownCriticalExtension,
			URL:                      v.URL(),
			Info:                     service.InfoFromList(rl, validator.Resolver()),
		}
		if err := writeJSON(out, resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Validating CRL: %s\n", args[0])
		fmt.Fprintf(out, "  Issuer:         %s\n", v.Issuer.String())
		fmt.Fprintf(out, "  Signature Alg:  %s\n", v.SignatureAlgorithm)
		fmt.Fprintf(out, "  This Update:    %s\n", formatTime(v.ThisUpdate))
		fmt.Fprintf(out, "  Next Update:    %s\n", formatTime(v.NextUpdate))
		if v.CRLNumber != nil {
			fmt.Fprintf(out, "  CRL Number:     %s\n", v.CRLNumber)
		}
		if url := v.URL(); url != "" {
			fmt.Fprintf(out, "  URL:            %s\n", url)
		}
		fmt.Fprintf(out, "  Revoked Certs:  %d\n", v.EntryCount)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Issuer match:   %s\n", yesNo(v.IssuerPrincipalMatches))
		fmt.Fprintf(out, "  Signature:      %s\n", yesNo(v.SignatureIntact))
		fmt.Fprintf(out, "  cRLSign usage:  %s\n", yesNo(v.CRLSignKeyUsage))
		fmt.Fprintf(out, "  Unknown crit:   %s\n", yesNo(v.UnknownCriticalExtension))
		fmt.Fprintln(out)
		if v.Valid {
			fmt.Fprintln(out, "CRL is VALID")
		} else {
			fmt.Fprintf(out, "CRL is NOT VALID: %s\n", v.InvalidityReason)
		}
	}

	if !v.Valid {
		return errors.Newf("CRL is not valid: %s", v.InvalidityReason)
	}
	return nil
}
