package main

import (
	"encoding/json"
	"testing"

	"github.com/remiblancher/qcrl/internal/api/dto"
	"github.com/remiblancher/qcrl/pkg/crl"
	"github.com/remiblancher/qcrl/pkg/crl/crltest"
)

// =============================================================================
// Lookup Tests
// =============================================================================

func TestF_Lookup_Serials(t *testing.T) {
	tc := newTestContext(t)
	fx := tc.setupCRL(crltest.ECDSA)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "[Functional] Lookup: revoked with reason",
			args: []string{"--serial", "10:01"},
			want: []string{"Status:  REVOKED", crl.ReasonKeyCompromise.String()},
		},
		{
			name: "[Functional] Lookup: revoked, decimal serial",
			args: []string{"--serial", "4098", "--format", "dec"},
			want: []string{"Serial:  1002", "Status:  REVOKED"},
		},
		{
			name: "[Functional] Lookup: not revoked",
			args: []string{"--serial", "0x1003"},
			want: []string{"Status:  not revoked"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"lookup", fx.crlPath, "--issuer", fx.certPath}, tt.args...)
			out, err := executeCommand(rootCmd, args...)
			assertNoError(t, err)
			for _, w := range tt.want {
				assertContains(t, out, w)
			}
		})
	}
}

func TestF_Lookup_JSON(t *testing.T) {
	tc := newTestContext(t)
	fx := tc.setupCRL(crltest.Ed25519)

	out, err := executeCommand(rootCmd, "lookup", fx.crlPath, "--issuer", fx.certPath, "--serial", "1001", "--json")
	assertNoError(t, err)

	var resp dto.CRLLookupResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if !resp.Revoked || resp.Entry == nil || resp.Entry.Reason != crl.ReasonKeyCompromise.String() {
		t.Errorf("response = %+v", resp)
	}
	if resp.Serial != "1001" || len(resp.CRLID) != 64 {
		t.Errorf("Serial = %s, CRLID = %s", resp.Serial, resp.CRLID)
	}
}

func TestF_Lookup_Errors(t *testing.T) {
	tc := newTestContext(t)
	fx := tc.setupCRL(crltest.Ed25519)
	other := crltest.NewIssuer(t, crltest.Ed25519, "Other CA")
	otherPath := tc.writeFile("other.pem", other.CertificatePEM(t))

	tests := []struct {
		name string
		args []string
	}{
		{"[Functional] Lookup: invalid CRL is not consulted", []string{"lookup", fx.crlPath, "--issuer", otherPath, "--serial", "1001"}},
		{"[Functional] Lookup: bad hex serial", []string{"lookup", fx.crlPath, "--issuer", fx.certPath, "--serial", "xyz"}},
		{"[Functional] Lookup: unknown format", []string{"lookup", fx.crlPath, "--issuer", fx.certPath, "--serial", "1", "--format", "oct"}},
		{"[Functional] Lookup: no serial flag", []string{"lookup", fx.crlPath, "--issuer", fx.certPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(rootCmd, tt.args...)
			assertError(t, err)
		})
	}
}
