package main

import (
	"bytes"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/remiblancher/qcrl/pkg/crl"
	"github.com/remiblancher/qcrl/pkg/crl/crltest"
)

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default,
// so that values and required-flag state do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name string, content []byte) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// crlFixture is an issuer certificate and a CRL it signed, written to disk.
type crlFixture struct {
	issuer   *crltest.Issuer
	certPath string
	crlPath  string
}

// setupCRL writes an issuer certificate and a CRL revoking 0x1001 for key
// compromise and 0x1002 without a reason.
func (tc *testContext) setupCRL(kind crltest.KeyKind) *crlFixture {
	tc.t.Helper()
	iss := crltest.NewIssuer(tc.t, kind, "CLI Test CA")
	now := time.Now().UTC().Truncate(time.Second)
	der := iss.CreateCRL(tc.t, crltest.Template{
		ThisUpdate: now.Add(-time.Hour),
		NextUpdate: now.Add(48 * time.Hour),
		Number:     big.NewInt(12),
		Entries: []crltest.Entry{
			{
				Serial:     big.NewInt(0x1001),
				RevokedAt:  now.Add(-2 * time.Hour),
				Extensions: []pkix.Extension{crltest.ReasonCodeExtension(tc.t, int(crl.ReasonKeyCompromise))},
			},
			{Serial: big.NewInt(0x1002), RevokedAt: now.Add(-2 * time.Hour)},
		},
	})
	return &crlFixture{
		issuer:   iss,
		certPath: tc.writeFile("issuer.pem", iss.CertificatePEM(tc.t)),
		crlPath:  tc.writeFile("ca.crl", crl.EncodePEM(der)),
	}
}

// assertNoError fails the test if err is not nil.
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertError fails the test if err is nil.
func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// assertContains fails the test if s does not contain substr.
func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("output does not contain %q:\n%s", substr, s)
	}
}
