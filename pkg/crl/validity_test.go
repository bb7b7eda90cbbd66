package crl

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/remiblancher/qcrl/pkg/crl/crltest"
)

// =============================================================================
// [Unit] Validation: Real-World CRLs
// =============================================================================

func TestU_Validate_BelgiumV2(t *testing.T) {
	der := readTestdata(t, "belgium_root_ca2_v2.crl")
	ca2 := loadTestCert(t, "belgium_root_ca2.crt")

	v, err := DecodeAndValidate(der, "http://crl.eid.belgium.be/belgium2.crl", ca2)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if !v.Valid {
		t.Fatalf("Valid = false, reason %q", v.InvalidityReason)
	}
	if !v.IssuerPrincipalMatches || !v.SignatureIntact || !v.CRLSignKeyUsage {
		t.Errorf("flags = %+v", v)
	}
	if v.IssuerToken != ca2 {
		t.Error("IssuerToken should be the candidate")
	}
	if got := v.SignatureAlgorithm.String(); got != "RSA-SHA256" {
		t.Errorf("SignatureAlgorithm = %q, want RSA-SHA256", got)
	}
	if v.CRLNumber.Int64() != 4 || v.EntryCount != 13 || v.IsDelta {
		t.Errorf("CRLNumber = %v, EntryCount = %d, IsDelta = %v", v.CRLNumber, v.EntryCount, v.IsDelta)
	}
	if v.Digest != sha256.Sum256(der) {
		t.Error("Digest should be the SHA-256 of the DER")
	}
	if v.URL() != "http://crl.eid.belgium.be/belgium2.crl" {
		t.Errorf("URL() = %q, want the source URL", v.URL())
	}

	serial, _ := new(big.Int).SetString("35B73AF10F041F36BBD8FFE149671D77", 16)
	entry, ok := v.Lookup(serial)
	if !ok {
		t.Fatalf("Lookup(%X) should find the entry", serial)
	}
	if !entry.RevocationTime.Equal(time.Date(2016, 2, 15, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("RevocationTime = %v", entry.RevocationTime)
	}
	if _, ok := v.Lookup(big.NewInt(1)); ok {
		t.Error("Lookup(1) should not find an entry")
	}
}

func TestU_Validate_BelgiumV1(t *testing.T) {
	ca2 := loadTestCert(t, "belgium_root_ca2.crt")
	ca3 := loadTestCert(t, "belgium_root_ca3.crt")

	v, err := DecodeAndValidate(readTestdata(t, "belgium_root_ca3_v1.crl"), "", ca3)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if !v.Valid {
		t.Fatalf("Valid = false, reason %q", v.InvalidityReason)
	}
	if v.SignatureAlgorithm.String() != "RSA-SHA1" {
		t.Errorf("SignatureAlgorithm = %q, want RSA-SHA1", v.SignatureAlgorithm)
	}
	if v.CRLNumber != nil || v.EntryCount != 0 {
		t.Errorf("CRLNumber = %v, EntryCount = %d", v.CRLNumber, v.EntryCount)
	}

	// CA3's CRL is not CA2's.
	v, err = DecodeAndValidate(readTestdata(t, "belgium_root_ca3_v1.crl"), "", ca2)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if v.Valid || v.IssuerPrincipalMatches || v.SignatureIntact {
		t.Errorf("wrong issuer should not validate: %+v", v)
	}
	if v.InvalidityReason != InvalidityIssuerMismatch {
		t.Errorf("InvalidityReason = %q, want %q", v.InvalidityReason, InvalidityIssuerMismatch)
	}
	if v.IssuerToken != nil {
		t.Error("IssuerToken should be nil")
	}
}

// =============================================================================
// [Unit] Validation: Signature Schemes
// =============================================================================

func TestU_Validate_AllKeyKinds(t *testing.T) {
	validator := NewValidator(&Config{Capabilities: CapabilityAll})

	tests := []struct {
		kind crltest.KeyKind
		alg  string
	}{
		{crltest.RSA, "RSA-SHA256"},
		{crltest.RSAPSS, "RSASSA-PSS-SHA256"},
		{crltest.ECDSA, "ECDSA-SHA384"},
		{crltest.ECDSASHA3, "ECDSA-SHA3-256"},
		{crltest.Ed25519, "Ed25519"},
		{crltest.Ed448, "Ed448"},
		{crltest.MLDSA44, "ML-DSA-44"},
		{crltest.MLDSA65, "ML-DSA-65"},
		{crltest.MLDSA87, "ML-DSA-87"},
		{crltest.SLHDSA128f, "SLH-DSA-SHA2-128f"},
		{crltest.SLHDSAShake, "SLH-DSA-SHAKE-128f"},
	}
	for _, tt := range tests {
		t.Run("[Unit] Validate: "+string(tt.kind), func(t *testing.T) {
			iss := crltest.NewIssuer(t, tt.kind, "QCRL "+string(tt.kind)+" CA")
			der := iss.CreateCRL(t, crltest.Template{
				Number:     big.NewInt(3),
				NextUpdate: time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
				Entries:    []crltest.Entry{{Serial: big.NewInt(1001)}},
			})

			v, err := validator.DecodeAndValidate(der, "", iss)
			if err != nil {
				t.Fatalf("DecodeAndValidate() error = %v", err)
			}
			if !v.Valid {
				t.Fatalf("Valid = false, reason %q", v.InvalidityReason)
			}
			if got := v.SignatureAlgorithm.String(); got != tt.alg {
				t.Errorf("SignatureAlgorithm = %q, want %q", got, tt.alg)
			}
			if _, ok := v.Lookup(big.NewInt(1001)); !ok {
				t.Error("Lookup(1001) should find the entry")
			}

			v, err = validator.DecodeAndValidate(crltest.TamperSignature(der), "", iss)
			if err != nil {
				t.Fatalf("DecodeAndValidate(tampered) error = %v", err)
			}
			if v.Valid || v.SignatureIntact {
				t.Error("a tampered signature should not validate")
			}
			if v.InvalidityReason != InvaliditySignature {
				t.Errorf("InvalidityReason = %q, want %q", v.InvalidityReason, InvaliditySignature)
			}
		})
	}
}

func TestU_Validate_CapabilityRequired(t *testing.T) {
	for _, kind := range []crltest.KeyKind{crltest.RSAPSS, crltest.Ed448, crltest.MLDSA65} {
		iss := crltest.NewIssuer(t, kind, "Gated CA")
		der := iss.CreateCRL(t, crltest.Template{})

		_, err := DecodeAndValidate(der, "", iss)
		if !errors.Is(err, ErrUnsupportedAlgorithm) {
			t.Errorf("DecodeAndValidate(%s) error = %v, want ErrUnsupportedAlgorithm", kind, err)
		}
	}
}

func TestU_Validate_PSSMGFMismatch(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.RSAPSS, "MGF CA")
	iss.SignatureAlg = crltest.PSSAlgorithmIdentifierWithMGF(t, 32, crltest.OIDSHA1)
	der := iss.CreateCRL(t, crltest.Template{})

	validator := NewValidator(&Config{Capabilities: CapabilityRSAPSS})
	if _, err := validator.DecodeAndValidate(der, "", iss); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("DecodeAndValidate() error = %v, want ErrUnsupportedAlgorithm", err)
	}
}

// =============================================================================
// [Unit] Validation: Outcomes
// =============================================================================

func TestU_Validate_WrongSubject(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.ECDSA, "Real CA")
	other := pkix.Name{CommonName: "Impostor CA"}
	der := iss.CreateCRL(t, crltest.Template{IssuerName: &other})

	v, err := DecodeAndValidate(der, "", iss)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if v.IssuerPrincipalMatches || v.SignatureIntact || v.Valid {
		t.Errorf("flags = %+v", v)
	}
	if v.InvalidityReason != InvalidityIssuerMismatch {
		t.Errorf("InvalidityReason = %q", v.InvalidityReason)
	}
}

func TestU_Validate_WrongKey(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.ECDSA, "Key CA")
	der := iss.CreateCRL(t, crltest.Template{})

	otherKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey() error = %v", err)
	}
	candidate := &staticIdentity{subject: iss.Subject(), pub: &otherKey.PublicKey, crlSign: true}

	v, err := DecodeAndValidate(der, "", candidate)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if !v.IssuerPrincipalMatches || v.SignatureIntact || v.Valid {
		t.Errorf("flags = %+v", v)
	}
	if v.InvalidityReason != InvaliditySignature {
		t.Errorf("InvalidityReason = %q", v.InvalidityReason)
	}
	if v.IssuerToken != nil {
		t.Error("IssuerToken should be nil without an intact signature")
	}
}

func TestU_Validate_KeyTypeMismatch(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Mixed CA")
	der := iss.CreateCRL(t, crltest.Template{})

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	candidate := &staticIdentity{subject: iss.Subject(), pub: &rsaKey.PublicKey, crlSign: true}

	v, err := DecodeAndValidate(der, "", candidate)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if v.SignatureIntact || v.InvalidityReason != InvaliditySignature {
		t.Errorf("SignatureIntact = %v, InvalidityReason = %q", v.SignatureIntact, v.InvalidityReason)
	}
}

func TestU_Validate_NoCRLSign(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Leaf-ish CA")
	iss.KeyUsageCRLSign = false
	der := iss.CreateCRL(t, crltest.Template{})

	v, err := DecodeAndValidate(der, "", iss)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if !v.SignatureIntact || v.CRLSignKeyUsage || v.Valid {
		t.Errorf("flags = %+v", v)
	}
	if v.InvalidityReason != InvalidityCRLSign {
		t.Errorf("InvalidityReason = %q, want %q", v.InvalidityReason, InvalidityCRLSign)
	}
	if v.IssuerToken == nil {
		t.Error("IssuerToken should be set when the signature is intact")
	}
}

func TestU_Validate_UnknownCritical(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Critical CA")
	der := iss.CreateCRL(t, crltest.Template{Extensions: []pkix.Extension{crltest.UnknownExtension(true)}})

	v, err := DecodeAndValidate(der, "", iss)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if !v.SignatureIntact || !v.UnknownCriticalExtension || v.Valid {
		t.Errorf("flags = %+v", v)
	}
	if v.InvalidityReason != InvalidityUnknownCritical {
		t.Errorf("InvalidityReason = %q, want %q", v.InvalidityReason, InvalidityUnknownCritical)
	}
}

func TestU_Validate_ReasonOrder(t *testing.T) {
	// Every check fails; the issuer mismatch is reported first.
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Order CA")
	other := pkix.Name{CommonName: "Someone Else"}
	der := iss.CreateCRL(t, crltest.Template{
		IssuerName: &other,
		Extensions: []pkix.Extension{crltest.UnknownExtension(true)},
	})
	iss.KeyUsageCRLSign = false

	v, err := DecodeAndValidate(crltest.TamperSignature(der), "", iss)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if v.InvalidityReason != InvalidityIssuerMismatch {
		t.Errorf("InvalidityReason = %q, want %q", v.InvalidityReason, InvalidityIssuerMismatch)
	}
}

func TestU_Validate_NilCandidate(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Lonely CA")
	v, err := DecodeAndValidate(iss.CreateCRL(t, crltest.Template{}), "", nil)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if v.Valid || v.IssuerPrincipalMatches {
		t.Errorf("flags = %+v", v)
	}
	if v.InvalidityReason != InvalidityIssuerMismatch {
		t.Errorf("InvalidityReason = %q", v.InvalidityReason)
	}
}

func TestU_Validate_InvalidKey(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.RSA, "Broken CA")
	der := iss.CreateCRL(t, crltest.Template{})

	tests := []struct {
		name string
		pub  interface{}
	}{
		{"nil key", nil},
		{"empty RSA key", &rsa.PublicKey{}},
		{"small RSA key", &rsa.PublicKey{N: big.NewInt(0xFFFF), E: 65537}},
	}
	for _, tt := range tests {
		t.Run("[Unit] Validate: "+tt.name, func(t *testing.T) {
			candidate := &staticIdentity{subject: iss.Subject(), pub: tt.pub, crlSign: true}
			_, err := DecodeAndValidate(der, "", candidate)
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("DecodeAndValidate() error = %v, want ErrInvalidKey", err)
			}
			if KindOf(err) != KindInvalidKey {
				t.Errorf("KindOf() = %v", KindOf(err))
			}
		})
	}
}

func TestU_Validate_DistributionPointURL(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "URL CA")
	der := iss.CreateCRL(t, crltest.Template{Extensions: []pkix.Extension{
		crltest.IssuingDistributionPointExtension(t, crltest.IDPOptions{OnlyContainsUserCerts: true}, "http://crl.example.test/users.crl"),
	}})

	v, err := NewValidator(nil).ValidateRaw(RawCRL{Data: der, SourceURL: "http://mirror.example.test/users.crl"}, iss)
	if err != nil {
		t.Fatalf("ValidateRaw() error = %v", err)
	}
	if !v.Valid {
		t.Fatalf("Valid = false, reason %q", v.InvalidityReason)
	}
	if v.URL() != "http://crl.example.test/users.crl" {
		t.Errorf("URL() = %q, want the IDP URL", v.URL())
	}
	if v.SourceURL != "http://mirror.example.test/users.crl" {
		t.Errorf("SourceURL = %q", v.SourceURL)
	}
}

func TestU_Validate_ExpiredCertsOnCRL(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Archive CA")
	at := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	der := iss.CreateCRL(t, crltest.Template{Extensions: []pkix.Extension{
		crltest.ExpiredCertsOnCRLExtension(t, at, true),
	}})

	v, err := DecodeAndValidate(der, "", iss)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if v.ExpiredCertsOnCRL == nil || !v.ExpiredCertsOnCRL.Equal(at) {
		t.Errorf("ExpiredCertsOnCRL = %v, want %v", v.ExpiredCertsOnCRL, at)
	}
}

func TestU_Validate_Delta(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Delta CA")
	der := iss.CreateCRL(t, crltest.Template{
		Number:     big.NewInt(11),
		Extensions: []pkix.Extension{crltest.DeltaCRLIndicatorExtension(t, big.NewInt(10))},
	})

	v, err := DecodeAndValidate(der, "", iss)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if !v.Valid || !v.IsDelta {
		t.Errorf("Valid = %v, IsDelta = %v", v.Valid, v.IsDelta)
	}
}

func TestU_Validate_Idempotent(t *testing.T) {
	der := readTestdata(t, "belgium_root_ca2_v2.crl")
	ca2 := loadTestCert(t, "belgium_root_ca2.crt")

	first, err := DecodeAndValidate(der, "http://crl.eid.belgium.be/belgium2.crl", ca2)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	second, err := DecodeAndValidate(der, "http://crl.eid.belgium.be/belgium2.crl", ca2)
	if err != nil {
		t.Fatalf("DecodeAndValidate() error = %v", err)
	}
	if first == second {
		t.Fatal("each call should return its own Validity")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("DecodeAndValidate() results differ:\n%+v\n%+v", first, second)
	}
}

func TestU_Validate_OwnsCopies(t *testing.T) {
	iss := crltest.NewIssuer(t, crltest.Ed25519, "Copy CA")
	at := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	revokedAt := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	der := iss.CreateCRL(t, crltest.Template{
		Number: big.NewInt(7),
		Entries: []crltest.Entry{{
			Serial:     big.NewInt(100),
			RevokedAt:  revokedAt,
			Extensions: []pkix.Extension{crltest.ReasonCodeExtension(t, int(ReasonKeyCompromise))},
		}},
		Extensions: []pkix.Extension{crltest.ExpiredCertsOnCRLExtension(t, at, true)},
	})

	rl, err := Decode(der)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	v, err := NewValidator(nil).Validate(rl, "", iss)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !v.Valid {
		t.Fatalf("Valid = false, reason %q", v.InvalidityReason)
	}

	rl.Number.SetInt64(99)
	*rl.ExpiredCertsOnCRL = at.AddDate(1, 0, 0)
	rl.Issuer[len(rl.Issuer)-1][0].Value = "Someone Else"
	rl.Entries[0].SerialNumber.SetInt64(200)
	*rl.Entries[0].Reason = ReasonSuperseded
	rl.Entries[0].RevocationTime = time.Time{}

	if v.CRLNumber.Int64() != 7 {
		t.Errorf("CRLNumber = %v, want 7", v.CRLNumber)
	}
	if !v.ExpiredCertsOnCRL.Equal(at) {
		t.Errorf("ExpiredCertsOnCRL = %v, want %v", v.ExpiredCertsOnCRL, at)
	}
	if !NamesEqual(v.Issuer, iss.Subject()) {
		t.Errorf("Issuer = %v, want %v", v.Issuer, iss.Subject())
	}
	entry, ok := v.Lookup(big.NewInt(100))
	if !ok {
		t.Fatal("Lookup(100) should still find the entry")
	}
	if entry.Reason == nil || *entry.Reason != ReasonKeyCompromise {
		t.Errorf("Reason = %v, want keyCompromise", entry.Reason)
	}
	if !entry.RevocationTime.Equal(revokedAt) {
		t.Errorf("RevocationTime = %v, want %v", entry.RevocationTime, revokedAt)
	}
	if _, ok := v.Lookup(big.NewInt(200)); ok {
		t.Error("Lookup(200) should not find an entry")
	}
}

func TestU_Validate_DecodeErrorsPropagate(t *testing.T) {
	if _, err := DecodeAndValidate([]byte{1, 2, 3}, "", nil); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("DecodeAndValidate() error = %v, want ErrMalformedInput", err)
	}
}

func TestU_VerifySignature_NilScheme(t *testing.T) {
	if _, err := VerifySignature(nil, nil, nil, nil); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("VerifySignature(nil) error = %v, want ErrUnsupportedAlgorithm", err)
	}
}
