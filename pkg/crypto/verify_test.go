package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/slhdsa"
)

var testMessage = []byte("tbsCertList bytes")

// =============================================================================
// [Unit] Classical Verification Tests
// =============================================================================

func TestU_Verify_RSA_PKCS1v15(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}

	for _, h := range []crypto.Hash{crypto.SHA256, crypto.SHA384, crypto.SHA512} {
		digest, err := Digest(h, testMessage)
		if err != nil {
			t.Fatalf("Digest(%v) error = %v", h, err)
		}
		sig, err := rsa.SignPKCS1v15(rand.Reader, key, h, digest)
		if err != nil {
			t.Fatalf("SignPKCS1v15() error = %v", err)
		}

		ok, err := VerifyWithOpts(AlgRSA, &key.PublicKey, testMessage, sig, &VerifyOpts{Hash: h})
		if err != nil {
			t.Fatalf("VerifyWithOpts(%v) error = %v", h, err)
		}
		if !ok {
			t.Errorf("VerifyWithOpts(%v) = false, want true", h)
		}

		ok, _ = VerifyWithOpts(AlgRSA, &key.PublicKey, []byte("other"), sig, &VerifyOpts{Hash: h})
		if ok {
			t.Errorf("VerifyWithOpts(%v) should fail for wrong message", h)
		}
	}
}

func TestU_Verify_RSA_PSS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}

	pss := &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256}
	digest, _ := Digest(crypto.SHA256, testMessage)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest, pss)
	if err != nil {
		t.Fatalf("SignPSS() error = %v", err)
	}

	ok, err := VerifyWithOpts(AlgRSAPSS, &key.PublicKey, testMessage, sig, &VerifyOpts{Hash: crypto.SHA256, PSS: pss})
	if err != nil {
		t.Fatalf("VerifyWithOpts() error = %v", err)
	}
	if !ok {
		t.Error("VerifyWithOpts() = false for valid PSS signature")
	}

	// Wrong salt length must not verify.
	ok, _ = VerifyWithOpts(AlgRSAPSS, &key.PublicKey, testMessage, sig,
		&VerifyOpts{Hash: crypto.SHA256, PSS: &rsa.PSSOptions{SaltLength: 20}})
	if ok {
		t.Error("VerifyWithOpts() should fail with a different salt length")
	}
}

func TestU_Verify_ECDSA_SHA3(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey() error = %v", err)
	}

	digest, err := Digest(crypto.SHA3_256, testMessage)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest)
	if err != nil {
		t.Fatalf("SignASN1() error = %v", err)
	}

	ok, err := VerifyWithOpts(AlgECDSA, &key.PublicKey, testMessage, sig, &VerifyOpts{Hash: crypto.SHA3_256})
	if err != nil {
		t.Fatalf("VerifyWithOpts() error = %v", err)
	}
	if !ok {
		t.Error("VerifyWithOpts() = false for valid ECDSA-SHA3-256 signature")
	}

	ok, _ = VerifyWithOpts(AlgECDSA, &key.PublicKey, testMessage, sig, &VerifyOpts{Hash: crypto.SHA256})
	if ok {
		t.Error("VerifyWithOpts() should fail when the digest differs")
	}
}

func TestU_Verify_Ed25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error = %v", err)
	}
	sig := ed25519.Sign(priv, testMessage)

	ok, err := Verify(AlgEd25519, pub, testMessage, sig)
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}

	sig[0] ^= 0xFF
	if ok, _ := Verify(AlgEd25519, pub, testMessage, sig); ok {
		t.Error("Verify() should fail for modified signature")
	}
}

func TestU_Verify_Ed448(t *testing.T) {
	pub, priv, err := ed448.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed448.GenerateKey() error = %v", err)
	}
	sig := ed448.Sign(priv, testMessage, "")

	// Ed448 signature should be 114 bytes (2 * 57)
	if len(sig) != 114 {
		t.Errorf("Signature length = %d, want 114", len(sig))
	}

	ok, err := Verify(AlgEd448, pub, testMessage, sig)
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}

	otherPub, _, _ := ed448.GenerateKey(rand.Reader)
	if ok, _ := Verify(AlgEd448, otherPub, testMessage, sig); ok {
		t.Error("Verify() should fail for wrong key")
	}
}

// =============================================================================
// [Unit] Post-Quantum Verification Tests
// =============================================================================

func TestU_Verify_MLDSA(t *testing.T) {
	pub, priv, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("mldsa65.GenerateKey() error = %v", err)
	}
	sig, err := priv.Sign(rand.Reader, testMessage, crypto.Hash(0))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	ok, err := Verify(AlgMLDSA65, pub, testMessage, sig)
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}

	// An ML-DSA-65 key presented as ML-DSA-44 is a type mismatch, not an error.
	ok, err = Verify(AlgMLDSA44, pub, testMessage, sig)
	if err != nil {
		t.Errorf("Verify() with mismatched level error = %v", err)
	}
	if ok {
		t.Error("Verify() should fail for mismatched ML-DSA level")
	}
}

func TestU_Verify_SLHDSA(t *testing.T) {
	pub, priv, err := slhdsa.GenerateKey(rand.Reader, slhdsa.SHA2_128f)
	if err != nil {
		t.Fatalf("slhdsa.GenerateKey() error = %v", err)
	}
	sig, err := priv.Sign(rand.Reader, testMessage, nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	ok, err := Verify(AlgSLHDSASHA2128f, &pub, testMessage, sig)
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}

	if ok, _ := Verify(AlgSLHDSASHA2128s, &pub, testMessage, sig); ok {
		t.Error("Verify() should fail when the parameter set differs")
	}
}

// =============================================================================
// [Unit] Key Handling Tests
// =============================================================================

func TestU_Verify_NilKey(t *testing.T) {
	_, err := Verify(AlgEd25519, nil, testMessage, []byte{0})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify(nil key) error = %v, want ErrInvalidKey", err)
	}
}

func TestU_Verify_KeyTypeMismatch(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(rand.Reader)

	ok, err := Verify(AlgECDSA, pub, testMessage, []byte{0x30, 0x00})
	if err != nil {
		t.Errorf("Verify() error = %v, want nil", err)
	}
	if ok {
		t.Error("Verify() should be false when the key type does not match")
	}
}

func TestU_Verify_TruncatedEd25519Key(t *testing.T) {
	_, err := Verify(AlgEd25519, ed25519.PublicKey{1, 2, 3}, testMessage, make([]byte, 64))
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify() error = %v, want ErrInvalidKey", err)
	}
}

func TestU_Digest_Unavailable(t *testing.T) {
	if _, err := Digest(crypto.BLAKE2b_256, testMessage); err == nil {
		t.Error("Digest(BLAKE2b) should fail")
	}
}

func TestU_ParsePublicKey(t *testing.T) {
	t.Run("[Unit] ParsePublicKey: ML-DSA-44", func(t *testing.T) {
		pub, _, err := mldsa44.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("GenerateKey() error = %v", err)
		}
		parsed, err := ParsePublicKey(AlgMLDSA44, pub.Bytes())
		if err != nil {
			t.Fatalf("ParsePublicKey() error = %v", err)
		}
		got, ok := parsed.(*mldsa44.PublicKey)
		if !ok {
			t.Fatalf("ParsePublicKey() type = %T", parsed)
		}
		if !got.Equal(pub) {
			t.Error("ParsePublicKey() returned a different key")
		}
	})

	t.Run("[Unit] ParsePublicKey: SLH-DSA", func(t *testing.T) {
		pub, _, err := slhdsa.GenerateKey(rand.Reader, slhdsa.SHAKE_128f)
		if err != nil {
			t.Fatalf("GenerateKey() error = %v", err)
		}
		raw, err := pub.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary() error = %v", err)
		}
		parsed, err := ParsePublicKey(AlgSLHDSASHAKE128f, raw)
		if err != nil {
			t.Fatalf("ParsePublicKey() error = %v", err)
		}
		if got := parsed.(*slhdsa.PublicKey); got.ID != slhdsa.SHAKE_128f {
			t.Errorf("ParsePublicKey() ID = %v, want SHAKE_128f", got.ID)
		}
	})

	t.Run("[Unit] ParsePublicKey: Ed448 bad size", func(t *testing.T) {
		if _, err := ParsePublicKey(AlgEd448, make([]byte, 10)); err == nil {
			t.Error("ParsePublicKey() should fail for short Ed448 key")
		}
	})

	t.Run("[Unit] ParsePublicKey: unsupported", func(t *testing.T) {
		if _, err := ParsePublicKey(AlgRSA, []byte{0x30}); err == nil {
			t.Error("ParsePublicKey() should reject RSA")
		}
	})
}

func TestU_AlgorithmFromOID(t *testing.T) {
	tests := []struct {
		alg  AlgorithmID
		name string
	}{
		{AlgMLDSA65, "ML-DSA-65"},
		{AlgSLHDSASHAKE256f, "SLH-DSA-SHAKE-256f"},
		{AlgEd448, "Ed448"},
	}
	for _, tt := range tests {
		if got := AlgorithmFromOID(tt.alg.OID()); got != tt.alg {
			t.Errorf("AlgorithmFromOID(%v) = %s, want %s", tt.alg.OID(), got, tt.alg)
		}
		if got := tt.alg.Name(); got != tt.name {
			t.Errorf("Name() = %s, want %s", got, tt.name)
		}
	}
	if !AlgSLHDSASHA2192s.IsSLHDSA() || AlgMLDSA87.IsSLHDSA() {
		t.Error("IsSLHDSA() classification is wrong")
	}
	if _, err := ParseAlgorithm("dsa"); err == nil {
		t.Error("ParseAlgorithm(dsa) should fail")
	}
}
