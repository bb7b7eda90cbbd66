package crl

import (
	"crypto"

	"github.com/cockroachdb/errors"

	pkicrypto "github.com/remiblancher/qcrl/pkg/crypto"
)

const opVerify = "verify"

// VerifySignature checks sig over tbs with pub under scheme.
//
// A signature that does not verify is reported as false, not as an error.
// A nil or unusable key fails with ErrInvalidKey.
func VerifySignature(scheme *Scheme, pub crypto.PublicKey, tbs, sig []byte) (bool, error) {
	if scheme == nil {
		return false, newError(opVerify, KindUnsupportedAlgorithm, "no signature scheme")
	}
	ok, err := pkicrypto.VerifyWithOpts(scheme.Algorithm.Key, pub, tbs, sig, &pkicrypto.VerifyOpts{
		Hash: scheme.Hash,
		PSS:  scheme.PSS,
	})
	if err != nil {
		if errors.Is(err, pkicrypto.ErrInvalidKey) {
			return false, &Error{Op: opVerify, Kind: KindInvalidKey, Err: err}
		}
		return false, &Error{Op: opVerify, Kind: KindUnsupportedAlgorithm, Err: err}
	}
	return ok, nil
}
