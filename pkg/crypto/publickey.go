package crypto

import (
	"crypto"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
	"github.com/cockroachdb/errors"
)

var slhdsaIDs = map[AlgorithmID]slhdsa.ID{
	AlgSLHDSASHA2128s:  slhdsa.SHA2_128s,
	AlgSLHDSASHA2128f:  slhdsa.SHA2_128f,
	AlgSLHDSASHA2192s:  slhdsa.SHA2_192s,
	AlgSLHDSASHA2192f:  slhdsa.SHA2_192f,
	AlgSLHDSASHA2256s:  slhdsa.SHA2_256s,
	AlgSLHDSASHA2256f:  slhdsa.SHA2_256f,
	AlgSLHDSASHAKE128s: slhdsa.SHAKE_128s,
	AlgSLHDSASHAKE128f: slhdsa.SHAKE_128f,
	AlgSLHDSASHAKE192s: slhdsa.SHAKE_192s,
	AlgSLHDSASHAKE192f: slhdsa.SHAKE_192f,
	AlgSLHDSASHAKE256s: slhdsa.SHAKE_256s,
	AlgSLHDSASHAKE256f: slhdsa.SHAKE_256f,
}

// SLHDSAParameterSet returns the circl parameter set for an SLH-DSA algorithm.
func SLHDSAParameterSet(alg AlgorithmID) (slhdsa.ID, bool) {
	id, ok := slhdsaIDs[alg]
	return id, ok
}

// ParsePublicKey decodes the raw subjectPublicKey bits of the algorithms
// crypto/x509 cannot parse: Ed448, ML-DSA and SLH-DSA.
func ParsePublicKey(alg AlgorithmID, data []byte) (crypto.PublicKey, error) {
	switch alg {
	case AlgEd448:
		if len(data) != ed448.PublicKeySize {
			return nil, errors.Newf("invalid Ed448 public key size: %d", len(data))
		}
		pub := make(ed448.PublicKey, ed448.PublicKeySize)
		copy(pub, data)
		return pub, nil

	case AlgMLDSA44:
		var pub mldsa44.PublicKey
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, errors.Wrap(err, "failed to parse ML-DSA-44 public key")
		}
		return &pub, nil

	case AlgMLDSA65:
		var pub mldsa65.PublicKey
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, errors.Wrap(err, "failed to parse ML-DSA-65 public key")
		}
		return &pub, nil

	case AlgMLDSA87:
		var pub mldsa87.PublicKey
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, errors.Wrap(err, "failed to parse ML-DSA-87 public key")
		}
		return &pub, nil
	}

	if id, ok := slhdsaIDs[alg]; ok {
		pub := slhdsa.PublicKey{ID: id}
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s public key", alg.Name())
		}
		return &pub, nil
	}

	return nil, errors.Newf("unsupported public key algorithm: %s", alg)
}
