package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/md5"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidKey is returned when a public key cannot be used at all,
// as opposed to a key that simply does not match the signature.
var ErrInvalidKey = errors.New("invalid public key")

// minRSAKeyBits matches the smallest modulus crypto/rsa will verify with.
const minRSAKeyBits = 1024

// VerifyOpts carries the digest and padding parameters of classical schemes.
// Pure schemes (EdDSA, ML-DSA, SLH-DSA) ignore it.
type VerifyOpts struct {
	Hash crypto.Hash
	PSS  *rsa.PSSOptions
}

func (o *VerifyOpts) hash() crypto.Hash {
	if o == nil || o.Hash == 0 {
		return crypto.SHA256
	}
	return o.Hash
}

// Verify verifies a signature with default options (SHA-256 for classical
// schemes).
func Verify(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte) (bool, error) {
	return VerifyWithOpts(alg, pub, message, signature, nil)
}

// VerifyWithOpts verifies signature over message.
//
// A signature that does not verify, or a key of a different type than alg
// expects, yields false with a nil error. An error is returned only when the
// key is unusable or the digest is not available.
func VerifyWithOpts(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte, opts *VerifyOpts) (bool, error) {
	if pub == nil {
		return false, errors.Wrap(ErrInvalidKey, "public key is nil")
	}

	switch alg {
	case AlgRSA, AlgRSAPSS:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false, nil
		}
		if rsaPub.N == nil || rsaPub.E == 0 {
			return false, errors.Wrap(ErrInvalidKey, "RSA key has no modulus")
		}
		if rsaPub.N.BitLen() < minRSAKeyBits {
			return false, errors.Wrapf(ErrInvalidKey, "RSA modulus of %d bits is below %d", rsaPub.N.BitLen(), minRSAKeyBits)
		}
		h := opts.hash()
		digest, err := Digest(h, message)
		if err != nil {
			return false, err
		}
		if alg == AlgRSAPSS {
			var pssOpts *rsa.PSSOptions
			if opts != nil {
				pssOpts = opts.PSS
			}
			return rsa.VerifyPSS(rsaPub, h, digest, signature, pssOpts) == nil, nil
		}
		return rsa.VerifyPKCS1v15(rsaPub, h, digest, signature) == nil, nil

	case AlgECDSA:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return false, nil
		}
		if ecPub.Curve == nil || ecPub.X == nil || ecPub.Y == nil {
			return false, errors.Wrap(ErrInvalidKey, "ECDSA key has no curve point")
		}
		digest, err := Digest(opts.hash(), message)
		if err != nil {
			return false, err
		}
		return ecdsa.VerifyASN1(ecPub, digest, signature), nil

	case AlgEd25519:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return false, nil
		}
		if len(edPub) != ed25519.PublicKeySize {
			return false, errors.Wrapf(ErrInvalidKey, "Ed25519 key size %d", len(edPub))
		}
		return ed25519.Verify(edPub, message, signature), nil

	case AlgEd448:
		edPub, ok := pub.(ed448.PublicKey)
		if !ok {
			return false, nil
		}
		if len(edPub) != ed448.PublicKeySize {
			return false, errors.Wrapf(ErrInvalidKey, "Ed448 key size %d", len(edPub))
		}
		return ed448.Verify(edPub, message, signature, ""), nil

	case AlgMLDSA44:
		mlPub, ok := pub.(*mldsa44.PublicKey)
		if !ok {
			return false, nil
		}
		return mldsa44.Verify(mlPub, message, nil, signature), nil

	case AlgMLDSA65:
		mlPub, ok := pub.(*mldsa65.PublicKey)
		if !ok {
			return false, nil
		}
		return mldsa65.Verify(mlPub, message, nil, signature), nil

	case AlgMLDSA87:
		mlPub, ok := pub.(*mldsa87.PublicKey)
		if !ok {
			return false, nil
		}
		return mldsa87.Verify(mlPub, message, nil, signature), nil
	}

	if id, ok := slhdsaIDs[alg]; ok {
		slhPub, ok := pub.(*slhdsa.PublicKey)
		if !ok || slhPub.ID != id {
			return false, nil
		}
		return slhdsa.Verify(slhPub, slhdsa.NewMessage(message), signature, nil), nil
	}

	return false, errors.Newf("unsupported signature algorithm: %s", alg)
}

// Digest hashes message with h. SHA-3 digests come from golang.org/x/crypto/sha3.
func Digest(h crypto.Hash, message []byte) ([]byte, error) {
	switch h {
	case crypto.MD5:
		sum := md5.Sum(message)
		return sum[:], nil
	case crypto.SHA1:
		sum := sha1.Sum(message)
		return sum[:], nil
	case crypto.SHA224:
		sum := sha256.Sum224(message)
		return sum[:], nil
	case crypto.SHA256:
		sum := sha256.Sum256(message)
		return sum[:], nil
	case crypto.SHA384:
		sum := sha512.Sum384(message)
		return sum[:], nil
	case crypto.SHA512:
		sum := sha512.Sum512(message)
		return sum[:], nil
	case crypto.SHA3_224:
		sum := sha3.Sum224(message)
		return sum[:], nil
	case crypto.SHA3_256:
		sum := sha3.Sum256(message)
		return sum[:], nil
	case crypto.SHA3_384:
		sum := sha3.Sum384(message)
		return sum[:], nil
	case crypto.SHA3_512:
		sum := sha3.Sum512(message)
		return sum[:], nil
	default:
		return nil, errors.Newf("digest %v is not available", h)
	}
}
