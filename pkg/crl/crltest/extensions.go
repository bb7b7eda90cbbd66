package crltest

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidCRLNumber          = asn1.ObjectIdentifier{2, 5, 29, 20}
	oidReasonCode         = asn1.ObjectIdentifier{2, 5, 29, 21}
	oidInvalidityDate     = asn1.ObjectIdentifier{2, 5, 29, 24}
	oidDeltaCRLIndicator  = asn1.ObjectIdentifier{2, 5, 29, 27}
	oidIssuingDistPoint   = asn1.ObjectIdentifier{2, 5, 29, 28}
	oidCertificateIssuer  = asn1.ObjectIdentifier{2, 5, 29, 29}
	oidAuthorityKeyID     = asn1.ObjectIdentifier{2, 5, 29, 35}
	oidFreshestCRL        = asn1.ObjectIdentifier{2, 5, 29, 46}
	oidExpiredCertsOnCRL  = asn1.ObjectIdentifier{2, 5, 29, 60}
	oidAuthorityInfoAcces = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}
	oidAccessCAIssuers    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 2}
)

func build(t testing.TB, what string, f cryptobyte.BuilderContinuation) []byte {
	t.Helper()
	var b cryptobyte.Builder
	f(&b)
	der, err := b.Bytes()
	if err != nil {
		t.Fatalf("crltest: build %s: %v", what, err)
	}
	return der
}

func addURI(b *cryptobyte.Builder, uri string) {
	b.AddASN1(cbasn1.Tag(6).ContextSpecific(), func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(uri))
	})
}

// CRLNumberExtension encodes a CRLNumber extension.
func CRLNumberExtension(t testing.TB, n *big.Int) pkix.Extension {
	return pkix.Extension{Id: oidCRLNumber, Value: build(t, "CRLNumber", func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(n)
	})}
}

// DeltaCRLIndicatorExtension encodes a critical DeltaCRLIndicator.
func DeltaCRLIndicatorExtension(t testing.TB, base *big.Int) pkix.Extension {
	return pkix.Extension{Id: oidDeltaCRLIndicator, Critical: true, Value: build(t, "DeltaCRLIndicator", func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(base)
	})}
}

// AuthorityKeyIDExtension encodes an AuthorityKeyIdentifier with a
// keyIdentifier only.
func AuthorityKeyIDExtension(t testing.TB, keyID []byte) pkix.Extension {
	return pkix.Extension{Id: oidAuthorityKeyID, Value: build(t, "AuthorityKeyIdentifier", func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddBytes(keyID)
			})
		})
	})}
}

// IDPOptions are the flags of an IssuingDistributionPoint.
type IDPOptions struct {
	OnlyContainsUserCerts bool
	OnlyContainsCACerts   bool
	IndirectCRL           bool
}

// IssuingDistributionPointExtension encodes a critical IDP whose fullName
// holds uris.
func IssuingDistributionPointExtension(t testing.TB, opts IDPOptions, uris ...string) pkix.Extension {
	return pkix.Extension{Id: oidIssuingDistPoint, Critical: true, Value: build(t, "IssuingDistributionPoint", func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			if len(uris) > 0 {
				b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						for _, u := range uris {
							addURI(b, u)
						}
					})
				})
			}
			addFlag := func(tag int, set bool) {
				if set {
					b.AddASN1(cbasn1.Tag(tag).ContextSpecific(), func(b *cryptobyte.Builder) {
						b.AddUint8(0xFF)
					})
				}
			}
			addFlag(1, opts.OnlyContainsUserCerts)
			addFlag(2, opts.OnlyContainsCACerts)
			addFlag(4, opts.IndirectCRL)
		})
	})}
}

// ExpiredCertsOnCRLExtension encodes expiredCertsOnCRL as GeneralizedTime,
// or as UTCTime when generalized is false.
func ExpiredCertsOnCRLExtension(t testing.TB, at time.Time, generalized bool) pkix.Extension {
	return pkix.Extension{Id: oidExpiredCertsOnCRL, Value: build(t, "expiredCertsOnCRL", func(b *cryptobyte.Builder) {
		if generalized {
			b.AddASN1GeneralizedTime(at.UTC())
		} else {
			b.AddASN1UTCTime(at.UTC())
		}
	})}
}

// FreshestCRLExtension encodes a FreshestCRL pointing at uri.
func FreshestCRLExtension(t testing.TB, uri string) pkix.Extension {
	return pkix.Extension{Id: oidFreshestCRL, Value: build(t, "FreshestCRL", func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						addURI(b, uri)
					})
				})
			})
		})
	})}
}

// AuthorityInfoAccessExtension encodes a caIssuers access description.
func AuthorityInfoAccessExtension(t testing.TB, uri string) pkix.Extension {
	return pkix.Extension{Id: oidAuthorityInfoAcces, Value: build(t, "AuthorityInfoAccess", func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidAccessCAIssuers)
				addURI(b, uri)
			})
		})
	})}
}

// ReasonCodeExtension encodes an entry reasonCode.
func ReasonCodeExtension(t testing.TB, code int) pkix.Extension {
	return pkix.Extension{Id: oidReasonCode, Value: build(t, "reasonCode", func(b *cryptobyte.Builder) {
		b.AddASN1Enum(int64(code))
	})}
}

// InvalidityDateExtension encodes an entry invalidityDate.
func InvalidityDateExtension(t testing.TB, at time.Time) pkix.Extension {
	return pkix.Extension{Id: oidInvalidityDate, Value: build(t, "invalidityDate", func(b *cryptobyte.Builder) {
		b.AddASN1GeneralizedTime(at.UTC())
	})}
}

// CertificateIssuerExtension encodes a critical certificateIssuer entry
// extension naming name as a directoryName.
func CertificateIssuerExtension(t testing.TB, name pkix.Name) pkix.Extension {
	t.Helper()
	nameDER, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		t.Fatalf("crltest: marshal certificate issuer: %v", err)
	}
	return pkix.Extension{Id: oidCertificateIssuer, Critical: true, Value: build(t, "certificateIssuer", func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.Tag(4).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddBytes(nameDER)
			})
		})
	})}
}

// UnknownExtension returns an extension with an unregistered OID.
func UnknownExtension(critical bool) pkix.Extension {
	return pkix.Extension{
		Id:       asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 55555, 1, 1},
		Critical: critical,
		Value:    []byte{0x05, 0x00},
	}
}
