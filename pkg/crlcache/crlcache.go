// Package crlcache keeps validated CRLs in memory so that repeated
// validation of the same bytes against the same issuer is free.
package crlcache

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/remiblancher/qcrl/pkg/crl"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "crlcache")

// DefaultSize is the number of validated CRLs kept when Config.Size is 0.
const DefaultSize = 256

// Request statuses reported on the requests counter.
const (
	StatusHit     = "hit"
	StatusMiss    = "miss"
	StatusExpired = "expired"
)

// Key identifies a validation: the CRL content and the candidate issuer.
// PEM and DER forms of one CRL share a key.
type Key struct {
	CRL    [32]byte
	Issuer string
}

// ID returns the hex DER digest, the identifier used by Get. It matches
// crl.ID and Validity.Digest.
func (k Key) ID() string {
	return hex.EncodeToString(k.CRL[:])
}

// Config configures a Cache.
type Config struct {
	// Size bounds the number of entries. 0 selects DefaultSize.
	Size int
	// Clock decides freshness. nil selects the wall clock.
	Clock clock.Clock
	// Registerer receives the requests counter when set.
	Registerer prometheus.Registerer
}

// Cache is an LRU of validated CRLs. Entries become stale once the CRL's
// nextUpdate has passed. It is safe for concurrent use.
type Cache struct {
	validator *crl.Validator
	clock     clock.Clock
	entries   *lru.Cache[Key, *crl.Validity]
	byID      *lru.Cache[string, *crl.Validity]
	requests  *prometheus.CounterVec
}

// New returns a cache that validates misses with validator.
func New(validator *crl.Validator, cfg Config) (*Cache, error) {
	if validator == nil {
		return nil, errors.New("crlcache: validator is required")
	}
	size := cfg.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < 0 {
		return nil, errors.Newf("crlcache: invalid size %d", size)
	}

	entries, err := lru.New[Key, *crl.Validity](size)
	if err != nil {
		return nil, errors.Wrap(err, "crlcache: create LRU")
	}
	byID, err := lru.New[string, *crl.Validity](size)
	if err != nil {
		return nil, errors.Wrap(err, "crlcache: create LRU")
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qcrl",
		Subsystem: "crl_cache",
		Name:      "requests_total",
		Help:      "CRL cache lookups by status.",
	}, []string{"status"})
	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(requests); err != nil {
			return nil, errors.Wrap(err, "crlcache: register metrics")
		}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Cache{
		validator: validator,
		clock:     clk,
		entries:   entries,
		byID:      byID,
		requests:  requests,
	}, nil
}

// KeyFor computes the cache key of raw validated against candidate.
func KeyFor(raw []byte, candidate crl.CertificateIdentity) Key {
	return Key{CRL: crl.Fingerprint(raw), Issuer: issuerFingerprint(candidate)}
}

type certificateHolder interface {
	Certificate() *x509.Certificate
}

func issuerFingerprint(candidate crl.CertificateIdentity) string {
	if candidate == nil {
		return ""
	}
	if h, ok := candidate.(certificateHolder); ok && h.Certificate() != nil {
		sum := sha256.Sum256(h.Certificate().Raw)
		return "cert:" + hex.EncodeToString(sum[:])
	}
	der, err := asn1.Marshal(candidate.Subject())
	if err != nil {
		return "name:" + fmt.Sprint(candidate.Subject())
	}
	sum := sha256.Sum256(der)
	return "name:" + hex.EncodeToString(sum[:])
}

// DecodeAndValidate returns the cached validity of raw against candidate,
// validating on a miss. The second result reports a cache hit. Errors are
// never cached.
func (c *Cache) DecodeAndValidate(ctx context.Context, raw []byte, sourceURL string, candidate crl.CertificateIdentity) (*crl.Validity, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	key := KeyFor(raw, candidate)
	if v, ok := c.entries.Get(key); ok {
		if c.fresh(v) {
			c.requests.WithLabelValues(StatusHit).Inc()
			return v, true, nil
		}
		c.requests.WithLabelValues(StatusExpired).Inc()
		c.entries.Remove(key)
		logger.KV(xlog.DEBUG, "status", "expired", "crl", key.ID(), "next_update", v.NextUpdate)
	} else {
		c.requests.WithLabelValues(StatusMiss).Inc()
	}

	v, err := c.validator.DecodeAndValidate(raw, sourceURL, candidate)
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(key, v)
	c.byID.Add(hex.EncodeToString(v.Digest[:]), v)
	return v, false, nil
}

// Get returns the most recent validity stored for id, the hex SHA-256 of
// the CRL's DER encoding.
func (c *Cache) Get(id string) (*crl.Validity, bool) {
	v, ok := c.byID.Get(id)
	if !ok {
		return nil, false
	}
	if !c.fresh(v) {
		c.byID.Remove(id)
		return nil, false
	}
	return v, true
}

// Len returns the number of cached validations.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.byID.Purge()
}

// fresh reports whether v may still be served. A CRL without nextUpdate
// never goes stale.
func (c *Cache) fresh(v *crl.Validity) bool {
	return v.NextUpdate.IsZero() || !c.clock.Now().After(v.NextUpdate)
}
