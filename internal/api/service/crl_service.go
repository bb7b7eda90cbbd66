// Package service provides business logic for the REST API.
package service

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	"github.com/remiblancher/qcrl/internal/api/dto"
	apierrors "github.com/remiblancher/qcrl/internal/api/errors"
	"github.com/remiblancher/qcrl/internal/audit"
	"github.com/remiblancher/qcrl/internal/metrics"
	"github.com/remiblancher/qcrl/pkg/crl"
	"github.com/remiblancher/qcrl/pkg/crlcache"
	"github.com/remiblancher/qcrl/pkg/x509util"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "service")

// CRLService validates CRLs, answers serial lookups against validated
// CRLs and decodes CRLs for inspection.
type CRLService struct {
	validator *crl.Validator
	cache     *crlcache.Cache
	metrics   *metrics.Metrics
}

// NewCRLService creates a new CRLService.
func NewCRLService(validator *crl.Validator, cache *crlcache.Cache, m *metrics.Metrics) (*CRLService, error) {
	if validator == nil || cache == nil || m == nil {
		return nil, errors.New("validator, cache and metrics are required")
	}
	return &CRLService{validator: validator, cache: cache, metrics: m}, nil
}

// Validate decodes the CRL and validates it against the issuer certificate.
func (s *CRLService) Validate(ctx context.Context, req *dto.CRLValidateRequest) (*dto.CRLValidateResponse, error) {
	crlData, err := req.CRL.Decode()
	if err != nil {
		return nil, apierrors.InvalidRequest(errors.Wrap(err, "crl"))
	}
	certData, err := req.IssuerCert.Decode()
	if err != nil {
		return nil, apierrors.InvalidRequest(errors.Wrap(err, "issuer_cert"))
	}
	certs, err := x509util.ParseCertificates(certData)
	if err != nil {
		return nil, apierrors.InvalidRequest(errors.Wrap(err, "issuer_cert"))
	}
	issuer, err := x509util.NewIdentity(certs[0])
	if err != nil {
		return nil, apierrors.InvalidRequest(errors.Wrap(err, "issuer_cert"))
	}

	actor := audit.ActorFrom(ctx)
	done := s.metrics.Start("validate")
	v, cached, err := s.cache.DecodeAndValidate(ctx, crlData, req.SourceURL, issuer)
	done()
	if err != nil {
		s.metrics.ObserveError(err)
		if auditErr := audit.LogDecodeFailure(actor, crl.ID(crlData), req.SourceURL, err); auditErr != nil {
			return nil, auditErr
		}
		logger.KV(xlog.WARNING, "reason", "validate", "kind", crl.KindOf(err).String(), "err", err.Error())
		return nil, err
	}

	s.metrics.ObserveValidation(v)
	if err := audit.LogValidation(actor, v, cached); err != nil {
		return nil, err
	}

	return &dto.CRLValidateResponse{
		CRLID:                    hex.EncodeToString(v.Digest[:]),
		Valid:                    v.Valid,
		InvalidityReason:         string(v.InvalidityReason),
		IssuerMatches:            v.IssuerPrincipalMatches,
		SignatureIntact:          v.SignatureIntact,
		CRLSignKeyUsage:          v.CRLSignKeyUsage,
		UnknownCriticalExtension: v.UnknownCriticalExtension,
		URL:                      v.URL(),
		Cached:                   cached,
		Info:                     infoFromValidity(v),
	}, nil
}

// Lookup queries the cached CRL identified by id for a serial number.
func (s *CRLService) Lookup(ctx context.Context, id string, req *dto.CRLLookupRequest) (*dto.CRLLookupResponse, error) {
	id = strings.ToLower(id)
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, apierrors.NotFound("CRL", id)
	}
	serial, err := x509util.ParseSerial(req.Serial, req.Format)
	if err != nil {
		return nil, apierrors.InvalidRequest(err)
	}

	entry, revoked := v.Lookup(serial)
	s.metrics.ObserveLookup(revoked)
	if err := audit.LogLookup(audit.ActorFrom(ctx), id, serial, entry); err != nil {
		return nil, err
	}

	resp := &dto.CRLLookupResponse{
		CRLID:   id,
		Serial:  x509util.FormatSerial(serial),
		Revoked: revoked,
		Valid:   v.Valid,
	}
	if revoked {
		e := EntryInfo(entry)
		resp.Entry = &e
	}
	return resp, nil
}

// Inspect decodes a CRL without validating it.
func (s *CRLService) Inspect(ctx context.Context, req *dto.CRLInspectRequest) (*dto.CRLInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := req.CRL.Decode()
	if err != nil {
		return nil, apierrors.InvalidRequest(errors.Wrap(err, "crl"))
	}
	if req.Limit < 0 {
		return nil, apierrors.InvalidRequest(errors.New("limit must not be negative"))
	}

	done := s.metrics.Start("inspect")
	rl, err := crl.Decode(data)
	done()
	if err != nil {
		s.metrics.ObserveError(err)
		return nil, err
	}

	info := InfoFromList(rl, s.validator.Resolver())
	entries := rl.Entries
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	for i := range entries {
		info.RevokedCertificates = append(info.RevokedCertificates, EntryInfo(&entries[i]))
	}
	return &info, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func infoFromValidity(v *crl.Validity) dto.CRLInfo {
	info := dto.CRLInfo{
		Issuer:                   v.Issuer.String(),
		ThisUpdate:               formatTime(v.ThisUpdate),
		NextUpdate:               formatTime(v.NextUpdate),
		Algorithm:                v.SignatureAlgorithm.String(),
		DistributionPointURL:     v.DistributionPointURL,
		IsDelta:                  v.IsDelta,
		UnknownCriticalExtension: v.UnknownCriticalExtension,
		RevokedCount:             v.EntryCount,
	}
	if v.CRLNumber != nil {
		info.Number = v.CRLNumber.String()
	}
	if v.ExpiredCertsOnCRL != nil {
		info.ExpiredCertsOnCRL = formatTime(*v.ExpiredCertsOnCRL)
	}
	return info
}

// InfoFromList summarizes a decoded CRL. The algorithm is named through
// resolver when it resolves, else shown as its OID.
func InfoFromList(rl *crl.RevocationList, resolver *crl.Resolver) dto.CRLInfo {
	info := dto.CRLInfo{
		Version:                  rl.Version,
		Issuer:                   rl.Issuer.String(),
		ThisUpdate:               formatTime(rl.ThisUpdate),
		NextUpdate:               formatTime(rl.NextUpdate),
		Algorithm:                rl.SignatureAlgorithm.Algorithm.String(),
		DistributionPointURL:     rl.DistributionPointURL(),
		FreshestCRL:              rl.FreshestCRL,
		IsDelta:                  rl.IsDelta(),
		UnknownCriticalExtension: rl.UnknownCriticalExtension,
		RevokedCount:             len(rl.Entries),
	}
	if resolver != nil {
		if scheme, err := resolver.Resolve(rl.SignatureAlgorithm); err == nil {
			info.Algorithm = scheme.Algorithm.String()
		}
	}
	if rl.Number != nil {
		info.Number = rl.Number.String()
	}
	if rl.BaseCRLNumber != nil {
		info.DeltaCRLIndicator = rl.BaseCRLNumber.String()
	}
	if rl.ExpiredCertsOnCRL != nil {
		info.ExpiredCertsOnCRL = formatTime(*rl.ExpiredCertsOnCRL)
	}
	if len(rl.AuthorityKeyID) > 0 {
		info.AuthorityKeyID = strings.ToUpper(hex.EncodeToString(rl.AuthorityKeyID))
	}
	if dp := rl.DistributionPoint; dp != nil {
		info.Indirect = dp.IndirectCRL
		info.AuthorityOnly = dp.OnlyContainsCACerts
	}
	return info
}

// EntryInfo converts a revoked entry for the API.
func EntryInfo(e *crl.RevokedEntry) dto.CRLEntry {
	out := dto.CRLEntry{
		Serial:    x509util.FormatSerial(e.SerialNumber),
		RevokedAt: formatTime(e.RevocationTime),
	}
	if e.Reason != nil {
		out.Reason = e.Reason.String()
	}
	if e.InvalidityDate != nil {
		out.InvalidityDate = formatTime(*e.InvalidityDate)
	}
	if len(e.CertificateIssuer) > 0 {
		out.CertificateIssuer = e.CertificateIssuer.String()
	}
	return out
}
