package dto

// CRLValidateRequest asks for a CRL to be validated against an issuer
// certificate.
type CRLValidateRequest struct {
	// CRL is the CRL, DER (base64) or PEM.
	CRL BinaryData `json:"crl"`

	// IssuerCert is the candidate issuer certificate, DER (base64) or PEM.
	IssuerCert BinaryData `json:"issuer_cert"`

	// SourceURL is where the CRL was fetched from.
	SourceURL string `json:"source_url,omitempty"`
}

// CRLValidateResponse is the outcome of a validation.
type CRLValidateResponse struct {
	// CRLID is the hex SHA-256 of the CRL, used by the lookup endpoint.
	CRLID string `json:"crl_id"`

	Valid            bool   `json:"valid"`
	InvalidityReason string `json:"invalidity_reason,omitempty"`

	IssuerMatches            bool `json:"issuer_matches"`
	SignatureIntact          bool `json:"signature_intact"`
	CRLSignKeyUsage          bool `json:"crl_sign_key_usage"`
	UnknownCriticalExtension bool `json:"unknown_critical_extension"`

	// URL is the distribution point URL, or the source URL.
	URL string `json:"url,omitempty"`

	// Cached reports that the result was served from the cache.
	Cached bool `json:"cached"`

	Info CRLInfo `json:"info"`
}

// CRLInfo summarizes a decoded CRL.
type CRLInfo struct {
	Version    int    `json:"version,omitempty"`
	Issuer     string `json:"issuer"`
	Number     string `json:"number,omitempty"`
	ThisUpdate string `json:"this_update"`
	NextUpdate string `json:"next_update,omitempty"`
	Algorithm  string `json:"algorithm"`

	// ExpiredCertsOnCRL is set only from a GeneralizedTime value.
	ExpiredCertsOnCRL    string   `json:"expired_certs_on_crl,omitempty"`
	DistributionPointURL string   `json:"distribution_point_url,omitempty"`
	AuthorityKeyID       string   `json:"authority_key_id,omitempty"`
	FreshestCRL          []string `json:"freshest_crl,omitempty"`

	IsDelta           bool   `json:"is_delta"`
	DeltaCRLIndicator string `json:"delta_crl_indicator,omitempty"`

	// Indirect and AuthorityOnly reflect the IssuingDistributionPoint flags.
	Indirect      bool `json:"indirect,omitempty"`
	AuthorityOnly bool `json:"authority_only,omitempty"`

	UnknownCriticalExtension bool `json:"unknown_critical_extension"`

	RevokedCount int `json:"revoked_count"`

	// RevokedCertificates is filled by the inspect endpoint only.
	RevokedCertificates []CRLEntry `json:"revoked_certificates,omitempty"`
}

// CRLEntry represents a revoked certificate in a CRL.
type CRLEntry struct {
	Serial            string `json:"serial"`
	RevokedAt         string `json:"revoked_at"`
	Reason            string `json:"reason,omitempty"`
	InvalidityDate    string `json:"invalidity_date,omitempty"`
	CertificateIssuer string `json:"certificate_issuer,omitempty"`
}

// CRLLookupRequest queries a validated CRL for a serial number.
type CRLLookupRequest struct {
	// Serial is the certificate serial number.
	Serial string `json:"serial"`

	// Format is "hex" (default) or "dec".
	Format string `json:"format,omitempty"`
}

// CRLLookupResponse reports whether a serial is listed.
type CRLLookupResponse struct {
	CRLID   string    `json:"crl_id"`
	Serial  string    `json:"serial"`
	Revoked bool      `json:"revoked"`
	Entry   *CRLEntry `json:"entry,omitempty"`

	// Valid repeats the validity of the CRL the answer comes from.
	Valid bool `json:"valid"`
}

// CRLInspectRequest asks for a CRL to be decoded without an issuer.
type CRLInspectRequest struct {
	CRL BinaryData `json:"crl"`

	// Limit bounds the number of listed entries. 0 lists all of them.
	Limit int `json:"limit,omitempty"`
}
