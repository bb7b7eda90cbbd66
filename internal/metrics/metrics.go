// Package metrics holds the Prometheus collectors of the CRL service.
package metrics

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/remiblancher/qcrl/pkg/crl"
)

// Metrics groups the collectors. A zero value is not usable; call New.
type Metrics struct {
	clk clock.Clock

	validations  *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	lookups      *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	responseTime *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer, clk clock.Clock) (*Metrics, error) {
	if clk == nil {
		clk = clock.New()
	}
	m := &Metrics{
		clk: clk,
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcrl",
			Name:      "validations_total",
			Help:      "CRL validations by result and signature algorithm.",
		}, []string{"result", "algorithm"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcrl",
			Name:      "validation_errors_total",
			Help:      "CRLs that could not be decoded or validated, by error kind.",
		}, []string{"kind"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcrl",
			Name:      "lookups_total",
			Help:      "Serial number lookups by status.",
		}, []string{"status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qcrl",
			Name:      "operation_seconds",
			Help:      "Time taken by CRL operations.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qcrl",
			Name:      "response_time_seconds",
			Help:      "Time taken to respond to an HTTP request.",
		}, []string{"endpoint", "method", "code"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.validations, m.decodeErrors, m.lookups, m.latency, m.responseTime} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(err, "failed to register metrics")
			}
		}
	}
	return m, nil
}

// ObserveValidation counts a validation outcome.
func (m *Metrics) ObserveValidation(v *crl.Validity) {
	result := "valid"
	if !v.Valid {
		result = "invalid"
	}
	m.validations.WithLabelValues(result, v.SignatureAlgorithm.String()).Inc()
}

// ObserveError counts a failed decode or validation by its error kind.
func (m *Metrics) ObserveError(err error) {
	m.decodeErrors.WithLabelValues(crl.KindOf(err).String()).Inc()
}

// ObserveLookup counts a serial lookup.
func (m *Metrics) ObserveLookup(revoked bool) {
	status := "not_revoked"
	if revoked {
		status = "revoked"
	}
	m.lookups.WithLabelValues(status).Inc()
}

// Start returns a function that records the time elapsed since Start under
// operation.
func (m *Metrics) Start(operation string) func() {
	begin := m.clk.Now()
	return func() {
		m.latency.WithLabelValues(operation).Observe(m.clk.Since(begin).Seconds())
	}
}

var endpointComponent = regexp.MustCompile(`^[a-z0-9-]*$`)

// endpointFromPath trims a path at its first variable component, such as
// a CRL identifier, to keep label cardinality bounded.
func endpointFromPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	components := strings.Split(path, "/")
	for i, v := range components {
		if !endpointComponent.MatchString(v) || (i > 0 && isHexID(v)) {
			return strings.Join(components[:i], "/")
		}
	}
	return path
}

func isHexID(s string) bool {
	if len(s) < 16 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

type responseWriterWithStatus struct {
	http.ResponseWriter
	code int
}

func (r *responseWriterWithStatus) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Handler wraps next and records response times.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := m.clk.Now()
		rw := &responseWriterWithStatus{ResponseWriter: w, code: http.StatusOK}
		endpoint := endpointFromPath(r.URL.Path)

		defer func() {
			m.responseTime.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   r.Method,
				"code":     fmt.Sprintf("%d", rw.code),
			}).Observe(m.clk.Since(begin).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
