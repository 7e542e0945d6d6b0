package httpsig

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts verification outcomes and produced signatures. A nil
// *Metrics records nothing.
type Metrics struct {
	verifications *prometheus.CounterVec
	signatures    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpsig_verifications_total",
			Help: "Inbound signature checks by final state, or fault for server errors.",
		}, []string{"state"}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpsig_signatures_total",
			Help: "Signatures produced by algorithm.",
		}, []string{"algorithm"}),
	}

	for _, c := range []prometheus.Collector{m.verifications, m.signatures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observeVerification(state State) {
	if m == nil {
		return
	}

	m.verifications.WithLabelValues(state.String()).Inc()
}

// faultLabel counts checks that ended in a server error instead of a
// verification state.
const faultLabel = "fault"

func (m *Metrics) observeFault() {
	if m == nil {
		return
	}

	m.verifications.WithLabelValues(faultLabel).Inc()
}

func (m *Metrics) observeSignature(alg Algorithm) {
	if m == nil {
		return
	}

	m.signatures.WithLabelValues(alg.PortableName()).Inc()
}
