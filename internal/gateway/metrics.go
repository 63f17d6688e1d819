package gateway

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docuscan_gateway_requests_total",
	Help: "Gateway operations by endpoint and classified outcome.",
}, []string{"endpoint", "outcome"})

// observe records one finished operation under its outcome class.
func observe(endpoint string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthenticationRequired):
		outcome = "auth_required"
	case IsUnreachable(err):
		outcome = "unreachable"
	default:
		outcome = "rejected"
	}
	requestsTotal.WithLabelValues(endpoint, outcome).Inc()
}
