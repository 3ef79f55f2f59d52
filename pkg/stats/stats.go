package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchRequests counts searches issued from the web form by outcome
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapsafe_search_requests_total",
			Help: "Number of directory searches by result.",
		},
		[]string{"result"},
	)

	// SanitizedInputs counts inputs passed through the escaping functions
	SanitizedInputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapsafe_sanitized_inputs_total",
			Help: "Number of sanitized inputs by kind and whether escaping changed them.",
		},
		[]string{"kind", "modified"},
	)

	// DirectoryBinds counts bind attempts against the embedded directory
	DirectoryBinds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapsafe_directory_binds_total",
			Help: "Number of bind requests served by the embedded directory by result.",
		},
		[]string{"result"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldapsafe_build_info",
			Help: "Build information.",
		},
		[]string{"version"},
	)
)

// SetVersion publishes the running version
func SetVersion(version string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version).Set(1)
}

// ObserveSanitized records one escaping call
func ObserveSanitized(kind, raw, sanitized string) {
	modified := "false"
	if raw != sanitized {
		modified = "true"
	}

	SanitizedInputs.WithLabelValues(kind, modified).Inc()
}
