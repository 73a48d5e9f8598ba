package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Logins              prometheus.Counter
	ProtocolsCreated    prometheus.Counter
	ReportsCreated      prometheus.Counter
	EntriesFilled       *prometheus.CounterVec
	ReportsCompleted    prometheus.Counter
	AuthorizationDenied *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qualitrack_logins_total",
			Help: "Total number of successful logins",
		}),
		ProtocolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qualitrack_protocols_created_total",
			Help: "Total number of protocols created",
		}),
		ReportsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qualitrack_reports_created_total",
			Help: "Total number of inspection reports created",
		}),
		EntriesFilled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qualitrack_report_entries_filled_total",
			Help: "Total number of report entries filled, by entry kind",
		}, []string{"kind"}),
		ReportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qualitrack_reports_completed_total",
			Help: "Total number of reports marked completed",
		}),
		AuthorizationDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "qualitrack_authorization_denied_total",
			Help: "Write attempts rejected by the authorization guard, by operation",
		}, []string{"operation"}),
	}
}
