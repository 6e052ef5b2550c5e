package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the record-lifecycle Prometheus metrics.
type Metrics struct {
	RecordsCreated   *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	VersionConflicts prometheus.Counter
	AuditFailures    prometheus.Counter
}

// New creates and registers the record metrics.
func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_records_created_total",
			Help: "Records created by kind",
		}, []string{"kind"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_record_transitions_total",
			Help: "Successful status transitions by kind and action",
		}, []string{"kind", "action"}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_record_version_conflicts_total",
			Help: "Mutations rejected because the record version was stale",
		}),
		AuditFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_append_failures_total",
			Help: "Mutations aborted because the audit append failed",
		}),
	}
}
