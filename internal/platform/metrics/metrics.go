// Package metrics exposes Prometheus instrumentation for the dual-write
// coordinator and the backfill migrator.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	appointmentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_created_total",
			Help: "Appointments created, labeled by the shape of the persisted links",
		},
		[]string{"shape"},
	)

	enrichmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "federated_enrichment_total",
			Help: "Outcomes of the best-effort federated enrichment step",
		},
		[]string{"outcome"},
	)

	backfillRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backfill_records_total",
			Help: "Backfill migrator per-record outcomes",
		},
		[]string{"stage", "outcome"},
	)

	crossTenantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cross_tenant_violations_total",
			Help: "Detected attempts to link records from different clinics",
		},
	)
)

// AppointmentCreated records a persisted appointment. shape is "legacy" or
// "federated" depending on whether federated links were committed.
func AppointmentCreated(shape string) {
	appointmentsCreated.WithLabelValues(shape).Inc()
}

// EnrichmentOutcome records the result of one enrichment attempt:
// "applied", "skipped", or "failed".
func EnrichmentOutcome(outcome string) {
	enrichmentOutcomes.WithLabelValues(outcome).Inc()
}

// BackfillRecord records one migrated/skipped/errored record for a stage.
func BackfillRecord(stage, outcome string) {
	backfillRecords.WithLabelValues(stage, outcome).Inc()
}

// CrossTenantViolation records a tenant-isolation anomaly.
func CrossTenantViolation() {
	crossTenantViolations.Inc()
}

// Handler returns the Prometheus exposition endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
