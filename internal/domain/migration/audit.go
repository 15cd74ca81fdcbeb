package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditStore runs the comparison queries between the legacy and federated
// shapes. Read-only by contract.
type AuditStore interface {
	// UnmatchedDoctors lists legacy doctors with no clinic profile
	// counterpart at their clinic.
	UnmatchedDoctors(ctx context.Context, clinicID *uuid.UUID) ([]uuid.UUID, error)
	UnmatchedPatients(ctx context.Context, clinicID *uuid.UUID) ([]uuid.UUID, error)
	// TenantViolations lists appointments whose federated links reference a
	// profile outside the appointment's clinic.
	TenantViolations(ctx context.Context, clinicID *uuid.UUID) ([]TenantViolation, error)
	// SpecializationDivergences samples the doctor specialization field for
	// disagreement between the legacy record and its profile.
	SpecializationDivergences(ctx context.Context, clinicID *uuid.UUID) ([]FieldDivergence, error)
}

// Auditor compares the legacy and federated shapes. It never mutates data;
// it is meant to run after a backfill and on a recurring schedule.
type Auditor struct {
	store  AuditStore
	logger zerolog.Logger
}

func NewAuditor(store AuditStore, logger zerolog.Logger) *Auditor {
	return &Auditor{store: store, logger: logger}
}

// Audit builds the divergence report, scoped to one clinic when clinicID is
// set, system-wide otherwise.
func (a *Auditor) Audit(ctx context.Context, clinicID *uuid.UUID) (*Report, error) {
	report := &Report{ClinicID: clinicID, GeneratedAt: time.Now().UTC()}

	var err error
	if report.UnmatchedDoctors, err = a.store.UnmatchedDoctors(ctx, clinicID); err != nil {
		return nil, fmt.Errorf("unmatched doctors: %w", err)
	}
	if report.UnmatchedPatients, err = a.store.UnmatchedPatients(ctx, clinicID); err != nil {
		return nil, fmt.Errorf("unmatched patients: %w", err)
	}
	if report.TenantViolations, err = a.store.TenantViolations(ctx, clinicID); err != nil {
		return nil, fmt.Errorf("tenant violations: %w", err)
	}
	if report.Divergences, err = a.store.SpecializationDivergences(ctx, clinicID); err != nil {
		return nil, fmt.Errorf("field divergences: %w", err)
	}

	evt := a.logger.Info()
	if len(report.TenantViolations) > 0 {
		evt = a.logger.Error()
	}
	evt.
		Int("unmatched_doctors", len(report.UnmatchedDoctors)).
		Int("unmatched_patients", len(report.UnmatchedPatients)).
		Int("tenant_violations", len(report.TenantViolations)).
		Int("divergences", len(report.Divergences)).
		Msg("consistency audit completed")
	return report, nil
}
