package legacy

import (
	"context"

	"github.com/google/uuid"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type LoginAccountRepository interface {
	Create(ctx context.Context, a *LoginAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*LoginAccount, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListAll returns every legacy doctor ordered by creation time
	// ascending, the scan order the backfill and matching rely on.
	ListAll(ctx context.Context) ([]*Doctor, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Doctor, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// ListAll returns every legacy patient ordered by creation time ascending.
	ListAll(ctx context.Context) ([]*Patient, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Patient, int, error)
}
