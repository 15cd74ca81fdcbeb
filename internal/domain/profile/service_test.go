package profile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/platform/apperror"
)

// -- Mock profile repository --

type profileKey struct {
	kind     identity.PersonKind
	clinic   uuid.UUID
	personID uuid.UUID
}

type mockProfileRepo struct {
	profiles map[profileKey]*ClinicProfile
	updates  int
	// raceWinner simulates losing the insert race on the unique triple.
	raceWinner *ClinicProfile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[profileKey]*ClinicProfile)}
}

func key(p *ClinicProfile) profileKey {
	return profileKey{kind: p.Kind, clinic: p.ClinicID, personID: p.GlobalPersonID}
}

func (m *mockProfileRepo) Create(_ context.Context, p *ClinicProfile) error {
	if m.raceWinner != nil {
		m.profiles[key(m.raceWinner)] = m.raceWinner
		m.raceWinner = nil
		return &pgconn.PgError{Code: "23505"}
	}
	if _, exists := m.profiles[key(p)]; exists {
		return &pgconn.PgError{Code: "23505"}
	}
	if p.LegacyRecordID != nil {
		for _, existing := range m.profiles {
			if existing.Kind == p.Kind && existing.LegacyRecordID != nil &&
				*existing.LegacyRecordID == *p.LegacyRecordID {
				return &pgconn.PgError{Code: "23505"}
			}
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.profiles[key(p)] = p
	return nil
}

func (m *mockProfileRepo) GetByID(_ context.Context, id uuid.UUID) (*ClinicProfile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperror.NotFound("clinic profile", id.String())
}

func (m *mockProfileRepo) GetByClinicAndPerson(_ context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID) (*ClinicProfile, error) {
	p, ok := m.profiles[profileKey{kind: kind, clinic: clinicID, personID: globalPersonID}]
	if !ok {
		return nil, apperror.NotFound("clinic profile", globalPersonID.String())
	}
	return p, nil
}

func (m *mockProfileRepo) GetByLegacyRecord(_ context.Context, kind identity.PersonKind, legacyRecordID uuid.UUID) (*ClinicProfile, error) {
	for _, p := range m.profiles {
		if p.Kind == kind && p.LegacyRecordID != nil && *p.LegacyRecordID == legacyRecordID {
			return p, nil
		}
	}
	return nil, apperror.NotFound("clinic profile", legacyRecordID.String())
}

func (m *mockProfileRepo) Update(_ context.Context, p *ClinicProfile) error {
	m.updates++
	m.profiles[key(p)] = p
	return nil
}

func (m *mockProfileRepo) ListByClinic(_ context.Context, kind identity.PersonKind, clinicID uuid.UUID, limit, offset int) ([]*ClinicProfile, int, error) {
	var result []*ClinicProfile
	for _, p := range m.profiles {
		if p.Kind == kind && p.ClinicID == clinicID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

type mockClinics struct {
	clinics map[uuid.UUID]bool
}

func (m *mockClinics) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.clinics[id], nil
}

func newTestManager() (*Manager, *mockProfileRepo, uuid.UUID) {
	repo := newMockProfileRepo()
	clinicID := uuid.New()
	clinics := &mockClinics{clinics: map[uuid.UUID]bool{clinicID: true}}
	return NewManager(repo, clinics, zerolog.Nop()), repo, clinicID
}

func strPtr(s string) *string { return &s }

func TestFindOrCreate_CreatesProfile(t *testing.T) {
	mgr, repo, clinicID := newTestManager()
	personID := uuid.New()

	p, created, err := mgr.FindOrCreate(context.Background(), identity.KindDoctor, clinicID, personID,
		ProfileData{FirstName: "Karen", LastName: "Hovhannisyan", Specialization: strPtr("cardiology")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for a new profile")
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if p.Status != StatusActive {
		t.Errorf("expected active status, got %s", p.Status)
	}
	if len(repo.profiles) != 1 {
		t.Errorf("expected one profile row, have %d", len(repo.profiles))
	}
}

func TestFindOrCreate_Idempotent(t *testing.T) {
	mgr, repo, clinicID := newTestManager()
	personID := uuid.New()
	data := ProfileData{FirstName: "Ann", LastName: "Petrosyan", Phone: strPtr("+37411112222")}

	first, created, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}

	second, created, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("second call must not create")
	}
	if first.ID != second.ID {
		t.Errorf("expected same profile id, got %s and %s", first.ID, second.ID)
	}
	if len(repo.profiles) != 1 {
		t.Errorf("expected one profile row, have %d", len(repo.profiles))
	}
	if repo.updates != 0 {
		t.Errorf("identical input should be a no-op, got %d updates", repo.updates)
	}
}

func TestFindOrCreate_MergeNeverClearsFields(t *testing.T) {
	mgr, _, clinicID := newTestManager()
	personID := uuid.New()

	_, _, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID,
		ProfileData{FirstName: "Ann", LastName: "Petrosyan", Phone: strPtr("+37411112222"), Email: strPtr("ann@example.com")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Empty phone must not clear the stored one; the new email replaces.
	p, created, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID,
		ProfileData{FirstName: "Ann", LastName: "Petrosyan", Email: strPtr("ann.p@example.com")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("merge path must not create")
	}
	if p.Phone == nil || *p.Phone != "+37411112222" {
		t.Error("empty input cleared a stored field")
	}
	if p.Email == nil || *p.Email != "ann.p@example.com" {
		t.Error("non-empty input should replace the stored field")
	}
}

func TestFindOrCreate_InvalidClinic(t *testing.T) {
	mgr, _, _ := newTestManager()

	_, _, err := mgr.FindOrCreate(context.Background(), identity.KindDoctor, uuid.New(), uuid.New(),
		ProfileData{FirstName: "K", LastName: "H"})
	if err == nil {
		t.Fatal("expected error for unknown clinic")
	}
	if apperror.HTTPStatus(err) != 422 {
		t.Errorf("expected invalid-clinic mapping, got %d", apperror.HTTPStatus(err))
	}
}

func TestFindOrCreate_RecordsLegacyLink(t *testing.T) {
	mgr, _, clinicID := newTestManager()
	personID := uuid.New()
	recordID := uuid.New()

	p, _, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID,
		ProfileData{FirstName: "Ann", LastName: "Petrosyan", LegacyRecordID: &recordID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := mgr.FindByLegacyRecord(context.Background(), identity.KindPatient, recordID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != p.ID {
		t.Errorf("expected profile %s via legacy record, got %s", p.ID, found.ID)
	}
}

func TestFindOrCreate_LegacyLinkIsFillOnce(t *testing.T) {
	mgr, _, clinicID := newTestManager()
	personID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	_, _, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID,
		ProfileData{FirstName: "Ann", LastName: "Petrosyan", LegacyRecordID: &first})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A duplicate legacy record converging onto the same profile must not
	// re-point the link.
	p, created, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID,
		ProfileData{FirstName: "Ann", LastName: "Petrosyan", LegacyRecordID: &second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("merge path must not create")
	}
	if p.LegacyRecordID == nil || *p.LegacyRecordID != first {
		t.Error("profile must stay bound to the first legacy record")
	}
}

func TestFindOrCreate_RaceReReadsWinner(t *testing.T) {
	mgr, repo, clinicID := newTestManager()
	personID := uuid.New()

	winner := &ClinicProfile{
		ID:             uuid.New(),
		Kind:           identity.KindPatient,
		ClinicID:       clinicID,
		GlobalPersonID: personID,
		FirstName:      "Ann",
		LastName:       "Petrosyan",
		Status:         StatusActive,
		CreatedAt:      time.Now(),
	}
	repo.raceWinner = winner

	p, created, err := mgr.FindOrCreate(context.Background(), identity.KindPatient, clinicID, personID,
		ProfileData{FirstName: "Ann", LastName: "Petrosyan"})
	if err != nil {
		t.Fatalf("race must not surface: %v", err)
	}
	if created {
		t.Error("losing the race is not a create")
	}
	if p.ID != winner.ID {
		t.Errorf("expected winner %s, got %s", winner.ID, p.ID)
	}
	if len(repo.profiles) != 1 {
		t.Errorf("expected one profile row, have %d", len(repo.profiles))
	}
}
