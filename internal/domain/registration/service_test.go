package registration

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/profile"
	"github.com/clinika/clinika/internal/platform/rollout"
)

type mockDoctorWriter struct {
	created []*legacy.Doctor
}

func (m *mockDoctorWriter) Create(_ context.Context, d *legacy.Doctor) error {
	d.ID = uuid.New()
	m.created = append(m.created, d)
	return nil
}

type mockPatientWriter struct {
	created []*legacy.Patient
}

func (m *mockPatientWriter) Create(_ context.Context, p *legacy.Patient) error {
	p.ID = uuid.New()
	m.created = append(m.created, p)
	return nil
}

type mockResolver struct {
	person *identity.GlobalPerson
	fail   bool
	calls  int
}

func (m *mockResolver) ResolveOrCreate(_ context.Context, kind identity.PersonKind, _ *uuid.UUID, _ identity.MatchHints) (*identity.GlobalPerson, error) {
	m.calls++
	if m.fail {
		return nil, fmt.Errorf("resolver unavailable")
	}
	if m.person == nil {
		m.person = &identity.GlobalPerson{ID: uuid.New(), Kind: kind}
	}
	return m.person, nil
}

type mockProfiles struct {
	profile *profile.ClinicProfile
	gotData profile.ProfileData
	fail    bool
}

func (m *mockProfiles) FindOrCreate(_ context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID, data profile.ProfileData) (*profile.ClinicProfile, bool, error) {
	if m.fail {
		return nil, false, fmt.Errorf("profile store unavailable")
	}
	m.gotData = data
	m.profile = &profile.ClinicProfile{
		ID:             uuid.New(),
		Kind:           kind,
		ClinicID:       clinicID,
		GlobalPersonID: globalPersonID,
		LegacyRecordID: data.LegacyRecordID,
	}
	return m.profile, true, nil
}

func newTestService(flags rollout.Flags) (*Service, *mockResolver, *mockProfiles) {
	resolver := &mockResolver{}
	profiles := &mockProfiles{}
	svc := NewService(&mockDoctorWriter{}, &mockPatientWriter{}, resolver, profiles, rollout.NewGate(flags), zerolog.Nop())
	return svc, resolver, profiles
}

func TestRegisterDoctor_Federated(t *testing.T) {
	svc, _, profiles := newTestService(rollout.Flags{DoctorLookup: true})

	result, err := svc.RegisterDoctor(context.Background(), RegisterDoctorInput{
		ClinicID: uuid.New(), FirstName: "Karen", LastName: "H",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RecordID == uuid.Nil {
		t.Error("expected a legacy record")
	}
	if result.GlobalPersonID == nil || result.ProfileID == nil {
		t.Error("expected federated identifiers")
	}
	if profiles.profile == nil {
		t.Error("expected a clinic profile")
	}
	if profiles.gotData.LegacyRecordID == nil || *profiles.gotData.LegacyRecordID != result.RecordID {
		t.Error("profile must be bound to the new legacy record")
	}
}

func TestRegisterDoctor_LookupGateOff(t *testing.T) {
	svc, resolver, _ := newTestService(rollout.Flags{})

	result, err := svc.RegisterDoctor(context.Background(), RegisterDoctorInput{
		ClinicID: uuid.New(), FirstName: "Karen", LastName: "H",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.GlobalPersonID != nil {
		t.Error("no identity resolution while the capability is off")
	}
	if resolver.calls != 0 {
		t.Error("resolver must not be consulted while the capability is off")
	}
}

func TestRegisterPatient_FederationFailureIsNonFatal(t *testing.T) {
	svc, _, profiles := newTestService(rollout.Flags{})
	profiles.fail = true

	result, err := svc.RegisterPatient(context.Background(), RegisterPatientInput{
		ClinicID: uuid.New(), FirstName: "Ann", LastName: "P",
	})
	if err != nil {
		t.Fatalf("federation failure must not surface: %v", err)
	}
	if result.RecordID == uuid.Nil {
		t.Error("expected a legacy record")
	}
	if result.ProfileID != nil {
		t.Error("profile id must be absent after a federation failure")
	}
}
