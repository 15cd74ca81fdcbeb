// Package rollout decides, per named capability, whether an operation uses
// the legacy shape, the federated shape, or both. The gate is a pure
// function of the Flags it was constructed with; rollout state is an
// explicit input, never ambient process-wide configuration. The gate is
// never consulted for tenant-isolation checks — those apply unconditionally.
package rollout

// Capability names a switchable read/write behavior.
type Capability string

const (
	// FederatedAppointmentWrite enables the federated enrichment step of
	// appointment creation.
	FederatedAppointmentWrite Capability = "federated-appointment-write"
	// FederatedAppointmentRead serves appointment reads from the federated
	// link structure instead of the legacy direct references.
	FederatedAppointmentRead Capability = "federated-appointment-read"
	// FederatedDoctorLookup resolves doctors through the global identity
	// layer in registration flows.
	FederatedDoctorLookup Capability = "federated-doctor-lookup"
)

// Flags is the externally supplied rollout configuration.
type Flags struct {
	AppointmentWrite bool
	AppointmentRead  bool
	DoctorLookup     bool
}

// Gate answers IsEnabled for the fixed capability set. Safe to call on
// every request; no side effects.
type Gate struct {
	enabled map[Capability]bool
}

func NewGate(flags Flags) *Gate {
	return &Gate{enabled: map[Capability]bool{
		FederatedAppointmentWrite: flags.AppointmentWrite,
		FederatedAppointmentRead:  flags.AppointmentRead,
		FederatedDoctorLookup:     flags.DoctorLookup,
	}}
}

// IsEnabled reports whether the capability is rolled out. Unknown
// capabilities are disabled.
func (g *Gate) IsEnabled(c Capability) bool {
	return g.enabled[c]
}
