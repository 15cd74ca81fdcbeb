package identity

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MatchRule names one rule of the ordered matching strategy.
type MatchRule string

const (
	RulePhone            MatchRule = "phone"
	RuleEmail            MatchRule = "email"
	RuleContactBirthDate MatchRule = "contact+birthdate"
)

// Candidate is one clinic profile considered by the matcher. Candidates
// carry the contact attributes recorded on the profile and the global
// person the profile points at.
type Candidate struct {
	ProfileID uuid.UUID
	PersonID  uuid.UUID
	Phone     *string
	Email     *string
	BirthDate *time.Time
	CreatedAt time.Time
}

// Decision is the single outcome of evaluating the matching strategy.
// When Ambiguous is set, different rules pointed at different persons and
// the highest-priority rule decided the winner.
type Decision struct {
	Matched   bool
	PersonID  uuid.UUID
	Rule      MatchRule
	Ambiguous bool
}

// NormalizePhone strips separators so stored and hinted numbers compare
// exactly. A leading + is preserved.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

type matchRule struct {
	name MatchRule
	fn   func(hints MatchHints, c Candidate) bool
}

// rules is the fixed priority order of the matching strategy. Exact login
// account matching happens before any of these, in the resolver.
var rules = []matchRule{
	{RulePhone, func(h MatchHints, c Candidate) bool {
		return h.Phone != "" && c.Phone != nil && NormalizePhone(*c.Phone) == h.Phone
	}},
	{RuleEmail, func(h MatchHints, c Candidate) bool {
		return h.Email != "" && c.Email != nil && NormalizeEmail(*c.Email) == h.Email
	}},
	{RuleContactBirthDate, func(h MatchHints, c Candidate) bool {
		if !sameDay(h.BirthDate, c.BirthDate) {
			return false
		}
		phoneHit := h.Phone != "" && c.Phone != nil && NormalizePhone(*c.Phone) == h.Phone
		emailHit := h.Email != "" && c.Email != nil && NormalizeEmail(*c.Email) == h.Email
		return phoneHit || emailHit
	}},
}

// Evaluate runs the ordered matching strategy over the candidates and
// returns a single decision. It is pure: no persistence, no side effects.
//
// Determinism: candidates are scanned in creation order (oldest first,
// profile id as tiebreak), and within each rule the first hit wins, so
// repeated evaluations of the same input always produce the same decision.
// When two rules elect different persons the highest-priority rule decides
// and the decision is flagged Ambiguous for the caller to log.
func Evaluate(hints MatchHints, candidates []Candidate) Decision {
	hints.Phone = NormalizePhone(hints.Phone)
	hints.Email = NormalizeEmail(hints.Email)

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ProfileID.String() < ordered[j].ProfileID.String()
	})

	var winner Decision
	seen := make(map[uuid.UUID]bool)
	for _, rule := range rules {
		for _, c := range ordered {
			if !rule.fn(hints, c) {
				continue
			}
			if !winner.Matched {
				winner = Decision{Matched: true, PersonID: c.PersonID, Rule: rule.name}
			}
			seen[c.PersonID] = true
			break // first hit decides this rule
		}
	}

	if len(seen) > 1 {
		winner.Ambiguous = true
	}
	return winner
}
