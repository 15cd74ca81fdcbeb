package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/internal/platform/db"
)

// Resolver finds or creates the single global identity for a person. Both
// the live dual-write path and the backfill migrator go through it, so the
// two paths share identical matching semantics.
type Resolver struct {
	persons  Repository
	accounts AccountDirectory
	logger   zerolog.Logger
}

func NewResolver(persons Repository, accounts AccountDirectory, logger zerolog.Logger) *Resolver {
	return &Resolver{persons: persons, accounts: accounts, logger: logger}
}

// ResolveOrCreate returns the GlobalPerson for the given attributes,
// creating one only when no existing identity matches.
//
// Priority: an exact login-account match wins over everything; otherwise
// the deterministic matching strategy runs over existing clinic profiles
// of the requested kind; otherwise a new GlobalPerson is created. Creation
// races on the login-account uniqueness constraint are resolved by
// re-reading the winner, never surfaced to the caller.
func (r *Resolver) ResolveOrCreate(ctx context.Context, kind PersonKind, loginAccountID *uuid.UUID, hints MatchHints) (*GlobalPerson, error) {
	if loginAccountID != nil {
		exists, err := r.accounts.Exists(ctx, *loginAccountID)
		if err != nil {
			return nil, apperror.Transient(fmt.Errorf("check login account: %w", err))
		}
		if !exists {
			return nil, apperror.NotFound("login account", loginAccountID.String())
		}

		p, err := r.persons.GetByLoginAccount(ctx, kind, *loginAccountID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("lookup by login account: %w", err)
		}
	}

	candidates, err := r.persons.ListCandidates(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list match candidates: %w", err)
	}

	decision := Evaluate(hints, candidates)
	if decision.Matched {
		if decision.Ambiguous {
			r.logger.Warn().
				Str("kind", string(kind)).
				Str("winner", decision.PersonID.String()).
				Str("rule", string(decision.Rule)).
				Msg("ambiguous identity match resolved by rule priority")
		}
		return r.persons.GetByID(ctx, decision.PersonID)
	}

	p := &GlobalPerson{Kind: kind, LoginAccountID: loginAccountID}
	err = r.persons.Create(ctx, p)
	if err == nil {
		return p, nil
	}

	// Lost a creation race: another writer inserted the same identity
	// between our lookup and insert. Re-read and proceed with the winner.
	if db.IsUniqueViolation(err) && loginAccountID != nil {
		return r.persons.GetByLoginAccount(ctx, kind, *loginAccountID)
	}
	return nil, fmt.Errorf("create global person: %w", err)
}
