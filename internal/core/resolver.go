package core

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"medassist/internal/db"
	"medassist/pkg"
)

// ResolutionStatus is the outcome of an identity lookup.
type ResolutionStatus int

const (
	NotFound ResolutionStatus = iota
	Resolved
	Ambiguous
)

// Resolution carries the patient for Resolved and every match for Ambiguous.
type Resolution struct {
	Status     ResolutionStatus
	Patient    pkg.Patient
	Candidates []pkg.Patient
}

// Resolver maps ids and free-text names to patient records.
type Resolver struct {
	repo *db.Repository
}

func NewResolver(repo *db.Repository) *Resolver { return &Resolver{repo: repo} }

// Resolve never guesses: several name matches come back as Ambiguous.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Resolution, error) {
	match, candidates, err := r.repo.Find(ctx, identifier)
	if err != nil {
		return Resolution{}, err
	}
	switch {
	case match != nil:
		return Resolution{Status: Resolved, Patient: *match}, nil
	case len(candidates) > 1:
		return Resolution{Status: Ambiguous, Candidates: candidates}, nil
	default:
		return Resolution{Status: NotFound}, nil
	}
}

// EnsureByName resolves name and creates a patient when nothing matches.
// Ambiguous results are returned as they are for the caller to clarify.
// Blank and all-digit names are never created.
func (r *Resolver) EnsureByName(ctx context.Context, name string) (Resolution, error) {
	res, err := r.Resolve(ctx, name)
	if err != nil || res.Status != NotFound {
		return res, err
	}
	first, last := SplitName(name)
	if first == "" || db.IsDigits(first) && last == "" {
		return res, nil
	}
	p, err := r.repo.Create(ctx, first, last)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Status: Resolved, Patient: p}, nil
}

// SplitName splits a free-text name into a first token and the rest, each
// word capitalized.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	rest := make([]string, 0, len(parts)-1)
	for _, w := range parts[1:] {
		rest = append(rest, capitalize(w))
	}
	return capitalize(parts[0]), strings.Join(rest, " ")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
