package db

import (
	"context"
	"fmt"
	"strings"

	"medassist/internal/metrics"
	"medassist/pkg"
)

// Repository wraps a Store with the record-level operations used by the
// dialogue.  Every mutation is a full load, modify, save cycle.
type Repository struct {
	Store Store
	// Metrics counts saves; nil records nothing.
	Metrics *metrics.Recorder
}

// NewRepository constructs a new Repository over an existing Store.
func NewRepository(store Store) *Repository { return &Repository{Store: store} }

// LoadAll returns every patient record in store order.
func (r *Repository) LoadAll(ctx context.Context) ([]pkg.Patient, error) {
	return r.Store.LoadAll(ctx)
}

// Get returns the patient with the given id or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (pkg.Patient, error) {
	all, err := r.Store.LoadAll(ctx)
	if err != nil {
		return pkg.Patient{}, err
	}
	id = strings.TrimSpace(id)
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return pkg.Patient{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// Find looks a patient up by id or name.  An all-digit query matches ids
// exactly and never falls back to names.  Any other query is a
// case-insensitive substring match on "first last".  A single hit is
// returned as match; otherwise every hit (possibly none) is returned as
// candidates.
func (r *Repository) Find(ctx context.Context, query string) (*pkg.Patient, []pkg.Patient, error) {
	all, err := r.Store.LoadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	match, candidates := FindIn(all, query)
	return match, candidates, nil
}

// FindIn applies Find's matching rules to an already loaded sequence.
func FindIn(all []pkg.Patient, query string) (*pkg.Patient, []pkg.Patient) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if IsDigits(q) {
		for i := range all {
			if all[i].ID == q {
				p := all[i]
				return &p, nil
			}
		}
		return nil, nil
	}
	var matches []pkg.Patient
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.FullName()), q) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 1 {
		return &matches[0], nil
	}
	return nil, matches
}

// Create allocates an id and appends a new patient with no conditions,
// appointments or next appointment.
func (r *Repository) Create(ctx context.Context, firstName, lastName string) (pkg.Patient, error) {
	all, err := r.Store.LoadAll(ctx)
	if err != nil {
		return pkg.Patient{}, err
	}
	p := pkg.Patient{
		ID:           AllocateID(all),
		FirstName:    firstName,
		LastName:     lastName,
		Conditions:   []string{},
		Appointments: []pkg.Appointment{},
	}
	if err := r.save(ctx, append(all, p)); err != nil {
		return pkg.Patient{}, fmt.Errorf("save new patient: %w", err)
	}
	return p, nil
}

// Upsert replaces the record sharing p.ID or appends p, then saves.
func (r *Repository) Upsert(ctx context.Context, p pkg.Patient) error {
	all, err := r.Store.LoadAll(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range all {
		if all[i].ID == p.ID {
			all[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, p)
	}
	if err := r.save(ctx, all); err != nil {
		return fmt.Errorf("save patient %s: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) save(ctx context.Context, all []pkg.Patient) error {
	err := r.Store.Save(ctx, all)
	r.Metrics.StoreSave(err)
	return err
}

// IsDigits reports whether s is a non-empty run of ASCII digits, the form
// patient ids take.
func IsDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
