package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"medassist/pkg"
)

// Store persists the whole ordered sequence of patient records.  Save must
// replace the previous contents atomically: readers see either the old or the
// new sequence, never a mix.
//
// No implementation guards against concurrent writers in different
// processes.  Two sessions saving the same store lose updates; the last Save
// wins.
type Store interface {
	LoadAll(ctx context.Context) ([]pkg.Patient, error)
	Save(ctx context.Context, all []pkg.Patient) error
}

var (
	// ErrStoreCorrupt is matched by every error caused by unparseable
	// store contents.
	ErrStoreCorrupt = errors.New("patient store is corrupt")
	// ErrNotFound is returned when a patient id is not in the store.
	ErrNotFound = errors.New("patient not found")
)

// ParseError reports store contents that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStoreCorrupt) true for any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrStoreCorrupt }

// AllocateID returns one more than the largest numeric id in all, or "1"
// for an empty store.  Ids that are not integers are ignored.
func AllocateID(all []pkg.Patient) string {
	var max int64
	for _, p := range all {
		n, err := strconv.ParseInt(p.ID, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10)
}
