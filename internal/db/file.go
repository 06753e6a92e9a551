package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"medassist/pkg"
)

// FileStore keeps all patients in one JSON array file.  Writes go to a
// temporary file in the same directory which is then renamed over the
// canonical path.
type FileStore struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.  The file does
// not have to exist yet.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: logger.With().Str("store", path).Logger()}
}

// Path returns the canonical file path.
func (s *FileStore) Path() string { return s.path }

// LoadAll reads the file.  A missing file is created as an empty array and
// yields an empty store.  Unparseable contents return a *ParseError.
func (s *FileStore) LoadAll(ctx context.Context) ([]pkg.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info().Msg("patient store missing, creating empty store")
		if err := s.write(nil); err != nil {
			return nil, err
		}
		return []pkg.Patient{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read patient store: %w", err)
	}
	var all []pkg.Patient
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	if all == nil {
		// a literal null is not a sequence of patients
		return nil, &ParseError{Path: s.path, Err: errors.New("expected a JSON array")}
	}
	return all, nil
}

// Save replaces the file contents atomically.
func (s *FileStore) Save(ctx context.Context, all []pkg.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(all)
}

func (s *FileStore) write(all []pkg.Patient) error {
	data, err := Encode(all)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace patient store: %w", err)
	}
	s.log.Debug().Int("patients", len(all)).Msg("patient store saved")
	return nil
}

// Encode renders patients the way they are written to disk: a two-space
// indented JSON array without HTML escaping.  A nil slice encodes as [].
func Encode(all []pkg.Patient) ([]byte, error) {
	if all == nil {
		all = []pkg.Patient{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return nil, fmt.Errorf("encode patients: %w", err)
	}
	return buf.Bytes(), nil
}
