package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"medassist/pkg"
)

const undefinedTable pq.ErrorCode = "42P01"

// PostgresStore keeps the patient sequence in the patients table, one row
// per record with its position in the sequence.  Save rewrites the table
// inside a single transaction, so readers see the old or the new sequence.
type PostgresStore struct {
	DB       *sql.DB
	Notifier *Notifier
	log      zerolog.Logger
}

// NewPostgresStore constructs a store over an open database.  notifier may
// be nil; when set, every successful Save is announced on its channel.
func NewPostgresStore(db *sql.DB, notifier *Notifier, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{DB: db, Notifier: notifier, log: logger}
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]pkg.Patient, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, doc FROM patients ORDER BY position ASC`)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
			return nil, fmt.Errorf("patients table missing, run the migrate command: %w", err)
		}
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	all := []pkg.Patient{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var p pkg.Patient
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, &ParseError{Path: "patients/" + id, Err: err}
		}
		all = append(all, p)
	}
	return all, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, all []pkg.Patient) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patients`); err != nil {
		return fmt.Errorf("clear patients: %w", err)
	}
	for i, p := range all {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode patient %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO patients (id, position, doc, updated_at)
             VALUES ($1, $2, $3, NOW())`,
			p.ID, i, doc,
		); err != nil {
			return fmt.Errorf("insert patient %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, strconv.Itoa(len(all))); err != nil {
			s.log.Warn().Err(err).Msg("failed to notify patient store change")
		}
	}
	return nil
}
