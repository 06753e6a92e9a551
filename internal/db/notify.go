package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Notifier wraps PostgreSQL NOTIFY.  The reporting service LISTENs on the
// channel and reloads the patient list when a payload arrives.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a new Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL setting of the reporting service.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends payload on the channel.  pg_notify is used so the payload
// travels as a bound parameter.
func (n *Notifier) Notify(ctx context.Context, payload string) error {
	if _, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", n.Channel, err)
	}
	return nil
}
