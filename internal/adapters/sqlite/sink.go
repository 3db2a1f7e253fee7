// Package sqlite persists fetched messages in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/ports"
)

const upsertMessage = `
	INSERT INTO messages (id, thread_id, snippet, label_ids, size_estimate, internal_date, raw, stored_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		thread_id     = excluded.thread_id,
		snippet       = excluded.snippet,
		label_ids     = excluded.label_ids,
		size_estimate = excluded.size_estimate,
		internal_date = excluded.internal_date,
		raw           = excluded.raw,
		stored_at     = excluded.stored_at`

// Sink implements ports.MessageSink over SQLite. Re-storing a message
// replaces the previous row, so repeated fetches stay idempotent.
type Sink struct {
	db *sqlx.DB
}

var _ ports.MessageSink = (*Sink)(nil)

// Open opens or creates the database at path and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func Open(path string) (*Sink, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The driver serializes writers anyway; a single connection also keeps
	// an in-memory database from splitting per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	s := &Sink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	if err := s.db.Get(&version, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Store upserts the given messages in one transaction.
func (s *Sink) Store(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertMessage)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, m := range msgs {
		labels := []byte("[]")
		if m.LabelIDs != nil {
			if labels, err = json.Marshal(m.LabelIDs); err != nil {
				return fmt.Errorf("encode labels for %s: %w", m.ID, err)
			}
		}

		var internalDate int64
		if !m.InternalDate.IsZero() {
			internalDate = m.InternalDate.UnixMilli()
		}

		if _, err := stmt.ExecContext(ctx,
			string(m.ID), m.ThreadID, m.Snippet, string(labels),
			m.SizeEstimate, internalDate, []byte(m.Raw), now,
		); err != nil {
			return fmt.Errorf("store message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// Prune deletes messages whose internal date falls before the given time
// and reports how many were removed.
func (s *Sink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE internal_date < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned rows: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Count reports the number of stored messages.
func (s *Sink) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// messageRow is the table shape of a stored message.
type messageRow struct {
	ID           string `db:"id"`
	ThreadID     string `db:"thread_id"`
	Snippet      string `db:"snippet"`
	LabelIDs     string `db:"label_ids"`
	SizeEstimate int64  `db:"size_estimate"`
	InternalDate int64  `db:"internal_date"`
	Raw          []byte `db:"raw"`
	StoredAt     int64  `db:"stored_at"`
}

func (r messageRow) toDomain() (domain.Message, error) {
	var labels []domain.LabelID
	if err := json.Unmarshal([]byte(r.LabelIDs), &labels); err != nil {
		return domain.Message{}, fmt.Errorf("decode labels for %s: %w", r.ID, err)
	}

	m := domain.Message{
		ID:           domain.MessageID(r.ID),
		ThreadID:     r.ThreadID,
		LabelIDs:     labels,
		Snippet:      r.Snippet,
		SizeEstimate: r.SizeEstimate,
		Raw:          r.Raw,
	}
	if r.InternalDate > 0 {
		m.InternalDate = time.UnixMilli(r.InternalDate).UTC()
	}
	return m, nil
}

// Message loads one stored message by id.
func (s *Sink) Message(ctx context.Context, id domain.MessageID) (domain.Message, bool, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM messages WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("load message %s: %w", id, err)
	}

	m, err := row.toDomain()
	if err != nil {
		return domain.Message{}, false, err
	}
	return m, true, nil
}
