// Package sqlite provides a SQLite-backed message store for running the
// sweeper locally. It exposes the same cross-room read and atomic delete
// contract as the DynamoDB client.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"message-sweeper/internal/domain"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// Store is a message store backed by a single SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. The caller must Close the returned Store.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutMessage inserts or replaces a message.
func (s *Store) PutMessage(ctx context.Context, msg domain.Message) error {
	if msg.RoomID == "" || msg.MessageID == "" {
		return errors.New("sqlite: put message: room and message IDs are required")
	}

	var destruction sql.NullInt64
	if msg.DestructionTime != nil {
		destruction = sql.NullInt64{Int64: msg.DestructionTime.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (room_id, id, destruction_time, payload)
		VALUES (?, ?, ?, ?)`,
		msg.RoomID, msg.MessageID, destruction, msg.Payload,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put message: %w", err)
	}
	return nil
}

// FindExpired returns every message, in any room, whose destruction time is
// at or before cutoff.
func (s *Store) FindExpired(ctx context.Context, cutoff time.Time) ([]domain.MessageRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, id
		FROM messages
		WHERE destruction_time IS NOT NULL AND destruction_time <= ?
		ORDER BY destruction_time, room_id, id`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find expired: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []domain.MessageRef
	for rows.Next() {
		var ref domain.MessageRef
		if err := rows.Scan(&ref.RoomID, &ref.MessageID); err != nil {
			return nil, fmt.Errorf("sqlite: scan expired: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: find expired rows: %w", err)
	}
	return refs, nil
}

// DeleteBatch deletes every ref inside one transaction.
func (s *Store) DeleteBatch(ctx context.Context, refs []domain.MessageRef) (err error) {
	if len(refs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM messages WHERE room_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ref := range refs {
		if ref.RoomID == "" || ref.MessageID == "" {
			return errors.New("sqlite: delete batch: room and message IDs are required")
		}
		if _, err := stmt.ExecContext(ctx, ref.RoomID, ref.MessageID); err != nil {
			return fmt.Errorf("sqlite: delete %s/%s: %w", ref.RoomID, ref.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit delete: %w", err)
	}
	return nil
}

// Count returns the number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return n, nil
}
