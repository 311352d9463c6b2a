package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSession returns the stored session with the given ID.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kb_hash, kb_source, epoch FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.KBHash, &sess.KBSource, &sess.Epoch)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns every stored session ordered by ID.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kb_hash, kb_source, epoch FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.KBHash, &sess.KBSource, &sess.Epoch); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadTacts returns the tacts of one session epoch in tact order.
// Returns an empty slice (not nil) if no tacts were recorded.
func (s *Store) ReadTacts(ctx context.Context, sessionID string, epoch int) ([]TactRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, epoch, tact, inputs, result, result_hash
		FROM tacts
		WHERE session_id = ? AND epoch = ?
		ORDER BY tact ASC
	`, sessionID, epoch)
	if err != nil {
		return nil, fmt.Errorf("query tacts: %w", err)
	}
	defer rows.Close()

	tacts := []TactRow{}
	for rows.Next() {
		var (
			row    TactRow
			inputs string
		)
		if err := rows.Scan(&row.SessionID, &row.Epoch, &row.Tact, &inputs, &row.Result, &row.ResultHash); err != nil {
			return nil, fmt.Errorf("scan tact: %w", err)
		}
		if row.Inputs, err = unmarshalInputs(inputs); err != nil {
			return nil, fmt.Errorf("tact %d: %w", row.Tact, err)
		}
		tacts = append(tacts, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tacts: %w", err)
	}
	return tacts, nil
}

// LastTact returns the highest recorded tact of a session epoch, or -1 if
// none was recorded.
func (s *Store) LastTact(ctx context.Context, sessionID string, epoch int) (int, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(tact) FROM tacts WHERE session_id = ? AND epoch = ?
	`, sessionID, epoch).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last tact: %w", err)
	}
	if !last.Valid {
		return -1, nil
	}
	return int(last.Int64), nil
}
