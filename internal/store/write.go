package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
)

// Session is one stored solver session.
type Session struct {
	ID       string `json:"id"`
	KBHash   string `json:"kb_hash"`
	KBSource string `json:"kb_source"`
	Epoch    int    `json:"epoch"`
}

// TactRow is one committed tact of a session epoch.
type TactRow struct {
	SessionID  string             `json:"session_id"`
	Epoch      int                `json:"epoch"`
	Tact       int                `json:"tact"`
	Inputs     []engine.TactInput `json:"inputs"`
	Result     string             `json:"result"` // canonical TactResult JSON
	ResultHash string             `json:"result_hash"`
}

// CreateSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, kb_hash, kb_source, epoch)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.KBHash, sess.KBSource, sess.Epoch)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ResetSession starts a new epoch for the session and returns it.
// Tacts of earlier epochs are kept.
func (s *Store) ResetSession(ctx context.Context, id string) (int, error) {
	var epoch int
	err := s.db.QueryRowContext(ctx, `
		UPDATE sessions SET epoch = epoch + 1
		WHERE id = ?
		RETURNING epoch
	`, id).Scan(&epoch)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reset session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("reset session %s: %w", id, err)
	}
	return epoch, nil
}

// DeleteSession removes a session and, by cascade, all its tacts.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

// WriteTact appends one committed tact to the log.
// Uses ON CONFLICT DO NOTHING for idempotency: rewriting the same
// (session, epoch, tact) is silently ignored.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteTact(ctx context.Context, sessionID string, epoch int, inputs []engine.TactInput, res *ir.TactResult) error {
	inputsJSON, err := marshalInputs(inputs)
	if err != nil {
		return fmt.Errorf("write tact: %w", err)
	}
	resultJSON, hash, err := marshalResult(res)
	if err != nil {
		return fmt.Errorf("write tact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tacts (session_id, epoch, tact, inputs, result, result_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, epoch, tact) DO NOTHING
	`, sessionID, epoch, res.Tact, inputsJSON, resultJSON, hash)
	if err != nil {
		return fmt.Errorf("write tact: %w", err)
	}
	return nil
}
