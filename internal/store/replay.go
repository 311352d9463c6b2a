package store

import (
	"context"
	"fmt"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
)

// RecordedTacts returns a session epoch in the form engine.Replay consumes.
func (s *Store) RecordedTacts(ctx context.Context, sessionID string, epoch int) ([]engine.RecordedTact, error) {
	rows, err := s.ReadTacts(ctx, sessionID, epoch)
	if err != nil {
		return nil, err
	}
	recorded := make([]engine.RecordedTact, 0, len(rows))
	for i, row := range rows {
		if row.Tact != i {
			return nil, fmt.Errorf("session %s epoch %d: tact log has a gap at tact %d", sessionID, epoch, i)
		}
		recorded = append(recorded, engine.RecordedTact{
			Tact:       row.Tact,
			Inputs:     row.Inputs,
			ResultHash: row.ResultHash,
		})
	}
	return recorded, nil
}

// ReplaySession re-executes a stored session epoch against kb and reports
// tacts whose result hash differs from the log.
//
// The knowledge base must hash to the value recorded with the session;
// replaying against a different one is refused.
func (s *Store) ReplaySession(ctx context.Context, kb *ir.KnowledgeBase, sessionID string, epoch int, opts ...engine.Option) (*engine.ReplayReport, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	hash, err := ir.KBHash(kb)
	if err != nil {
		return nil, err
	}
	if hash != sess.KBHash {
		return nil, fmt.Errorf("replay session %s: knowledge base hash %s does not match recorded %s", sessionID, hash, sess.KBHash)
	}

	recorded, err := s.RecordedTacts(ctx, sessionID, epoch)
	if err != nil {
		return nil, err
	}
	return engine.Replay(kb, recorded, opts...)
}
