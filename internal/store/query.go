package store

import (
	"context"
	"fmt"

	"github.com/roach88/tactline/internal/queryir"
	"github.com/roach88/tactline/internal/querysql"
)

// FindTacts returns the numbers of the logged tacts matching q, in tact
// order. Returns an empty slice (not nil) when nothing matches.
func (s *Store) FindTacts(ctx context.Context, q queryir.Query) ([]int, error) {
	query, params, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("find tacts: %w", err)
	}
	defer rows.Close()

	tacts := []int{}
	for rows.Next() {
		var tact int
		if err := rows.Scan(&tact); err != nil {
			return nil, fmt.Errorf("scan tact: %w", err)
		}
		tacts = append(tacts, tact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tacts: %w", err)
	}
	return tacts, nil
}
