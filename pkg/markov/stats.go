package markov

import (
	"context"
	"database/sql"
	"errors"
)

// Stats summarises the whole database.
type Stats struct {
	Models []Model
	// PerModel is keyed by model ID.
	PerModel map[int]ModelStats
	// Tokens and States are shared by all models.
	Tokens int
	States int
}

// ModelStats summarises a single model.
type ModelStats struct {
	Transitions int // distinct state -> token links
	TotalCount  int // sum of all link counts
	Starts      int // distinct tokens that can open a sentence
	Sentences   int // training sentences stored for originality checks
}

// Stats collects database-wide and per-model counts.
func (g *Generator) Stats(ctx context.Context) (*Stats, error) {
	models, err := g.Models(ctx)
	if err != nil {
		return nil, err
	}

	s := &Stats{Models: models, PerModel: make(map[int]ModelStats, len(models))}
	if err = g.stmtCountTokens.QueryRowContext(ctx).Scan(&s.Tokens); err != nil {
		return nil, err
	}
	if err = g.stmtCountStates.QueryRowContext(ctx).Scan(&s.States); err != nil {
		return nil, err
	}

	var keyBuf []byte
	for _, m := range models {
		var ms ModelStats
		if err = g.stmtCountLinks.QueryRowContext(ctx, m.ID).Scan(&ms.Transitions); err != nil {
			return nil, err
		}
		if err = g.stmtSumCounts.QueryRowContext(ctx, m.ID).Scan(&ms.TotalCount); err != nil {
			return nil, err
		}
		if err = g.stmtCountSentences.QueryRowContext(ctx, m.ID).Scan(&ms.Sentences); err != nil {
			return nil, err
		}

		keyBuf = stateKey(keyBuf, make([]int, m.StateSize))
		var beginState int
		err = g.stmtStateID.QueryRowContext(ctx, string(keyBuf)).Scan(&beginState)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, err
		default:
			if err = g.stmtCountStarts.QueryRowContext(ctx, m.ID, beginState).Scan(&ms.Starts); err != nil {
				return nil, err
			}
		}
		s.PerModel[m.ID] = ms
	}
	return s, nil
}
