package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Token is a single unit of text produced by a tokenizer. EOC marks a token
// that ends a sentence, such as a full stop.
type Token struct {
	Text string
	EOC  bool
}

// Tokenizer splits training text into tokens and knows how to join tokens back
// into readable text.
type Tokenizer interface {
	// NewStream returns a StreamTokenizer reading from r.
	NewStream(r io.Reader) StreamTokenizer
	// Separator returns the text placed between prev and next when rendering.
	Separator(prev, next string) string
	// EOC returns the text appended when a sentence ends after last without
	// its own terminating punctuation.
	EOC(last string) string
}

// StreamTokenizer yields tokens one at a time. Next returns io.EOF once the
// underlying reader is exhausted.
type StreamTokenizer interface {
	Next() (*Token, error)
}

// Transition is a possible next token out of a state, with the number of times
// it was seen during training.
type Transition struct {
	ID    int
	Count int
}

// stateKey renders a window of token IDs as the key stored in markov_states.
func stateKey(buf []byte, ids []int) []byte {
	buf = buf[:0]
	for i, id := range ids {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendInt(buf, int64(id), 10)
	}
	return buf
}

// NextTokens returns the transitions out of the state identified by key for
// the given model, ordered by token ID, together with the sum of their counts.
// An unknown state yields no transitions and no error.
func (g *Generator) NextTokens(ctx context.Context, model Model, key string) ([]Transition, int, error) {
	var stateID int
	err := g.stmtStateID.QueryRowContext(ctx, key).Scan(&stateID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("could not look up state '%s': %w", key, err)
	}

	rows, err := g.stmtTransitions.QueryContext(ctx, model.ID, stateID)
	if err != nil {
		return nil, 0, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var (
		out   []Transition
		total int
	)
	for rows.Next() {
		var t Transition
		if err = rows.Scan(&t.ID, &t.Count); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
		total += t.Count
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// TokenID returns the ID of a token's text, or sql.ErrNoRows if it has never
// been seen.
func (g *Generator) TokenID(ctx context.Context, text string) (int, error) {
	var id int
	if err := g.stmtTokenID.QueryRowContext(ctx, text).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// TokenText returns the text stored for a token ID.
func (g *Generator) TokenText(ctx context.Context, id int) (string, error) {
	var text string
	if err := g.stmtTokenText.QueryRowContext(ctx, id).Scan(&text); err != nil {
		return "", err
	}
	return text, nil
}

// tokenText resolves an ID through a per-call cache.
func (g *Generator) tokenText(ctx context.Context, id int, cache map[int]string) (string, error) {
	if text, ok := cache[id]; ok {
		return text, nil
	}
	text, err := g.TokenText(ctx, id)
	if err != nil {
		return "", err
	}
	cache[id] = text
	return text, nil
}
