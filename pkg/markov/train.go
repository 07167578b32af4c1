package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

const (
	// maxSentenceTokens splits runaway "sentences" (text with no punctuation).
	maxSentenceTokens = 4096
	// flushThreshold is the number of distinct pending transitions that triggers
	// a write to the database.
	flushThreshold = 1000
)

type link struct {
	state int
	next  int
}

// trainer holds the per-call state of a Train run.
type trainer struct {
	ctx         context.Context
	model       Model
	tokenizer   Tokenizer
	upsertToken *sql.Stmt
	upsertState *sql.Stmt
	addLink     *sql.Stmt
	addSentence *sql.Stmt

	tokenIDs  map[string]int
	stateIDs  map[string]int
	pending   map[link]int
	keyBuf    []byte
	sentences int64
}

// Train reads text from data and adds every sentence it contains to the model.
// Terminating punctuation is kept as the last token of its sentence, so '?'
// and '!' survive into generated text. Each sentence is also stored verbatim
// for ShortSentence's originality test. The whole run is one transaction.
func (g *Generator) Train(ctx context.Context, model Model, data io.Reader) error {
	if model.StateSize < 1 {
		return fmt.Errorf("model '%s' has invalid state size %d", model.Name, model.StateSize)
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	addLink, err := tx.PrepareContext(ctx, `INSERT INTO markov_transitions (model_id, state_id, next_id, count) VALUES (?, ?, ?, ?)
ON CONFLICT(model_id, state_id, next_id) DO UPDATE SET count = count + excluded.count;`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition insert: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(addLink)

	addSentence, err := tx.PrepareContext(ctx, `INSERT INTO markov_sentences (model_id, sentence_text) VALUES (?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare sentence insert: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(addSentence)

	t := &trainer{
		ctx:         ctx,
		model:       model,
		tokenizer:   g.tokenizer,
		upsertToken: tx.StmtContext(ctx, g.stmtUpsertToken),
		upsertState: tx.StmtContext(ctx, g.stmtUpsertState),
		addLink:     addLink,
		addSentence: addSentence,
		tokenIDs:    make(map[string]int),
		stateIDs:    make(map[string]int),
		pending:     make(map[link]int),
	}

	var (
		ids   []int
		words []string
	)
	stream := g.tokenizer.NewStream(data)
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("tokenizer error: %w", err)
		}

		if len(ids) >= maxSentenceTokens {
			if err = t.sentence(ids, words); err != nil {
				return err
			}
			ids, words = ids[:0], words[:0]
		}

		id, err := t.token(token.Text)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		words = append(words, token.Text)

		if token.EOC {
			if err = t.sentence(ids, words); err != nil {
				return err
			}
			ids, words = ids[:0], words[:0]
		}
	}

	if err = t.sentence(ids, words); err != nil {
		return err
	}
	if err = t.flush(); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "Training completed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.ID),
		slog.Int64("sentences", t.sentences),
		slog.Int("tokens_seen", len(t.tokenIDs)),
	)
	return nil
}

func (t *trainer) token(text string) (int, error) {
	if id, ok := t.tokenIDs[text]; ok {
		return id, nil
	}
	var id int
	if err := t.upsertToken.QueryRowContext(t.ctx, text).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to store token '%s': %w", text, err)
	}
	t.tokenIDs[text] = id
	return id, nil
}

func (t *trainer) state(ids []int) (int, error) {
	t.keyBuf = stateKey(t.keyBuf, ids)
	key := string(t.keyBuf)
	if id, ok := t.stateIDs[key]; ok {
		return id, nil
	}
	var id int
	if err := t.upsertState.QueryRowContext(t.ctx, key).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to store state '%s': %w", key, err)
	}
	t.stateIDs[key] = id
	return id, nil
}

// sentence records the transitions of one sentence. A sentence made of a
// single stray terminator is ignored.
func (t *trainer) sentence(ids []int, words []string) error {
	if len(ids) == 0 || (len(ids) == 1 && t.tokenizer.EOC(words[0]) == "") {
		return nil
	}

	size := t.model.StateSize
	window := make([]int, size+len(ids)+1)
	copy(window[size:], ids)
	window[len(window)-1] = EndTokenID

	for i := 0; i <= len(ids); i++ {
		stateID, err := t.state(window[i : i+size])
		if err != nil {
			return err
		}
		t.pending[link{state: stateID, next: window[i+size]}]++
	}

	if _, err := t.addSentence.ExecContext(t.ctx, t.model.ID, Render(t.tokenizer, words)); err != nil {
		return fmt.Errorf("failed to store sentence: %w", err)
	}
	t.sentences++

	if len(t.pending) >= flushThreshold {
		return t.flush()
	}
	return nil
}

func (t *trainer) flush() error {
	for l, n := range t.pending {
		if _, err := t.addLink.ExecContext(t.ctx, t.model.ID, l.state, l.next, n); err != nil {
			return fmt.Errorf("failed to store transition (%d -> %d): %w", l.state, l.next, err)
		}
	}
	clear(t.pending)
	return nil
}
