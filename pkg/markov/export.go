package markov

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ExportedModel is the JSON form of a model, as written by Export.
type ExportedModel struct {
	Name        string               `json:"name"`
	StateSize   int                  `json:"state_size"`
	Tokens      map[string]int       `json:"tokens"` // token text -> token id
	States      map[string]int       `json:"states"` // state key -> state id
	Transitions []ExportedTransition `json:"transitions"`
	Sentences   []string             `json:"sentences,omitempty"`
}

// ExportedTransition is one state -> token link of an ExportedModel.
type ExportedTransition struct {
	State int `json:"state"`
	Next  int `json:"next"`
	Count int `json:"count"`
}

// Export writes the model to w as indented JSON.
func (g *Generator) Export(ctx context.Context, model Model, w io.Writer) error {
	out := ExportedModel{
		Name:      model.Name,
		StateSize: model.StateSize,
		Tokens:    map[string]int{BeginTokenText: BeginTokenID, EndTokenText: EndTokenID},
		States:    make(map[string]int),
	}

	rows, err := g.db.QueryContext(ctx, `SELECT state_id, next_id, count FROM markov_transitions WHERE model_id = ? ORDER BY state_id, next_id`, model.ID)
	if err != nil {
		return fmt.Errorf("could not query transitions for export: %w", err)
	}
	tokenIDs := make(map[int]struct{})
	for rows.Next() {
		var t ExportedTransition
		if err = rows.Scan(&t.State, &t.Next, &t.Count); err != nil {
			_ = rows.Close()
			return err
		}
		out.Transitions = append(out.Transitions, t)
		tokenIDs[t.Next] = struct{}{}
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}

	rows, err = g.db.QueryContext(ctx, `SELECT state_id, state_key FROM markov_states
WHERE state_id IN (SELECT state_id FROM markov_transitions WHERE model_id = ?)`, model.ID)
	if err != nil {
		return fmt.Errorf("could not query states for export: %w", err)
	}
	for rows.Next() {
		var (
			id  int
			key string
		)
		if err = rows.Scan(&id, &key); err != nil {
			_ = rows.Close()
			return err
		}
		out.States[key] = id
		ids, perr := parseStateKey(key)
		if perr != nil {
			_ = rows.Close()
			return perr
		}
		for _, tokenID := range ids {
			tokenIDs[tokenID] = struct{}{}
		}
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}

	cache := make(map[int]string)
	for id := range tokenIDs {
		if id == BeginTokenID || id == EndTokenID {
			continue
		}
		text, err := g.tokenText(ctx, id, cache)
		if err != nil {
			return fmt.Errorf("could not resolve token %d for export: %w", id, err)
		}
		out.Tokens[text] = id
	}

	rows, err = g.db.QueryContext(ctx, `SELECT sentence_text FROM markov_sentences WHERE model_id = ? ORDER BY sentence_id`, model.ID)
	if err != nil {
		return fmt.Errorf("could not query sentences for export: %w", err)
	}
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			_ = rows.Close()
			return err
		}
		out.Sentences = append(out.Sentences, s)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", model.Name),
		slog.Int("tokens", len(out.Tokens)),
		slog.Int("states", len(out.States)),
		slog.Int("transitions", len(out.Transitions)),
		slog.Int("sentences", len(out.Sentences)),
	)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Import reads a model written by Export and merges it into the database.
// A model with the same name receives the imported counts on top of its own,
// provided its state size matches. Token and state IDs are remapped.
func (g *Generator) Import(ctx context.Context, r io.Reader) (Model, error) {
	var in ExportedModel
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return Model{}, fmt.Errorf("failed to decode model json: %w", err)
	}
	if in.Name == "" || in.StateSize < 1 {
		return Model{}, fmt.Errorf("model file needs a name and a positive state_size")
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return Model{}, fmt.Errorf("could not begin import transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	model := Model{Name: in.Name, StateSize: in.StateSize}
	var existingSize int
	err = tx.QueryRowContext(ctx, `SELECT model_id, state_size FROM markov_models WHERE model_name = ?`, in.Name).Scan(&model.ID, &existingSize)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO markov_models (model_name, state_size) VALUES (?, ?)`, in.Name, in.StateSize)
		if err != nil {
			return Model{}, fmt.Errorf("failed to create model '%s': %w", in.Name, err)
		}
		id, _ := res.LastInsertId()
		model.ID = int(id)
	case err != nil:
		return Model{}, fmt.Errorf("failed to look up model '%s': %w", in.Name, err)
	case existingSize != in.StateSize:
		return Model{}, fmt.Errorf("model '%s' exists with state size %d, file has %d", in.Name, existingSize, in.StateSize)
	}

	upsertToken := tx.StmtContext(ctx, g.stmtUpsertToken)
	upsertState := tx.StmtContext(ctx, g.stmtUpsertState)

	tokenMap := map[int]int{BeginTokenID: BeginTokenID, EndTokenID: EndTokenID}
	for text, oldID := range in.Tokens {
		if text == BeginTokenText || text == EndTokenText {
			continue
		}
		var newID int
		if err = upsertToken.QueryRowContext(ctx, text).Scan(&newID); err != nil {
			return Model{}, fmt.Errorf("failed to store token '%s': %w", text, err)
		}
		tokenMap[oldID] = newID
	}

	stateMap := make(map[int]int, len(in.States))
	var keyBuf []byte
	for key, oldID := range in.States {
		ids, err := parseStateKey(key)
		if err != nil {
			return Model{}, err
		}
		if len(ids) != in.StateSize {
			return Model{}, fmt.Errorf("state '%s' does not match state size %d", key, in.StateSize)
		}
		for i, id := range ids {
			newID, ok := tokenMap[id]
			if !ok {
				return Model{}, fmt.Errorf("state '%s' references unknown token %d", key, id)
			}
			ids[i] = newID
		}
		keyBuf = stateKey(keyBuf, ids)
		var newID int
		if err = upsertState.QueryRowContext(ctx, string(keyBuf)).Scan(&newID); err != nil {
			return Model{}, fmt.Errorf("failed to store state '%s': %w", keyBuf, err)
		}
		stateMap[oldID] = newID
	}

	addLink, err := tx.PrepareContext(ctx, `INSERT INTO markov_transitions (model_id, state_id, next_id, count) VALUES (?, ?, ?, ?)
ON CONFLICT(model_id, state_id, next_id) DO UPDATE SET count = count + excluded.count;`)
	if err != nil {
		return Model{}, fmt.Errorf("failed to prepare transition insert: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(addLink)

	for _, t := range in.Transitions {
		if t.Count < 1 {
			return Model{}, fmt.Errorf("transition (%d -> %d) has count %d, want at least 1", t.State, t.Next, t.Count)
		}
		state, ok := stateMap[t.State]
		if !ok {
			return Model{}, fmt.Errorf("transition references unknown state %d", t.State)
		}
		next, ok := tokenMap[t.Next]
		if !ok {
			return Model{}, fmt.Errorf("transition references unknown token %d", t.Next)
		}
		if _, err = addLink.ExecContext(ctx, model.ID, state, next, t.Count); err != nil {
			return Model{}, fmt.Errorf("failed to store transition (%d -> %d): %w", state, next, err)
		}
	}

	for _, s := range in.Sentences {
		if _, err = tx.ExecContext(ctx, `INSERT INTO markov_sentences (model_id, sentence_text) VALUES (?, ?)`, model.ID, s); err != nil {
			return Model{}, fmt.Errorf("failed to store sentence: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Model{}, err
	}

	g.logger.InfoContext(ctx, "Model imported",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.ID),
		slog.Int("transitions", len(in.Transitions)),
		slog.Int("sentences", len(in.Sentences)),
	)
	return model, nil
}

func parseStateKey(key string) ([]int, error) {
	parts := strings.Split(key, " ")
	ids := make([]int, len(parts))
	for i, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed state key '%s': %w", key, err)
		}
		ids[i] = id
	}
	return ids, nil
}
