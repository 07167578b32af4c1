package markov

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// DefaultStateSize is the number of preceding tokens a model conditions on
// unless told otherwise.
const DefaultStateSize = 3

// Model identifies a trained chain. StateSize is the number of preceding tokens
// used to choose the next one.
type Model struct {
	ID        int
	Name      string
	StateSize int
}

// CreateModel inserts a new, empty model and returns it with its ID filled in.
func (g *Generator) CreateModel(ctx context.Context, name string, stateSize int) (Model, error) {
	if name == "" {
		return Model{}, fmt.Errorf("model name is required")
	}
	if stateSize < 1 {
		return Model{}, fmt.Errorf("state size must be positive, got %d", stateSize)
	}
	res, err := g.stmtCreateModel.ExecContext(ctx, name, stateSize)
	if err != nil {
		return Model{}, fmt.Errorf("could not create model '%s': %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Model{}, err
	}
	g.logger.InfoContext(ctx, "Model created",
		slog.String("model_name", name),
		slog.Int("state_size", stateSize),
	)
	return Model{ID: int(id), Name: name, StateSize: stateSize}, nil
}

// Model looks a model up by name. It returns sql.ErrNoRows if there is none.
func (g *Generator) Model(ctx context.Context, name string) (Model, error) {
	m := Model{Name: name}
	if err := g.stmtModelByName.QueryRowContext(ctx, name).Scan(&m.ID, &m.StateSize); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Models lists every model in the database, ordered by ID.
func (g *Generator) Models(ctx context.Context) ([]Model, error) {
	rows, err := g.stmtModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var models []Model
	for rows.Next() {
		var m Model
		if err = rows.Scan(&m.ID, &m.Name, &m.StateSize); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// DeleteModel removes a model with its transitions and stored sentences.
// Shared tokens and states are left in place.
func (g *Generator) DeleteModel(ctx context.Context, model Model) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, table := range []string{"markov_transitions", "markov_sentences", "markov_models"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE model_id = ?", model.ID); err != nil {
			return fmt.Errorf("failed to delete from %s for model %d: %w", table, model.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "Model deleted",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.ID),
	)
	return nil
}
