package markov

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

const (
	// BeginTokenID is the reserved ID that pads the state before a sentence starts.
	BeginTokenID = 0
	// EndTokenID is the reserved ID that follows the last token of a sentence.
	EndTokenID = 1
	// BeginTokenText is the stored text of the begin token.
	BeginTokenText = "___BEGIN__"
	// EndTokenText is the stored text of the end token.
	EndTokenText = "___END__"
)

// SetupSchema creates the tables used by the Generator and inserts the reserved
// tokens. It is safe to call on a database that is already set up.
func SetupSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS markov_tokens (
    token_id   INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE IF NOT EXISTS markov_states (
    state_id  INTEGER PRIMARY KEY,
    state_key TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE IF NOT EXISTS markov_models (
    model_id   INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    state_size INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS markov_transitions (
    model_id INTEGER NOT NULL,
    state_id INTEGER NOT NULL,
    next_id  INTEGER NOT NULL,
    count    INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, state_id, next_id)
);`,
		`CREATE TABLE IF NOT EXISTS markov_sentences (
    sentence_id   INTEGER PRIMARY KEY,
    model_id      INTEGER NOT NULL,
    sentence_text TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS markov_sentences_model ON markov_sentences (model_id);`,
		fmt.Sprintf(`INSERT OR IGNORE INTO markov_tokens (token_id, token_text) VALUES (%d, '%s');`, BeginTokenID, BeginTokenText),
		fmt.Sprintf(`INSERT OR IGNORE INTO markov_tokens (token_id, token_text) VALUES (%d, '%s');`, EndTokenID, EndTokenText),
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin schema transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range schema {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit schema: %w", err)
	}
	return nil
}

// Generator trains and samples Markov models stored in a SQLite database.
// It keeps a set of prepared statements for the hot paths, so it should be
// closed once it is no longer needed.
type Generator struct {
	db        *sql.DB
	tokenizer Tokenizer
	logger    *slog.Logger

	stmtModelByName    *sql.Stmt
	stmtModels         *sql.Stmt
	stmtCreateModel    *sql.Stmt
	stmtTokenID        *sql.Stmt
	stmtTokenText      *sql.Stmt
	stmtStateID        *sql.Stmt
	stmtTransitions    *sql.Stmt
	stmtUpsertToken    *sql.Stmt
	stmtUpsertState    *sql.Stmt
	stmtSentenceHit    *sql.Stmt
	stmtPrune          *sql.Stmt
	stmtCountTokens    *sql.Stmt
	stmtCountStates    *sql.Stmt
	stmtCountLinks     *sql.Stmt
	stmtSumCounts      *sql.Stmt
	stmtCountStarts    *sql.Stmt
	stmtCountSentences *sql.Stmt
}

// NewGenerator prepares every statement the Generator needs. The schema must
// already exist (see SetupSchema).
func NewGenerator(db *sql.DB, tokenizer Tokenizer) (*Generator, error) {
	g := &Generator{
		db:        db,
		tokenizer: tokenizer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	prepared := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&g.stmtModelByName, `SELECT model_id, state_size FROM markov_models WHERE model_name = ?;`},
		{&g.stmtModels, `SELECT model_id, model_name, state_size FROM markov_models ORDER BY model_id;`},
		{&g.stmtCreateModel, `INSERT INTO markov_models (model_name, state_size) VALUES (?, ?);`},
		{&g.stmtTokenID, `SELECT token_id FROM markov_tokens WHERE token_text = ?;`},
		{&g.stmtTokenText, `SELECT token_text FROM markov_tokens WHERE token_id = ?;`},
		{&g.stmtStateID, `SELECT state_id FROM markov_states WHERE state_key = ?;`},
		{&g.stmtTransitions, `SELECT next_id, count FROM markov_transitions WHERE model_id = ? AND state_id = ? ORDER BY next_id;`},
		{&g.stmtUpsertToken, `INSERT INTO markov_tokens (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text = excluded.token_text RETURNING token_id;`},
		{&g.stmtUpsertState, `INSERT INTO markov_states (state_key) VALUES (?) ON CONFLICT(state_key) DO UPDATE SET state_key = excluded.state_key RETURNING state_id;`},
		{&g.stmtSentenceHit, `SELECT EXISTS(SELECT 1 FROM markov_sentences WHERE model_id = ? AND instr(sentence_text, ?) > 0);`},
		{&g.stmtPrune, `DELETE FROM markov_transitions WHERE model_id = ? AND count <= ?;`},
		{&g.stmtCountTokens, `SELECT COUNT(*) FROM markov_tokens;`},
		{&g.stmtCountStates, `SELECT COUNT(*) FROM markov_states;`},
		{&g.stmtCountLinks, `SELECT COUNT(*) FROM markov_transitions WHERE model_id = ?;`},
		{&g.stmtSumCounts, `SELECT COALESCE(SUM(count), 0) FROM markov_transitions WHERE model_id = ?;`},
		{&g.stmtCountStarts, `SELECT COUNT(*) FROM markov_transitions WHERE model_id = ? AND state_id = ?;`},
		{&g.stmtCountSentences, `SELECT COUNT(*) FROM markov_sentences WHERE model_id = ?;`},
	}

	for _, p := range prepared {
		stmt, err := db.Prepare(p.query)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*p.dst = stmt
	}

	return g, nil
}

// Close releases the prepared statements. The database itself is left open.
func (g *Generator) Close() {
	for _, stmt := range []*sql.Stmt{
		g.stmtModelByName, g.stmtModels, g.stmtCreateModel,
		g.stmtTokenID, g.stmtTokenText, g.stmtStateID, g.stmtTransitions,
		g.stmtUpsertToken, g.stmtUpsertState, g.stmtSentenceHit, g.stmtPrune,
		g.stmtCountTokens, g.stmtCountStates, g.stmtCountLinks, g.stmtSumCounts,
		g.stmtCountStarts, g.stmtCountSentences,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger replaces the Generator's logger. Logs are discarded by default.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Tokenizer returns the tokenizer the Generator was built with.
func (g *Generator) Tokenizer() Tokenizer {
	return g.tokenizer
}
