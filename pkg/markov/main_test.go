package markov

import (
	"context"
	"database/sql"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// testCorpus gives two sentences that share the word "fish", so a state size
// of 2 has exactly one branching state (the begin state).
const testCorpus = "one fish two fish. red fish blue fish."

// setupTestDB creates a new SQLite database file and a Generator for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Generator) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	g, err := NewGenerator(db, NewSentenceTokenizer())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	t.Cleanup(g.Close)

	return db, g
}

// setupTestDBWithTraining is a convenience helper that also trains a model of
// state size 2 on testCorpus.
func setupTestDBWithTraining(t *testing.T) (context.Context, *Generator, Model) {
	_, g := setupTestDB(t)
	ctx := context.Background()

	model, err := g.CreateModel(ctx, "test_model", 2)
	if err != nil {
		t.Fatalf("setup: CreateModel() failed: %v", err)
	}
	if err := g.Train(ctx, model, strings.NewReader(testCorpus)); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	return ctx, g, model
}

// setupTestDBBench creates a database for benchmarking.
func setupTestDBBench(b *testing.B) (*sql.DB, *Generator) {
	dbFile := filepath.Join(b.TempDir(), "bench.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=synchronous(OFF)&_pragma=cache_size(-16000)")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}

	g, err := NewGenerator(db, NewSentenceTokenizer())
	if err != nil {
		b.Fatalf("NewGenerator() error = %v", err)
	}
	b.Cleanup(g.Close)

	return db, g
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus builds a reproducible corpus of short quote-like
// sentences from a small vocabulary.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		words := strings.Fields(`life is what happens when you are busy making other plans
the only way to do great work love it never stop dreaming success failure courage
time money people world heart mind dream light dark always never nothing everything`)
		ends := []string{".", "!", "?"}
		r := rand.New(rand.NewPCG(1, 2))

		var sb strings.Builder
		for i := 0; i < 20000; i++ {
			n := 4 + r.IntN(12)
			for j := 0; j < n; j++ {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(words[r.IntN(len(words))])
			}
			sb.WriteString(ends[r.IntN(len(ends))])
			sb.WriteByte('\n')
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
