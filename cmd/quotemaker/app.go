package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CTAG07/quotemaker/pkg/background"
	"github.com/CTAG07/quotemaker/pkg/markov"
	"github.com/CTAG07/quotemaker/pkg/quote"
	"golang.org/x/time/rate"
)

// App holds everything a command needs once configuration is loaded.
type App struct {
	config *Config
	logger *slog.Logger
	db     *sql.DB
	mg     *markov.Generator
	source background.Source
	out    io.Writer

	// rng is nil in production, which means the global source.
	rng *rand.Rand
	now func() time.Time

	closers []io.Closer
}

// NewApp opens the database, prepares the generator and selects the
// background source. Output meant for the user (image paths, sentences) goes
// to out; logs go through logger.
func NewApp(config *Config, logger *slog.Logger, out io.Writer) (*App, error) {
	if err := ensureDir(config.Database.Path); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := initDB(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}

	mg, err := markov.NewGenerator(db, markov.NewSentenceTokenizer())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating markov generator: %w", err)
	}
	mg.SetLogger(logger.With(slog.String("component", "markov")))

	a := &App{
		config: config,
		logger: logger,
		db:     db,
		mg:     mg,
		out:    out,
		now:    time.Now,
	}
	a.source = a.newSource()
	return a, nil
}

func (a *App) newSource() background.Source {
	cfg := a.config.Background
	if cfg.Source == "dir" {
		return background.NewDirSource(cfg.Dir, a.rng)
	}
	return background.NewClient(
		background.WithBaseURL(cfg.BaseURL),
		background.WithAPIURL(cfg.APIURL),
		background.WithAccessKey(cfg.AccessKey),
		background.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}),
		background.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)),
		background.WithRetry(cfg.MaxRetries, time.Duration(cfg.RetryDelayMs)*time.Millisecond),
		background.WithLogger(a.logger.With(slog.String("component", "background"))),
	)
}

// Close releases the generator, the database and any extra closers.
func (a *App) Close() error {
	a.mg.Close()
	err := a.db.Close()
	for _, c := range a.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Model returns the configured model, training it from the corpus first if it
// doesn't exist yet.
func (a *App) Model(ctx context.Context) (markov.Model, error) {
	name := a.config.Markov.ModelName
	model, err := a.mg.Model(ctx, name)
	if err == nil {
		return model, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return markov.Model{}, fmt.Errorf("failed to look up model '%s': %w", name, err)
	}
	a.logger.Warn("Could not find model, training it now (this might take a few minutes)",
		slog.String("model_name", name),
		slog.String("corpus", a.config.Corpus.QuotesPath),
	)
	return a.Train(ctx, a.config.Corpus.QuotesPath, false)
}

// Train feeds the corpus at path into the configured model, creating it if
// needed. With reset the existing model is deleted first; otherwise the new
// counts are added to the old ones. The corpus is read before the database is
// touched, and a model created here is removed again if training fails.
func (a *App) Train(ctx context.Context, path string, reset bool) (markov.Model, error) {
	name := a.config.Markov.ModelName

	file, err := os.Open(path)
	if err != nil {
		return markov.Model{}, fmt.Errorf("failed to open corpus: %w", err)
	}
	sentences, err := quote.Sentences(file, a.config.Corpus.Limit)
	_ = file.Close()
	if err != nil {
		return markov.Model{}, fmt.Errorf("failed to read corpus: %w", err)
	}
	if len(sentences) == 0 {
		return markov.Model{}, fmt.Errorf("corpus %s has no sentences", path)
	}

	var created bool
	model, err := a.mg.Model(ctx, name)
	switch {
	case err == nil && reset:
		if err = a.mg.DeleteModel(ctx, model); err != nil {
			return markov.Model{}, err
		}
		fallthrough
	case errors.Is(err, sql.ErrNoRows):
		model, err = a.mg.CreateModel(ctx, name, a.config.Markov.StateSize)
		if err != nil {
			return markov.Model{}, err
		}
		created = true
	case err != nil:
		return markov.Model{}, fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	start := time.Now()
	if err = a.mg.Train(ctx, model, strings.NewReader(strings.Join(sentences, "\n"))); err != nil {
		if created {
			// context.WithoutCancel so an interrupted run still cleans up.
			if derr := a.mg.DeleteModel(context.WithoutCancel(ctx), model); derr != nil {
				a.logger.Error("Failed to remove untrained model",
					slog.String("model_name", name),
					slog.String("error", derr.Error()),
				)
			}
		}
		return markov.Model{}, fmt.Errorf("failed to train model '%s': %w", name, err)
	}
	a.logger.Info("Model trained",
		slog.String("model_name", name),
		slog.String("corpus", path),
		slog.Int("sentences", len(sentences)),
		slog.Duration("duration", time.Since(start)),
	)
	return model, nil
}

func (a *App) generateOptions() []markov.GenerateOption {
	cfg := a.config.Markov
	opts := []markov.GenerateOption{
		markov.WithMaxTokens(cfg.MaxTokens),
		markov.WithTemperature(cfg.Temperature),
		markov.WithTopK(cfg.TopK),
		markov.WithTries(cfg.Tries),
		markov.WithOriginality(cfg.Originality),
	}
	if a.rng != nil {
		opts = append(opts, markov.WithRand(a.rng))
	}
	return opts
}

// Sentence samples one sentence. Without a start it is a short sentence of at
// most markov.max_chars characters; with one, the sentence begins with start
// and is not length-checked.
func (a *App) Sentence(ctx context.Context, start string) (string, error) {
	model, err := a.Model(ctx)
	if err != nil {
		return "", err
	}
	var s string
	if strings.TrimSpace(start) != "" {
		s, err = a.mg.GenerateFrom(ctx, model, start, a.generateOptions()...)
	} else {
		s, err = a.mg.ShortSentence(ctx, model, a.config.Markov.MaxChars, a.generateOptions()...)
	}
	if errors.Is(err, markov.ErrNoSentence) {
		return "", fmt.Errorf("model '%s': %w (retrain it with 'quotemaker train --reset')", model.Name, err)
	}
	return s, err
}

// ensureDir creates the directory of a file path or SQLite DSN.
func ensureDir(dsn string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
