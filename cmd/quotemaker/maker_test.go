package main

import (
	"context"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CTAG07/quotemaker/pkg/markov"
	"github.com/CTAG07/quotemaker/pkg/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake_WritesImage(t *testing.T) {
	srv, hits := newPhotoServer(t)
	config, _ := testConfig(t, srv.URL)
	app := newTestApp(t, config)
	app.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := app.Make(context.Background(), MakeOptions{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(config.Output.Dir, "1700000000.jpeg"), res.Path)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, "Ada", res.Author)
	assert.Equal(t, srv.URL+"/random/90x50", res.Source)
	assert.EqualValues(t, 1, hits.Load())

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	img, format, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 90, 50), img.Bounds())
}

func TestMake_SameSecondGetsSuffix(t *testing.T) {
	srv, _ := newPhotoServer(t)
	config, _ := testConfig(t, srv.URL)
	app := newTestApp(t, config)
	app.now = func() time.Time { return time.Unix(42, 0) }

	first, err := app.Make(context.Background(), MakeOptions{})
	require.NoError(t, err)
	second, err := app.Make(context.Background(), MakeOptions{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(config.Output.Dir, "42.jpeg"), first.Path)
	assert.Equal(t, filepath.Join(config.Output.Dir, "42-1.jpeg"), second.Path)
	assert.FileExists(t, first.Path)
	assert.FileExists(t, second.Path)
}

func TestMake_RealQuote(t *testing.T) {
	srv, _ := newPhotoServer(t)
	config, _ := testConfig(t, srv.URL)
	app := newTestApp(t, config)

	res, err := app.Make(context.Background(), MakeOptions{Real: true, AuthorMode: "quote"})
	require.NoError(t, err)
	assert.Equal(t, "Stay hungry, stay foolish.", res.Text)
	assert.Equal(t, "Steve Jobs", res.Author)

	// A real quote never trains the model.
	_, err = app.mg.Model(context.Background(), config.Markov.ModelName)
	assert.Error(t, err)
}

func TestMake_Overrides(t *testing.T) {
	srv, _ := newPhotoServer(t)
	config, dir := testConfig(t, srv.URL)
	app := newTestApp(t, config)

	out := filepath.Join(dir, "elsewhere")
	res, err := app.Make(context.Background(), MakeOptions{AuthorMode: "none", OutputDir: out})
	require.NoError(t, err)
	assert.Empty(t, res.Author)
	assert.Equal(t, out, filepath.Dir(res.Path))
}

func TestMake_Errors(t *testing.T) {
	t.Run("invalid author mode", func(t *testing.T) {
		config, _ := testConfig(t, "http://127.0.0.1:1")
		app := newTestApp(t, config)
		_, err := app.Make(context.Background(), MakeOptions{AuthorMode: "sometimes"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be one of")
	})

	t.Run("background not found", func(t *testing.T) {
		srv, _ := newPhotoServer(t)
		config, _ := testConfig(t, srv.URL)
		config.Background.Width = 91
		app := newTestApp(t, config)
		_, err := app.Make(context.Background(), MakeOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch background")
		assert.NoDirExists(t, config.Output.Dir)
	})

	t.Run("missing font", func(t *testing.T) {
		srv, _ := newPhotoServer(t)
		config, dir := testConfig(t, srv.URL)
		config.Render.FontPath = filepath.Join(dir, "missing.ttf")
		app := newTestApp(t, config)
		_, err := app.Make(context.Background(), MakeOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "font file not found")
	})

	t.Run("missing corpus", func(t *testing.T) {
		srv, _ := newPhotoServer(t)
		config, dir := testConfig(t, srv.URL)
		config.Corpus.QuotesPath = filepath.Join(dir, "nope.txt")
		app := newTestApp(t, config)
		_, err := app.Make(context.Background(), MakeOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open corpus")
	})
}

func TestAuthor(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)

	assert.Equal(t, "", app.author("none", "Steve Jobs"))
	assert.Equal(t, quote.DefaultAuthor, app.author("default", "Steve Jobs"))
	assert.Equal(t, "Steve Jobs", app.author("quote", "Steve Jobs"))
	assert.Equal(t, "Ada", app.author("quote", ""))
	assert.Equal(t, "Ada", app.author("random", "Steve Jobs"))

	config.Corpus.AuthorsPath = filepath.Join(dir, "missing.txt")
	assert.Equal(t, quote.DefaultAuthor, app.author("random", ""))

	config.Corpus.AuthorsPath = ""
	assert.Equal(t, quote.DefaultAuthor, app.author("random", ""))
}

func TestTrain(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)
	ctx := context.Background()

	model, err := app.Train(ctx, config.Corpus.QuotesPath, false)
	require.NoError(t, err)
	assert.Equal(t, config.Markov.ModelName, model.Name)
	assert.Equal(t, 2, model.StateSize)

	stats, err := app.mg.Stats(ctx)
	require.NoError(t, err)
	once := stats.PerModel[model.ID]
	assert.Equal(t, 5, once.Sentences)

	// Training again adds to the model.
	_, err = app.Train(ctx, config.Corpus.QuotesPath, false)
	require.NoError(t, err)
	stats, err = app.mg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*once.TotalCount, stats.PerModel[model.ID].TotalCount)

	// A reset starts the model over.
	extra := filepath.Join(dir, "extra.txt")
	require.NoError(t, os.WriteFile(extra, []byte("Keep going.\n"), 0o644))
	reset, err := app.Train(ctx, extra, true)
	require.NoError(t, err)
	stats, err = app.mg.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Models, 1)
	assert.Equal(t, 1, stats.PerModel[reset.ID].Sentences)
}

func TestSentence(t *testing.T) {
	config, _ := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)
	ctx := context.Background()

	// The first call trains the missing model.
	s, err := app.Sentence(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s)
	assert.LessOrEqual(t, len([]rune(s)), config.Markov.MaxChars)

	again, err := app.Sentence(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, s, again, "temperature 0 is deterministic")

	started, err := app.Sentence(ctx, "Life is")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(started, "Life is"), started)

	_, err = app.Sentence(ctx, "Zebras")
	assert.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, ensureDir(filepath.Join(dir, "a", "db.sqlite")+"?_pragma=busy_timeout(5000)"))
	assert.DirExists(t, filepath.Join(dir, "a"))

	require.NoError(t, ensureDir("file:"+filepath.Join(dir, "b", "db.sqlite")))
	assert.DirExists(t, filepath.Join(dir, "b"))

	require.NoError(t, ensureDir(":memory:"))
	require.NoError(t, ensureDir("local.db"))
}

func TestSentence_RecoversAfterMissingCorpus(t *testing.T) {
	config, _ := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)
	ctx := context.Background()

	data, err := os.ReadFile(config.Corpus.QuotesPath)
	require.NoError(t, err)
	require.NoError(t, os.Remove(config.Corpus.QuotesPath))

	_, err = app.Sentence(ctx, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open corpus")
	_, err = app.mg.Model(ctx, config.Markov.ModelName)
	assert.Error(t, err, "a failed first training must not leave a model behind")

	require.NoError(t, os.WriteFile(config.Corpus.QuotesPath, data, 0o644))
	s, err := app.Sentence(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(s))
}

func TestTrain_ResetKeepsModelWhenCorpusMissing(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)
	ctx := context.Background()

	model, err := app.Train(ctx, config.Corpus.QuotesPath, false)
	require.NoError(t, err)

	_, err = app.Train(ctx, filepath.Join(dir, "missing.txt"), true)
	require.Error(t, err)

	kept, err := app.mg.Model(ctx, config.Markov.ModelName)
	require.NoError(t, err)
	assert.Equal(t, model.ID, kept.ID)
	s, err := app.Sentence(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s)
}

func TestTrain_EmptyCorpus(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)
	ctx := context.Background()

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n \n"), 0o644))

	_, err := app.Train(ctx, empty, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no sentences")
	_, err = app.mg.Model(ctx, config.Markov.ModelName)
	assert.Error(t, err)
}

func TestSentence_UntrainedModel(t *testing.T) {
	config, _ := testConfig(t, "http://127.0.0.1:1")
	app := newTestApp(t, config)
	ctx := context.Background()

	// A model that exists but has no transitions.
	_, err := app.mg.CreateModel(ctx, config.Markov.ModelName, config.Markov.StateSize)
	require.NoError(t, err)

	_, err = app.Sentence(ctx, "")
	require.ErrorIs(t, err, markov.ErrNoSentence)
	assert.Contains(t, err.Error(), "train --reset")
}
