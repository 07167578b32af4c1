package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCorpus = `The best way out is always through.
The best time to plant a tree was twenty years ago.
The only way to do great work is to love what you do.
Life is what happens when you are busy making other plans.
The best is yet to come.
`

// testPNG returns a flat grey PNG of the given size.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newPhotoServer serves a 90x50 PNG at /random/90x50 and counts requests.
func newPhotoServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	data := testPNG(t, 90, 50)
	hits := new(atomic.Int32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/random/90x50" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

// testConfig returns a configuration rooted in a temporary directory, with
// deterministic sampling and a small image.
func testConfig(t *testing.T, baseURL string) (*Config, string) {
	t.Helper()
	dir := t.TempDir()

	corpus := filepath.Join(dir, "quotes.txt")
	require.NoError(t, os.WriteFile(corpus, []byte(testCorpus), 0o644))
	authors := filepath.Join(dir, "authors.txt")
	require.NoError(t, os.WriteFile(authors, []byte("Ada\nGrace Hopper Long Name\n"), 0o644))
	dataset := filepath.Join(dir, "quotes_all.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("Quote;Author;Category\n;;\n\"Stay hungry, stay foolish.\";Steve Jobs;life\n"), 0o644))

	c := DefaultConfig()
	c.Log.Format = "json"
	c.Log.Level = "debug"
	c.Database.Path = filepath.Join(dir, "data", "test.db")
	c.Markov.StateSize = 2
	c.Markov.Temperature = 0
	c.Markov.Originality = false
	c.Markov.MaxChars = 200
	c.Corpus.QuotesPath = corpus
	c.Corpus.AuthorsPath = authors
	c.Corpus.DatasetPath = dataset
	c.Background.BaseURL = baseURL
	c.Background.Width = 90
	c.Background.Height = 50
	c.Background.MaxRetries = 0
	c.Background.RateLimit = 100
	c.Render.FontSize = 10
	c.Render.Margin = 5
	c.Render.LineHeight = 12
	c.Render.AuthorMargin = 5
	c.Output.Dir = filepath.Join(dir, "output")
	return c, dir
}

// writeConfig stores c as the JSON config file in dir.
func writeConfig(t *testing.T, c *Config, dir string) string {
	t.Helper()
	data, err := json.MarshalIndent(c, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestApp(t *testing.T, c *Config) *App {
	t.Helper()
	app, err := NewApp(c, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Close()
	})
	return app
}

// runCLI executes the command line and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
