package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CTAG07/quotemaker/pkg/background"
	"github.com/CTAG07/quotemaker/pkg/quote"
	"github.com/CTAG07/quotemaker/pkg/render"
	"github.com/natefinch/atomic"
	"golang.org/x/image/font"
)

// MakeOptions are the per-run overrides of the make command.
type MakeOptions struct {
	// Real uses a quote from the dataset instead of a generated one.
	Real       bool
	AuthorMode string `validate:"omitempty,oneof=random default none quote"`
	Query      string
	OutputDir  string
}

// MakeResult describes one written image.
type MakeResult struct {
	Path   string
	Text   string
	Author string
	Source string
}

// Make produces one quote image and writes it to the output directory.
func (a *App) Make(ctx context.Context, opts MakeOptions) (*MakeResult, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, formatValidationErrors(err)
	}
	mode := opts.AuthorMode
	if mode == "" {
		mode = a.config.Render.AuthorMode
	}
	query := opts.Query
	if query == "" {
		query = a.config.Background.Query
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = a.config.Output.Dir
	}

	var (
		text      string
		attribute string
		err       error
	)
	if opts.Real {
		var q quote.Quote
		if q, err = a.realQuote(); err != nil {
			return nil, err
		}
		text, attribute = q.Text, q.Author
	} else {
		text, err = a.Sentence(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to generate quote: %w", err)
		}
	}
	author := a.author(mode, attribute)
	lines := quote.Wrap(text, a.config.Render.LineWidth)

	bg := a.config.Background
	photo, err := a.source.Fetch(ctx, background.Request{Width: bg.Width, Height: bg.Height, Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch background: %w", err)
	}

	face, err := a.face()
	if err != nil {
		return nil, err
	}
	defer func(face font.Face) {
		_ = face.Close()
	}(face)

	style, err := a.style()
	if err != nil {
		return nil, err
	}
	img, err := render.Compose(photo.Data, face, lines, author, style)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err = render.EncodeJPEG(&buf, img, style.Quality); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	path, err := a.outputPath(dir)
	if err != nil {
		return nil, err
	}
	if err = atomic.WriteFile(path, &buf); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	a.logger.Info("Quote image created",
		slog.String("path", path),
		slog.String("text", text),
		slog.String("author", author),
		slog.String("background", photo.URL),
	)
	return &MakeResult{Path: path, Text: text, Author: author, Source: photo.URL}, nil
}

func (a *App) realQuote() (quote.Quote, error) {
	path := a.config.Corpus.DatasetPath
	file, err := os.Open(path)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("failed to open quote dataset: %w", err)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	quotes, err := quote.LoadQuotes(file, a.config.Corpus.SkipRows)
	if err != nil {
		return quote.Quote{}, err
	}
	return quote.Pick(quotes, a.rng)
}

// author picks the signature for the bottom-right corner. attribute is the
// dataset's author for a real quote and empty otherwise.
func (a *App) author(mode, attribute string) string {
	switch mode {
	case "none":
		return ""
	case "default":
		return quote.DefaultAuthor
	case "quote":
		if attribute != "" {
			return attribute
		}
	}

	path := a.config.Corpus.AuthorsPath
	if path == "" {
		return quote.DefaultAuthor
	}
	file, err := os.Open(path)
	if err != nil {
		a.logger.Warn("Could not open author list, using the default author",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return quote.DefaultAuthor
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	authors, err := quote.LoadAuthors(file, a.config.Corpus.AuthorMaxLen)
	if err != nil {
		a.logger.Warn("Could not read author list, using the default author", slog.String("error", err.Error()))
		return quote.DefaultAuthor
	}
	return quote.PickAuthor(authors, a.rng)
}

func (a *App) face() (font.Face, error) {
	cfg := a.config.Render
	if cfg.FontPath == "" {
		return render.DefaultFace(cfg.FontSize)
	}
	face, err := render.LoadFace(cfg.FontPath, cfg.FontSize)
	if errors.Is(err, render.ErrFontNotFound) {
		return nil, fmt.Errorf("%w (set render.font_path to a .ttf file, or leave it empty for the built-in font)", err)
	}
	return face, err
}

func (a *App) style() (render.Style, error) {
	cfg := a.config.Render
	fg, err := render.ParseColor(cfg.Color)
	if err != nil {
		return render.Style{}, fmt.Errorf("invalid render.color: %w", err)
	}
	shadow, err := render.ParseColor(cfg.Shadow)
	if err != nil {
		return render.Style{}, fmt.Errorf("invalid render.shadow: %w", err)
	}
	return render.Style{
		Color:        fg,
		Shadow:       shadow,
		ShadowOffset: cfg.ShadowOffset,
		Margin:       cfg.Margin,
		LineHeight:   cfg.LineHeight,
		AuthorMargin: cfg.AuthorMargin,
		Width:        a.config.Background.Width,
		Height:       a.config.Background.Height,
		Quality:      cfg.Quality,
	}, nil
}

// outputPath names the image after the current Unix time. A second image in
// the same second gets a numeric suffix instead of replacing the first.
func (a *App) outputPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	stamp := a.now().Unix()
	path := filepath.Join(dir, fmt.Sprintf("%d.jpeg", stamp))
	for n := 1; ; n++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%d-%d.jpeg", stamp, n))
	}
}
