package markov

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrNoSentence is returned when the model yields no sentence at all (an
// untrained model) and by ShortSentence when no sampled sentence met its
// constraints.
var ErrNoSentence = errors.New("markov: no acceptable sentence could be generated")

const (
	// overlapRatio is the share of a sentence's words that may be copied
	// verbatim from a training sentence.
	overlapRatio = 0.7
	// overlapMax caps the copied run length for long sentences.
	overlapMax = 15
)

// ShortSentence samples sentences until one is at most maxChars characters
// long and, unless WithOriginality(false) is given, does not repeat a long run
// of words from the training text. It gives up with ErrNoSentence after the
// configured number of tries (10 by default).
func (g *Generator) ShortSentence(ctx context.Context, model Model, maxChars int, opts ...GenerateOption) (string, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.tries < 1 {
		options.tries = 1
	}

	for attempt := 1; attempt <= options.tries; attempt++ {
		sentence, err := g.walk(ctx, model, nil, options)
		if err != nil {
			return "", err
		}
		if utf8.RuneCountInString(sentence) > maxChars {
			g.logger.DebugContext(ctx, "Sentence rejected as too long",
				slog.Int("attempt", attempt),
				slog.Int("chars", utf8.RuneCountInString(sentence)),
			)
			continue
		}
		if options.originality {
			original, err := g.IsOriginal(ctx, model, sentence)
			if err != nil {
				return "", err
			}
			if !original {
				g.logger.DebugContext(ctx, "Sentence rejected as a copy of the corpus",
					slog.Int("attempt", attempt),
				)
				continue
			}
		}
		return sentence, nil
	}
	return "", ErrNoSentence
}

// IsOriginal reports whether sentence avoids copying its training data: no run
// of min(15, round(0.7 * words)) consecutive words may appear in any sentence
// the model was trained on.
func (g *Generator) IsOriginal(ctx context.Context, model Model, sentence string) (bool, error) {
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return false, nil
	}
	run := min(overlapMax, int(math.Round(overlapRatio*float64(len(words)))))
	run = max(run, 1)
	grams := len(words) - run + 1

	for i := 0; i < grams; i++ {
		gram := strings.Join(words[i:i+run], " ")
		var hit bool
		if err := g.stmtSentenceHit.QueryRowContext(ctx, model.ID, gram).Scan(&hit); err != nil {
			return false, fmt.Errorf("failed to check sentence overlap: %w", err)
		}
		if hit {
			return false, nil
		}
	}
	return true, nil
}
