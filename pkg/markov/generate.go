package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
)

// generateOptions holds the sampling parameters shared by every generation call.
type generateOptions struct {
	maxTokens   int
	temperature float64
	topK        int
	rng         *rand.Rand

	// ShortSentence only.
	tries       int
	originality bool
}

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		maxTokens:   100,
		temperature: 1.0,
		tries:       10,
		originality: true,
	}
}

// GenerateOption configures sentence sampling.
type GenerateOption func(*generateOptions)

// WithMaxTokens caps the number of tokens in a generated sentence, seed
// included. A sentence cut short is still terminated with the tokenizer's EOC.
func WithMaxTokens(n int) GenerateOption {
	return func(o *generateOptions) { o.maxTokens = n }
}

// WithTemperature changes how strongly sampling favours frequent transitions.
// 1.0 samples in proportion to the trained counts, larger values flatten the
// distribution and smaller values sharpen it. Zero or less always picks the
// most frequent transition, which makes generation deterministic.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK limits each step to the k most frequent transitions. 0 disables it.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// WithRand makes sampling draw from r instead of the global source.
func WithRand(r *rand.Rand) GenerateOption {
	return func(o *generateOptions) { o.rng = r }
}

// WithTries sets how many sentences ShortSentence samples before giving up.
func WithTries(n int) GenerateOption {
	return func(o *generateOptions) { o.tries = n }
}

// WithOriginality toggles ShortSentence's rejection of sentences that copy
// long runs of words from the training text.
func WithOriginality(enabled bool) GenerateOption {
	return func(o *generateOptions) { o.originality = enabled }
}

// Generate samples one sentence from the model, starting at the begin state.
// A model with no way out of the begin state returns ErrNoSentence.
func (g *Generator) Generate(ctx context.Context, model Model, opts ...GenerateOption) (string, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}
	return g.walk(ctx, model, nil, options)
}

// GenerateFrom samples a sentence that begins with start. Every token of start
// must be in the vocabulary. An empty start behaves like Generate.
func (g *Generator) GenerateFrom(ctx context.Context, model Model, start string, opts ...GenerateOption) (string, error) {
	if strings.TrimSpace(start) == "" {
		return g.Generate(ctx, model, opts...)
	}
	seed, err := g.seed(ctx, strings.NewReader(start))
	if err != nil {
		return "", err
	}
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}
	return g.walk(ctx, model, seed, options)
}

// seed tokenizes r and resolves every token to its ID.
func (g *Generator) seed(ctx context.Context, r io.Reader) ([]int, error) {
	stream := g.tokenizer.NewStream(r)
	var ids []int
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tokenizer error while reading seed: %w", err)
		}
		if token.EOC {
			continue
		}
		id, err := g.TokenID(ctx, token.Text)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("seed token '%s' not found in model vocabulary", token.Text)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up seed token '%s': %w", token.Text, err)
		}
		ids = append(ids, id)
	}
}

// walk runs the chain from the begin state, fed with seed, until it reaches
// the end token, a dead end or the token limit.
func (g *Generator) walk(ctx context.Context, model Model, seed []int, options *generateOptions) (string, error) {
	var (
		out    strings.Builder
		last   string
		count  int
		keyBuf []byte
	)
	cache := map[int]string{BeginTokenID: BeginTokenText, EndTokenID: EndTokenText}
	state := make([]int, model.StateSize)

	emit := func(id int) error {
		text, err := g.tokenText(ctx, id, cache)
		if err != nil {
			return fmt.Errorf("failed to resolve token %d: %w", id, err)
		}
		if count > 0 {
			out.WriteString(g.tokenizer.Separator(last, text))
		}
		out.WriteString(text)
		last = text
		count++
		state = append(state[1:], id)
		return nil
	}

	for _, id := range seed {
		if count >= options.maxTokens {
			break
		}
		if err := emit(id); err != nil {
			return "", err
		}
	}

	reason := "max_tokens"
	for count < options.maxTokens {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		keyBuf = stateKey(keyBuf, state)
		choices, total, err := g.NextTokens(ctx, model, string(keyBuf))
		if err != nil {
			return "", fmt.Errorf("failed to get transitions for state '%s': %w", keyBuf, err)
		}
		if len(choices) == 0 {
			reason = "dead_end"
			break
		}

		next := pick(choices, total, options)
		if next == EndTokenID {
			reason = "end_token"
			break
		}
		if err = emit(next); err != nil {
			return "", err
		}
	}

	if count == 0 {
		return "", ErrNoSentence
	}
	out.WriteString(g.tokenizer.EOC(last))

	g.logger.DebugContext(ctx, "Sentence generated",
		slog.String("model_name", model.Name),
		slog.String("stop_reason", reason),
		slog.Int("tokens", count),
	)
	return out.String(), nil
}

// pick chooses the next token ID from choices according to the sampling options.
func pick(choices []Transition, total int, options *generateOptions) int {
	if options.topK > 0 && options.topK < len(choices) {
		choices = slices.Clone(choices)
		slices.SortStableFunc(choices, func(a, b Transition) int { return b.Count - a.Count })
		choices = choices[:options.topK]
		total = 0
		for _, c := range choices {
			total += c.Count
		}
	}

	if options.temperature <= 0 {
		best := choices[0]
		for _, c := range choices[1:] {
			if c.Count > best.Count {
				best = c
			}
		}
		return best.ID
	}

	if options.temperature == 1.0 {
		n := intN(options.rng, total)
		for _, c := range choices {
			n -= c.Count
			if n < 0 {
				return c.ID
			}
		}
		return choices[len(choices)-1].ID
	}

	// Softmax over log counts, shifted by the maximum for stability.
	weights := make([]float64, len(choices))
	peak := math.Inf(-1)
	for i, c := range choices {
		weights[i] = math.Log(float64(c.Count)) / options.temperature
		peak = math.Max(peak, weights[i])
	}
	var sum float64
	for i := range weights {
		weights[i] = math.Exp(weights[i] - peak)
		sum += weights[i]
	}
	r := float64N(options.rng) * sum
	for i, c := range choices {
		r -= weights[i]
		if r < 0 {
			return c.ID
		}
	}
	return choices[len(choices)-1].ID
}

func intN(r *rand.Rand, n int) int {
	if r != nil {
		return r.IntN(n)
	}
	return rand.IntN(n)
}

func float64N(r *rand.Rand) float64 {
	if r != nil {
		return r.Float64()
	}
	return rand.Float64()
}
