package markov

import (
	"bufio"
	"io"
	"regexp"
)

const (
	defaultWordPattern    = `[\p{L}\p{N}_'’]+(?:-[\p{L}\p{N}_'’]+)*|[.,!?;:]`
	defaultEOCPattern     = `^[.!?]$`
	defaultNoSpacePattern = `^[.,!?;:]`
	maxLineBytes          = 1 << 20
)

// SentenceTokenizer is the default Tokenizer. It splits text into words
// (including contractions and hyphenated words) and punctuation, and treats
// '.', '!' and '?' as the end of a sentence.
type SentenceTokenizer struct {
	separator string
	eoc       string
	words     *regexp.Regexp
	eocRe     *regexp.Regexp
	noSpace   *regexp.Regexp
}

// TokenizerOption configures a SentenceTokenizer.
type TokenizerOption func(*SentenceTokenizer)

// WithSeparator sets the text placed between rendered tokens. Default: " ".
func WithSeparator(sep string) TokenizerOption {
	return func(t *SentenceTokenizer) { t.separator = sep }
}

// WithEOC sets the text appended to a sentence that ends without punctuation.
// Default: ".".
func WithEOC(eoc string) TokenizerOption {
	return func(t *SentenceTokenizer) { t.eoc = eoc }
}

// WithWordPattern replaces the regular expression used to find tokens.
func WithWordPattern(pattern string) TokenizerOption {
	return func(t *SentenceTokenizer) { t.words = regexp.MustCompile(pattern) }
}

// WithEOCPattern replaces the regular expression that marks sentence-ending tokens.
func WithEOCPattern(pattern string) TokenizerOption {
	return func(t *SentenceTokenizer) { t.eocRe = regexp.MustCompile(pattern) }
}

// NewSentenceTokenizer returns a tokenizer with the default patterns, adjusted
// by opts.
func NewSentenceTokenizer(opts ...TokenizerOption) *SentenceTokenizer {
	t := &SentenceTokenizer{
		separator: " ",
		eoc:       ".",
		words:     regexp.MustCompile(defaultWordPattern),
		eocRe:     regexp.MustCompile(defaultEOCPattern),
		noSpace:   regexp.MustCompile(defaultNoSpacePattern),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Separator returns no separator before punctuation and the configured
// separator otherwise.
func (t *SentenceTokenizer) Separator(_, next string) string {
	if t.noSpace.MatchString(next) {
		return ""
	}
	return t.separator
}

// EOC returns the configured terminator unless last is already punctuation.
func (t *SentenceTokenizer) EOC(last string) string {
	if last == "" || t.noSpace.MatchString(last) {
		return ""
	}
	return t.eoc
}

// NewStream returns a line-oriented StreamTokenizer over r.
func (t *SentenceTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &sentenceStream{scanner: scanner, words: t.words, eoc: t.eocRe}
}

type sentenceStream struct {
	scanner *bufio.Scanner
	pending []string
	words   *regexp.Regexp
	eoc     *regexp.Regexp
}

func (s *sentenceStream) Next() (*Token, error) {
	for len(s.pending) == 0 {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		s.pending = s.words.FindAllString(s.scanner.Text(), -1)
	}

	word := s.pending[0]
	s.pending = s.pending[1:]
	return &Token{Text: word, EOC: s.eoc.MatchString(word)}, nil
}

// Render joins token texts the way generated sentences are rendered.
func Render(t Tokenizer, words []string) string {
	var out []byte
	for i, w := range words {
		if i > 0 {
			out = append(out, t.Separator(words[i-1], w)...)
		}
		out = append(out, w...)
	}
	return string(out)
}
