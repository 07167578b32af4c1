package quote

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultCorpusLimit is the number of bytes of a corpus file read for training.
const DefaultCorpusLimit = 1_000_000

// Sentences reads at most limit bytes from r (0 reads everything) and splits
// the text into sentences. A sentence ends at '.', '!' or '?' followed by
// whitespace, or at the end of a line. Sentences of one character or less are
// dropped, and every sentence is given terminating punctuation.
func Sentences(r io.Reader, limit int64) ([]string, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	// The byte limit may cut a multi-byte character in half.
	text := strings.ToValidUTF8(string(raw), "")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, s := range splitLine(line) {
			s = strings.TrimSpace(s)
			if utf8.RuneCountInString(s) <= 1 {
				continue
			}
			out = append(out, terminate(s))
		}
	}
	return out, nil
}

// Corpus returns the sentences of r one per line, ready for training.
func Corpus(r io.Reader, limit int64) (io.Reader, error) {
	sentences, err := Sentences(r, limit)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(strings.Join(sentences, "\n")), nil
}

func splitLine(line string) []string {
	runes := []rune(line)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminal(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j == len(runes) || unicode.IsSpace(runes[j]) {
			out = append(out, string(runes[start:j]))
			start = j
		}
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func terminate(s string) string {
	trimmed := strings.TrimRightFunc(s, isCloser)
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if isTerminal(last) {
		return s
	}
	return s + "."
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}
