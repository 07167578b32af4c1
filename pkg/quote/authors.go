package quote

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultAuthor signs a quote when no author list is available.
	DefaultAuthor = "Michael Scott"
	// DefaultAuthorMaxLen keeps names short enough for the image corner.
	DefaultAuthorMaxLen = 12
)

// LoadAuthors reads one name per line and keeps the names shorter than maxLen
// characters. A maxLen of 0 or less keeps every name.
func LoadAuthors(r io.Reader, maxLen int) ([]string, error) {
	var authors []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		if maxLen > 0 && utf8.RuneCountInString(name) >= maxLen {
			continue
		}
		authors = append(authors, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read authors: %w", err)
	}
	return authors, nil
}

// PickAuthor returns a random name from authors, or DefaultAuthor if there are none.
func PickAuthor(authors []string, rng *rand.Rand) string {
	if len(authors) == 0 {
		return DefaultAuthor
	}
	return authors[intN(rng, len(authors))]
}
