package quote

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
)

// DefaultSkipRows is the number of header rows at the top of the quote dataset.
const DefaultSkipRows = 2

// ErrEmpty is returned when picking from an empty set.
var ErrEmpty = errors.New("quote: nothing to pick from")

// Quote is one row of the real-quote dataset.
type Quote struct {
	Text     string
	Author   string
	Category string
}

// LoadQuotes reads a semicolon separated QUOTE;AUTHOR;CATEGORY file, skipping
// the first skipRows rows. Rows without quote text are ignored.
func LoadQuotes(r io.Reader, skipRows int) ([]Quote, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		quotes []Quote
		row    int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse quotes at row %d: %w", row+1, err)
		}
		row++
		if row <= skipRows {
			continue
		}

		q := Quote{Text: strings.TrimSpace(field(record, 0))}
		if q.Text == "" {
			continue
		}
		q.Author = strings.TrimSpace(field(record, 1))
		q.Category = strings.TrimSpace(field(record, 2))
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Pick returns a uniformly chosen quote. A nil rng uses the global source.
func Pick(quotes []Quote, rng *rand.Rand) (Quote, error) {
	if len(quotes) == 0 {
		return Quote{}, ErrEmpty
	}
	return quotes[intN(rng, len(quotes))], nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func intN(r *rand.Rand, n int) int {
	if r != nil {
		return r.IntN(n)
	}
	return rand.IntN(n)
}
