package quote

import (
	"strings"
	"unicode/utf8"
)

// DefaultLineWidth is the wrap width used for quote images.
const DefaultLineWidth = 35

// Wrap breaks text into lines on whitespace. A word joins the current line
// only while the result stays under width characters; a word that is too
// long on its own gets a line to itself. A width of 0 or less disables
// wrapping.
func Wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines []string
		line  strings.Builder
		n     int
	)
	for _, word := range words {
		w := utf8.RuneCountInString(word)
		if n > 0 && n+1+w < width {
			line.WriteByte(' ')
			line.WriteString(word)
			n += 1 + w
			continue
		}
		if n > 0 {
			lines = append(lines, line.String())
			line.Reset()
		}
		line.WriteString(word)
		n = w
	}
	return append(lines, line.String())
}
