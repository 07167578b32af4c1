package render

import "image/color"

// Style controls how text is laid out on the background.
type Style struct {
	Color  color.Color
	Shadow color.Color
	// ShadowOffset is how far down and right the shadow sits, in pixels.
	ShadowOffset int
	// Margin is the distance of the first line from the top-left corner.
	Margin int
	// LineHeight is the distance between line tops; 0 uses the font's height.
	LineHeight int
	// AuthorMargin is the distance of the author from the bottom-right corner.
	AuthorMargin int
	// Width and Height scale and crop the background to that size; 0 keeps it.
	Width  int
	Height int
	// Quality is the JPEG quality, 1 to 100.
	Quality int
}

// DefaultStyle is white text with a black shadow.
func DefaultStyle() Style {
	return Style{
		Color:        color.White,
		Shadow:       color.Black,
		ShadowOffset: 2,
		Margin:       50,
		AuthorMargin: 50,
		Quality:      75,
	}
}
