package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// ErrFontNotFound is returned by LoadFace when the font file does not exist.
var ErrFontNotFound = errors.New("render: font file not found")

// LoadFace loads a TrueType or OpenType font file at the given point size.
func LoadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFontNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("render: read font: %w", err)
	}
	return newFace(data, size)
}

// DefaultFace returns Go Regular, which is compiled into the binary.
func DefaultFace(size float64) (font.Face, error) {
	return newFace(goregular.TTF, size)
}

func newFace(data []byte, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("render: font size must be positive, got %v", size)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: build font face: %w", err)
	}
	return face, nil
}
