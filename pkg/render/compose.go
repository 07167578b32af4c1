package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // background decoder
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // background decoder
)

const defaultQuality = 75

// Compose decodes a JPEG, PNG or WebP background and draws lines on it from
// the top-left corner, each above a drop shadow. A non-empty author is drawn
// as "- author" in the bottom-right corner.
func Compose(background []byte, face font.Face, lines []string, author string, style Style) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(background))
	if err != nil {
		return nil, fmt.Errorf("render: decode background: %w", err)
	}

	dst := fit(src, style.Width, style.Height)
	size := dst.Bounds().Size()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineHeight := style.LineHeight
	if lineHeight <= 0 {
		lineHeight = metrics.Height.Ceil()
	}

	for i, line := range lines {
		drawText(dst, face, line, style.Margin, style.Margin+i*lineHeight+ascent, style)
	}

	if author != "" {
		text := "- " + author
		width := font.MeasureString(face, text).Ceil()
		x := size.X - style.AuthorMargin - width
		y := size.Y - style.AuthorMargin - metrics.Descent.Ceil()
		drawText(dst, face, text, x, y, style)
	}

	return dst, nil
}

// EncodeJPEG writes img as JPEG. A quality outside 1..100 uses 75.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = defaultQuality
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("render: encode jpeg: %w", err)
	}
	return nil
}

// drawText draws s with its baseline at (x, y), shadow first.
func drawText(dst draw.Image, face font.Face, s string, x, y int, style Style) {
	if style.Shadow != nil && style.ShadowOffset != 0 {
		d := font.Drawer{Dst: dst, Src: image.NewUniform(style.Shadow), Face: face}
		d.Dot = fixed.P(x+style.ShadowOffset, y+style.ShadowOffset)
		d.DrawString(s)
	}
	fg := style.Color
	if fg == nil {
		fg = image.White
	}
	d := font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: face}
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// fit copies src into a new RGBA image. With a target size, src is scaled to
// cover it and the overflow is cropped evenly from both sides.
func fit(src image.Image, width, height int) *image.RGBA {
	b := src.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() == width && b.Dy() == height) {
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	scale := max(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	cropW := int(float64(width) / scale)
	cropH := int(float64(height) / scale)
	x0 := b.Min.X + (b.Dx()-cropW)/2
	y0 := b.Min.Y + (b.Dy()-cropH)/2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cropW, y0+cropH), draw.Src, nil)
	return dst
}
