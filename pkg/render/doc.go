// Package render draws a wrapped quote and its author onto a background photo
// and encodes the result as JPEG.
package render
