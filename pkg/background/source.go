package background

import "context"

// Request describes the photo wanted.
type Request struct {
	Width  int
	Height int
	// Query is an optional search term, e.g. "mountains".
	Query string
}

// Photo is a downloaded image.
type Photo struct {
	Data        []byte
	ContentType string
	// URL is where the image bytes came from.
	URL string
}

// Source produces background photos.
type Source interface {
	Fetch(ctx context.Context, req Request) (*Photo, error)
}
