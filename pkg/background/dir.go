package background

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DirSource picks a random .jpg, .jpeg, .png or .webp file from a directory. It
// ignores the requested size; the photo is used as it is.
type DirSource struct {
	dir string
	rng *rand.Rand
}

// NewDirSource returns a DirSource over dir. A nil rng uses the global source.
func NewDirSource(dir string, rng *rand.Rand) *DirSource {
	return &DirSource{dir: dir, rng: rng}
}

// Fetch reads one randomly chosen image from the directory.
func (d *DirSource) Fetch(ctx context.Context, _ Request) (*Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("background: read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, d.dir)
	}

	var i int
	if d.rng != nil {
		i = d.rng.IntN(len(files))
	} else {
		i = rand.IntN(len(files))
	}
	path := filepath.Join(d.dir, files[i])

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("background: read image: %w", err)
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: %s (got %s)", ErrNotImage, path, ct)
	}
	return &Photo{Data: data, ContentType: ct, URL: "file://" + filepath.ToSlash(path)}, nil
}
