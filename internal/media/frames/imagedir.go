package frames

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scenesub/internal/scenes"
)

// ImageDirSource replays the PNG and JPEG files of Dir, in lexical order, as
// frames spaced 1/FPS seconds apart.
type ImageDirSource struct {
	Dir string
	// FPS defaults to scenes.DefaultFPS when zero.
	FPS float64
}

// Open lists the directory. Unreadable directories fail here.
func (s ImageDirSource) Open(context.Context) (scenes.Reader, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("frames: read image dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(s.Dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	fps := s.FPS
	if fps <= 0 {
		fps = scenes.DefaultFPS
	}
	return &imageDirReader{paths: paths, fps: fps}, nil
}

type imageDirReader struct {
	paths []string
	fps   float64
	pos   int
}

func (r *imageDirReader) FrameRate() float64 { return r.fps }

func (r *imageDirReader) Next(ctx context.Context) (scenes.Frame, error) {
	if err := ctx.Err(); err != nil {
		return scenes.Frame{}, err
	}
	if r.pos >= len(r.paths) {
		return scenes.Frame{}, io.EOF
	}
	path := r.paths[r.pos]
	img, err := decodeImage(path)
	if err != nil {
		return scenes.Frame{}, err
	}
	frame := scenes.Frame{Image: img, Timestamp: float64(r.pos) / r.fps}
	r.pos++
	return frame, nil
}

func (r *imageDirReader) Close() error { return nil }

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frames: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("frames: decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
