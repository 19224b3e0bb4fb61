package imagestore

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestStore_SaveAndResolve(t *testing.T) {
	store, err := New(t.TempDir(), 5<<20, 100)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	saved, err := store.Save(bytes.NewReader(testPNG(t, 400, 200)))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	path, err := store.Resolve(saved.Name)
	if err != nil {
		t.Fatalf("resolve original: %v", err)
	}
	if path != saved.Path {
		t.Fatalf("resolve returned %q, want %q", path, saved.Path)
	}

	thumbData, err := os.ReadFile(saved.ThumbPath)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	thumb, err := png.Decode(bytes.NewReader(thumbData))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if got := thumb.Bounds().Dx(); got != 100 {
		t.Fatalf("thumbnail width = %d, want 100", got)
	}
	if got := thumb.Bounds().Dy(); got != 50 {
		t.Fatalf("thumbnail height = %d, want 50 (aspect preserved)", got)
	}
}

func TestStore_SaveSmallImageKeepsSize(t *testing.T) {
	store, err := New(t.TempDir(), 5<<20, 480)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	saved, err := store.Save(bytes.NewReader(testPNG(t, 64, 64)))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	thumbData, err := os.ReadFile(saved.ThumbPath)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	thumb, err := png.Decode(bytes.NewReader(thumbData))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if got := thumb.Bounds().Dx(); got != 64 {
		t.Fatalf("thumbnail width = %d, want 64 (no upscale)", got)
	}
}

func TestStore_SaveRejectsTooLarge(t *testing.T) {
	store, err := New(t.TempDir(), 1024, 100)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Save(bytes.NewReader(testPNG(t, 400, 400)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestStore_SaveRejectsNonImage(t *testing.T) {
	store, err := New(t.TempDir(), 5<<20, 100)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Save(bytes.NewReader([]byte("definitely not an image")))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestStore_ResolveRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir(), 5<<20, 100)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Resolve("../etc/passwd"); err == nil {
		t.Fatalf("expected traversal name to be rejected")
	}
	if _, err := store.Resolve(""); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
}
