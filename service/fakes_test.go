package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Aashish23092/albaran-merge/dto"
)

type fakeDoc struct {
	pages   []dto.Page
	images  map[int][]image.Image
	readErr error
	invalid bool
}

// fakePDF serves canned pages keyed by path. Merge and Trim write a text file
// listing what they were given so tests can inspect the output.
type fakePDF struct {
	docs   map[string]*fakeDoc
	merges [][]string
	trims  map[string][]int
}

func newFakePDF() *fakePDF {
	return &fakePDF{docs: make(map[string]*fakeDoc), trims: make(map[string][]int)}
}

func (f *fakePDF) add(path string, texts ...string) *fakeDoc {
	doc := &fakeDoc{images: make(map[int][]image.Image)}
	for i, t := range texts {
		doc.pages = append(doc.pages, dto.Page{Index: i, Text: t, Source: dto.SourceNative, Width: 595, Height: 842})
	}
	f.docs[path] = doc
	return doc
}

func (f *fakePDF) lookup(path string) (*fakeDoc, error) {
	doc, ok := f.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentUnreadable, path)
	}
	return doc, nil
}

func (f *fakePDF) ReadPages(path string) ([]dto.Page, error) {
	doc, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	if doc.readErr != nil {
		return nil, doc.readErr
	}
	return append([]dto.Page(nil), doc.pages...), nil
}

func (f *fakePDF) PageCount(path string) (int, error) {
	doc, err := f.lookup(path)
	if err != nil {
		return 0, err
	}
	if doc.invalid {
		return 0, ErrDocumentUnreadable
	}
	return len(doc.pages), nil
}

func (f *fakePDF) PageImages(path string, index int) ([]image.Image, error) {
	doc, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	if len(doc.images[index]) == 0 {
		return nil, ErrNoImages
	}
	return doc.images[index], nil
}

func (f *fakePDF) Validate(path string) error {
	doc, err := f.lookup(path)
	if err != nil {
		return err
	}
	if doc.invalid {
		return ErrDocumentUnreadable
	}
	return nil
}

func (f *fakePDF) Merge(inputs []string, outFile string) error {
	f.merges = append(f.merges, append([]string(nil), inputs...))
	return os.WriteFile(outFile, []byte(strings.Join(inputs, "\n")), 0o644)
}

func (f *fakePDF) Trim(path string, indexes []int, outFile string) error {
	f.trims[outFile] = append([]int(nil), indexes...)
	return os.WriteFile(outFile, []byte(path), 0o644)
}

func scannedPage() image.Image {
	return image.NewGray(image.Rect(0, 0, 60, 80))
}

// fakeOCR returns queued texts in order, then the last one forever.
type fakeOCR struct {
	mu    sync.Mutex
	texts []string
	lines []dto.TextBlock
	err   error
	block bool
	calls int
	// sizes holds the dimensions of every image received, in call order.
	sizes []image.Point
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) Recognize(ctx context.Context, img []byte) (*dto.OCRResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img)); err == nil {
		f.sizes = append(f.sizes, image.Pt(cfg.Width, cfg.Height))
	}
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(img) == 0 {
		return nil, errors.New("empty image")
	}
	text := ""
	if len(f.texts) > 0 {
		text = f.texts[min(n, len(f.texts))-1]
	}
	return &dto.OCRResult{Text: text, Lines: f.lines, Confidence: 90}, nil
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

type mapResolver map[string][]string

func (m mapResolver) Resolve(code string) []string { return m[code] }
