package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/Aashish23092/albaran-merge/utils"
)

type IndexOptions struct {
	ContentSearch bool
	FileTimeout   time.Duration
	Extensions    []string
}

func DefaultIndexOptions() IndexOptions {
	return IndexOptions{FileTimeout: 90 * time.Second, Extensions: []string{".pdf"}}
}

// ContentProbe reads a delivery-note code from inside a file whose name
// carries none. It returns "" when the file holds no recognizable code.
type ContentProbe interface {
	ProbeCode(ctx context.Context, path string) (string, error)
}

// FileIndex maps normalized delivery-note codes to the files that carry them.
// It is built once and read-only afterwards.
type FileIndex struct {
	root    string
	entries map[string][]string
	skipped []dto.SkippedFile
	files   int
}

// BuildIndex walks root recursively. File names are tried first; files whose
// name has no code are opened through probe when content search is enabled.
// Unreadable entries are skipped and reported, never fatal. A cancelled ctx
// stops the walk and returns the partial index with ctx.Err().
func BuildIndex(ctx context.Context, root string, opts IndexOptions, probe ContentProbe) (*FileIndex, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open search root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("search root %s is not a directory", absRoot)
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultIndexOptions().Extensions
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = DefaultIndexOptions().FileTimeout
	}

	idx := &FileIndex{root: absRoot, entries: make(map[string][]string)}
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			idx.skip(path, err.Error())
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasExtension(path, opts.Extensions) {
			return nil
		}
		idx.files++

		if code, ok := utils.ParseFileNameCode(d.Name()); ok {
			idx.add(code, path)
			return nil
		}
		if !opts.ContentSearch || probe == nil {
			idx.skip(path, "no delivery-note code in file name")
			return nil
		}

		code, err := probeFile(ctx, probe, path, opts.FileTimeout)
		if err != nil {
			idx.skip(path, err.Error())
			return nil
		}
		log.Printf("index: %s matched %s by content", filepath.Base(path), code)
		idx.add(code, path)
		return nil
	})

	for code, paths := range idx.entries {
		idx.entries[code] = sortedUnique(paths)
	}
	log.Printf("index: %d files scanned under %s, %d codes indexed, %d skipped",
		idx.files, absRoot, len(idx.entries), len(idx.skipped))

	if walkErr != nil {
		return idx, walkErr
	}
	return idx, nil
}

// probeFile reads the code inside one file, giving up after timeout. A file
// without a recognizable code is an error.
func probeFile(ctx context.Context, probe ContentProbe, path string, timeout time.Duration) (string, error) {
	fileCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	code, err := probe.ProbeCode(fileCtx, path)
	switch {
	case errors.Is(fileCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("content search exceeded %s", timeout)
	case err != nil:
		return "", err
	case code == "":
		return "", errors.New("no delivery-note code in file content")
	}
	return code, nil
}

func (idx *FileIndex) add(code, path string) {
	idx.entries[code] = append(idx.entries[code], path)
}

func (idx *FileIndex) skip(path, reason string) {
	idx.skipped = append(idx.skipped, dto.SkippedFile{Path: path, Reason: reason})
}

// Resolve returns every file indexed under code, sorted. Files indexed by
// bare number ("Albarán nº 0487.pdf") also resolve for the full code.
func (idx *FileIndex) Resolve(code string) []string {
	paths := idx.entries[code]
	if num := utils.CodeNumber(code); num != code {
		if extra := idx.entries[num]; len(extra) > 0 {
			paths = sortedUnique(append(append([]string(nil), paths...), extra...))
		}
	}
	return append([]string(nil), paths...)
}

func (idx *FileIndex) Paths(code string) []string {
	return append([]string(nil), idx.entries[code]...)
}

func (idx *FileIndex) Codes() []string {
	codes := make([]string, 0, len(idx.entries))
	for code := range idx.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (idx *FileIndex) Len() int { return len(idx.entries) }

func (idx *FileIndex) Root() string { return idx.root }

func (idx *FileIndex) Skipped() []dto.SkippedFile {
	return append([]dto.SkippedFile(nil), idx.skipped...)
}

func hasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func sortedUnique(paths []string) []string {
	sort.Strings(paths)
	out := paths[:0]
	for _, p := range paths {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}
