package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Aashish23092/albaran-merge/utils"
)

// RenameOutcome is what happened to one delivery note during a rename run.
type RenameOutcome struct {
	Source string
	Output string
	Code   string
	Err    error
}

// Renamer copies scanned delivery notes to "Albarán nº NNNN.pdf", reading the
// number from their content, so later merge runs can index them by name.
// Sources are never modified.
type Renamer struct {
	probe       ContentProbe
	fileTimeout time.Duration
}

func NewRenamer(probe ContentProbe, fileTimeout time.Duration) *Renamer {
	if fileTimeout <= 0 {
		fileTimeout = DefaultIndexOptions().FileTimeout
	}
	return &Renamer{probe: probe, fileTimeout: fileTimeout}
}

// Rename handles every PDF directly inside srcDir. Files without a readable
// code are reported in their outcome and do not stop the run.
func (r *Renamer) Rename(ctx context.Context, srcDir, outDir string) ([]RenameOutcome, error) {
	files, err := ListPDFs(srcDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	outcomes := make([]RenameOutcome, 0, len(files))
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			log.Printf("rename: interrupted, %d files not processed", len(files)-i)
			return outcomes, err
		}
		o := r.renameOne(ctx, src, outDir)
		if o.Err != nil {
			log.Printf("rename: [%d/%d] %s: %v", i+1, len(files), filepath.Base(src), o.Err)
		} else {
			log.Printf("rename: [%d/%d] %s -> %s", i+1, len(files), filepath.Base(src), filepath.Base(o.Output))
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (r *Renamer) renameOne(ctx context.Context, src, outDir string) RenameOutcome {
	o := RenameOutcome{Source: src}
	code, err := probeFile(ctx, r.probe, src, r.fileTimeout)
	if err != nil {
		o.Err = err
		return o
	}
	o.Code = code

	out, err := UniquePath(outDir, RenamedNoteName(code))
	if err != nil {
		o.Err = err
		return o
	}
	if err := copyFileKeepMtime(src, out); err != nil {
		o.Err = err
		return o
	}
	o.Output = out
	return o
}

// RenamedNoteName is the file name a renamed delivery note gets. Only the
// number is kept, which ParseFileNameCode reads back.
func RenamedNoteName(code string) string {
	return fmt.Sprintf("Albarán nº %s.pdf", utils.CodeNumber(code))
}

// copyFileKeepMtime copies src to dst and keeps the modification time.
func copyFileKeepMtime(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
