package service

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aashish23092/albaran-merge/dto"
)

// DroppedInput is a delivery note left out of a merge because it could not be read.
type DroppedInput struct {
	Path string
	Err  error
}

type Merger struct {
	pdf PDFProcessor
}

func NewMerger(pdf PDFProcessor) *Merger {
	return &Merger{pdf: pdf}
}

// Merge writes the invoice followed by notes, in order, into outDir. The
// output name comes from OutputName and never overwrites an existing file.
// An unreadable invoice aborts with ErrInvoiceUnreadable; unreadable notes
// are dropped and returned.
func (m *Merger) Merge(invoice string, notes []string, outDir string, header dto.InvoiceHeader) (string, []DroppedInput, error) {
	if err := m.pdf.Validate(invoice); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrInvoiceUnreadable, filepath.Base(invoice), err)
	}

	inputs := []string{invoice}
	var dropped []DroppedInput
	for _, note := range notes {
		if err := m.pdf.Validate(note); err != nil {
			log.Printf("merger: dropping %s: %v", filepath.Base(note), err)
			dropped = append(dropped, DroppedInput{Path: note, Err: err})
			continue
		}
		inputs = append(inputs, note)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", dropped, fmt.Errorf("failed to create output dir: %w", err)
	}
	out, err := UniquePath(outDir, OutputName(invoice, header))
	if err != nil {
		return "", dropped, err
	}
	if err := m.pdf.Merge(inputs, out); err != nil {
		return "", dropped, err
	}
	log.Printf("merger: wrote %s (%d delivery notes)", filepath.Base(out), len(inputs)-1)
	return out, dropped, nil
}

// OutputName is "<date> FE#<number> <CLIENT>.pdf" when the header carries a
// number and date, "<invoice stem> <CLIENT>.pdf" when only the client is
// known, and the invoice's own name otherwise.
func OutputName(invoice string, header dto.InvoiceHeader) string {
	stem := strings.TrimSuffix(filepath.Base(invoice), filepath.Ext(invoice))
	if header.Client == "" {
		return stem + ".pdf"
	}
	if header.HasNumberAndDate() {
		stem = fmt.Sprintf("%s FE#%s", header.Date.Format("2006-01-02"), header.Number)
	}
	return stem + " " + header.Client + ".pdf"
}

// UniquePath returns dir/name, or dir/"stem (n).ext" with the smallest n that
// does not exist yet.
func UniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}
