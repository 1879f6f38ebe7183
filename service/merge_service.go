package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/Aashish23092/albaran-merge/utils"
	"github.com/google/uuid"
)

type RunRequest struct {
	InvoiceDir       string
	DeliveryNoteRoot string
	OutputDir        string
	Index            IndexOptions
}

// MergeService runs the invoice pipeline: extract, parse, correlate, merge.
type MergeService struct {
	extractor *TextExtractor
	merger    *Merger
	probe     ContentProbe
}

func NewMergeService(pdf PDFProcessor, extractor *TextExtractor) *MergeService {
	return &MergeService{
		extractor: extractor,
		merger:    NewMerger(pdf),
		probe:     NewContentMatcher(extractor, pdf),
	}
}

// Run indexes the delivery notes, then processes every invoice in name order.
// Per-invoice problems end up in the report and never stop the batch. When
// ctx is cancelled the remaining invoices are left out and the partial report
// is returned together with ctx.Err().
func (s *MergeService) Run(ctx context.Context, req RunRequest) (*dto.RunReport, error) {
	report := &dto.RunReport{
		RunID:            uuid.NewString(),
		StartedAt:        time.Now(),
		InvoiceDir:       req.InvoiceDir,
		DeliveryNoteRoot: req.DeliveryNoteRoot,
		OutputDir:        req.OutputDir,
		ContentSearch:    req.Index.ContentSearch,
	}

	invoices, err := ListPDFs(req.InvoiceDir)
	if err != nil {
		return nil, err
	}
	log.Printf("merge: run %s, %d invoices in %s", report.RunID, len(invoices), req.InvoiceDir)

	index, err := BuildIndex(ctx, req.DeliveryNoteRoot, req.Index, s.probe)
	if index == nil {
		return nil, err
	}
	report.Skipped = index.Skipped()
	if err != nil {
		report.Finalize(nil, time.Now())
		return report, err
	}

	for i, invoice := range invoices {
		if ctx.Err() != nil {
			log.Printf("merge: interrupted, %d invoices not processed", len(invoices)-i)
			break
		}
		log.Printf("merge: [%d/%d] %s", i+1, len(invoices), filepath.Base(invoice))
		outcome, failures := s.ProcessInvoice(ctx, invoice, index, req.OutputDir)
		report.Record(outcome)
		for _, f := range failures {
			report.RecordFailure(f.Invoice, f.Path, f.Reason)
		}
	}

	report.Finalize(index, time.Now())
	log.Printf("merge: %d/%d invoices merged, %d missing, %d duplicates, %d orphans, %d failures",
		report.Merged, report.Processed, len(report.Missing), len(report.Duplicates), len(report.Orphans), len(report.Failures))
	return report, ctx.Err()
}

// ProcessInvoice handles one invoice end to end. Failures of individual
// delivery notes are returned separately from the outcome.
func (s *MergeService) ProcessInvoice(ctx context.Context, invoice string, index Resolver, outDir string) (dto.InvoiceOutcome, []dto.FailureEntry) {
	outcome := dto.InvoiceOutcome{Invoice: invoice}
	name := filepath.Base(invoice)

	pages, err := s.extractor.ExtractDocument(ctx, NewDocument(invoice))
	if err != nil {
		log.Printf("merge: cannot read %s: %v", name, err)
		outcome.Failure = err.Error()
		return outcome, nil
	}
	for _, p := range pages {
		if p.Err != nil {
			outcome.Notes = append(outcome.Notes, fmt.Sprintf("page %d: %v", p.Index+1, p.Err))
		}
	}

	if err := ctx.Err(); err != nil {
		log.Printf("merge: %s interrupted, not merged: %v", name, err)
		outcome.Failure = fmt.Sprintf("interrupted: %v", err)
		return outcome, nil
	}

	text := JoinPageText(pages)
	if text == "" {
		log.Printf("merge: %s: %v", name, ErrNoText)
		outcome.Notes = append(outcome.Notes, ErrNoText.Error())
	}
	header := utils.ParseInvoiceHeader(text)
	if len(pages) > 0 {
		first := pages[0]
		if client, ok := utils.ExtractClientName(first.Blocks, first.Width, first.Height); ok {
			header.Client = client
		} else {
			outcome.Notes = append(outcome.Notes, "client name not found")
		}
	}

	refs := utils.DeliveryNoteReferences(utils.ParseReferences(text))
	match := Correlate(invoice, refs, index)
	match.Header = header
	outcome.Match = match

	if len(refs) == 0 {
		log.Printf("merge: no delivery-note references in %s", name)
		outcome.Notes = append(outcome.Notes, "no delivery-note references found")
		return outcome, nil
	}

	out, dropped, err := s.merger.Merge(invoice, match.Paths(), outDir, header)
	var failures []dto.FailureEntry
	for _, d := range dropped {
		failures = append(failures, dto.FailureEntry{
			Invoice: invoice,
			Path:    d.Path,
			Reason:  fmt.Sprintf("delivery note left out of merge: %v", d.Err),
		})
	}
	if err != nil {
		if errors.Is(err, ErrInvoiceUnreadable) {
			log.Printf("merge: skipping %s: %v", name, err)
		} else {
			log.Printf("merge: failed to merge %s: %v", name, err)
		}
		outcome.Failure = err.Error()
		return outcome, failures
	}

	outcome.Output = out
	outcome.Merged = true
	return outcome, failures
}

// ListPDFs returns the PDF files directly inside dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !hasExtension(e.Name(), []string{".pdf"}) {
			continue
		}
		files = append(files, filepath.Join(absDir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
