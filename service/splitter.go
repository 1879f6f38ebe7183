package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/Aashish23092/albaran-merge/utils"
)

const (
	unknownDate   = "0000-00-00"
	defaultClient = "CLIENTE"
)

// SplitOutput is one invoice cut out of a batch PDF. Pages are 0-based.
type SplitOutput struct {
	Path   string            `json:"path"`
	Pages  []int             `json:"pages"`
	Header dto.InvoiceHeader `json:"header"`
}

type pageGroup struct {
	header dto.InvoiceHeader
	pages  []int
	dates  []*time.Time
}

// Splitter cuts a PDF holding many invoices into one file per invoice.
type Splitter struct {
	pdf       PDFProcessor
	extractor *TextExtractor
}

func NewSplitter(pdf PDFProcessor, extractor *TextExtractor) *Splitter {
	return &Splitter{pdf: pdf, extractor: extractor}
}

// Split groups the pages of batchPDF by invoice number and writes each group
// to outDir. A group that cannot be written is reported in the returned error
// and the remaining groups are still written.
func (s *Splitter) Split(ctx context.Context, batchPDF, outDir string) ([]SplitOutput, error) {
	if err := s.pdf.Validate(batchPDF); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filepath.Base(batchPDF), err)
	}

	doc := NewDocument(batchPDF)
	n, err := s.extractor.PageCount(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(batchPDF), err)
	}

	headers := make([]dto.InvoiceHeader, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.extractor.ExtractPage(ctx, doc, i)
		if err != nil {
			return nil, err
		}
		h := utils.ParseInvoiceHeader(page.Text)
		if client, ok := utils.ExtractClientName(page.Blocks, page.Width, page.Height); ok {
			h.Client = client
		}
		log.Printf("split: page %d number=%q date=%s client=%q", i+1, h.Number, formatDate(h.Date), h.Client)
		headers = append(headers, h)
	}

	groups := groupPages(headers)
	log.Printf("split: %d groups in %s", len(groups), filepath.Base(batchPDF))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var outputs []SplitOutput
	var errs []error
	for _, g := range groups {
		path, err := UniquePath(outDir, splitName(g))
		if err == nil {
			err = s.pdf.Trim(batchPDF, g.pages, path)
		}
		if err != nil {
			log.Printf("split: failed to write pages %v: %v", pageNumbers(g.pages), err)
			errs = append(errs, fmt.Errorf("pages %v: %w", pageNumbers(g.pages), err))
			continue
		}
		log.Printf("split: wrote %s (pages %v)", filepath.Base(path), pageNumbers(g.pages))
		outputs = append(outputs, SplitOutput{Path: path, Pages: g.pages, Header: g.header})
	}
	return outputs, errors.Join(errs...)
}

// groupPages starts a new group at every page carrying an invoice number. The
// group keeps the header of its first page; pages before the first number
// form their own group that borrows the next group's header.
func groupPages(headers []dto.InvoiceHeader) []pageGroup {
	var groups []pageGroup
	for i, h := range headers {
		if h.Number != "" || len(groups) == 0 {
			groups = append(groups, pageGroup{header: h})
		}
		g := &groups[len(groups)-1]
		g.pages = append(g.pages, i)
		g.dates = append(g.dates, h.Date)
	}
	if len(groups) >= 2 && groups[0].header.Number == "" && groups[1].header.Number != "" {
		groups[0].header = groups[1].header
	}
	for i := range groups {
		g := &groups[i]
		if g.header.Date != nil {
			continue
		}
		for _, d := range g.dates {
			if d != nil {
				g.header.Date = d
				break
			}
		}
	}
	return groups
}

func splitName(g pageGroup) string {
	if g.header.Number == "" {
		return fmt.Sprintf("SIN_NUMERO_%d.pdf", g.pages[0]+1)
	}
	client := g.header.Client
	if client == "" {
		client = defaultClient
	}
	return fmt.Sprintf("%s FE#%s %s.pdf", formatDate(g.header.Date), g.header.Number, client)
}

func formatDate(d *time.Time) string {
	if d == nil {
		return unknownDate
	}
	return d.Format("2006-01-02")
}

func pageNumbers(pages []int) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p + 1
	}
	return out
}
