package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
)

// OCREngine recognizes text in a PNG-encoded page image.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, img []byte) (*dto.OCRResult, error)
}

type ExtractorOptions struct {
	// Pages with fewer trimmed native characters than this are OCR'd.
	MinTextChars int
	PageTimeout  time.Duration
	Upscale      int
}

func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{MinTextChars: 20, PageTimeout: 60 * time.Second, Upscale: 2}
}

// Document is a PDF opened for extraction. Native text is read once and each
// page's final text is cached after its first extraction.
type Document struct {
	Path string

	loaded  bool
	loadErr error
	native  []dto.Page
	pages   map[int]dto.Page
}

func NewDocument(path string) *Document {
	return &Document{Path: path, pages: make(map[int]dto.Page)}
}

type TextExtractor struct {
	pdf      PDFProcessor
	ocr      OCREngine
	opts     ExtractorOptions
	ocrCalls int
}

func NewTextExtractor(pdf PDFProcessor, ocr OCREngine, opts ExtractorOptions) *TextExtractor {
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = DefaultExtractorOptions().MinTextChars
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultExtractorOptions().PageTimeout
	}
	return &TextExtractor{pdf: pdf, ocr: ocr, opts: opts}
}

// OCRCalls reports how many images were sent to the OCR engine so far.
func (e *TextExtractor) OCRCalls() int {
	return e.ocrCalls
}

// PageCount loads the document if needed and returns its number of pages.
func (e *TextExtractor) PageCount(doc *Document) (int, error) {
	if err := e.load(doc); err != nil {
		return 0, err
	}
	return len(doc.native), nil
}

func (e *TextExtractor) load(doc *Document) error {
	if doc.loaded {
		return doc.loadErr
	}
	doc.loaded = true

	pages, err := e.pdf.ReadPages(doc.Path)
	if err == nil {
		doc.native = pages
		return nil
	}

	// No usable text layer; fall back to OCR on every page if the file is
	// still a valid PDF.
	n, countErr := e.pdf.PageCount(doc.Path)
	if countErr != nil {
		doc.loadErr = err
		return err
	}
	log.Printf("extractor: native text unavailable for %s (%v), pages will be OCR'd", filepath.Base(doc.Path), err)
	doc.native = make([]dto.Page, n)
	for i := range doc.native {
		doc.native[i] = dto.Page{Index: i, Source: dto.SourceNone}
	}
	return nil
}

// NativePage returns the text layer of one page without running OCR.
func (e *TextExtractor) NativePage(doc *Document, index int) (dto.Page, error) {
	if err := e.load(doc); err != nil {
		return dto.Page{}, err
	}
	if index < 0 || index >= len(doc.native) {
		return dto.Page{}, fmt.Errorf("page %d out of range for %s", index+1, filepath.Base(doc.Path))
	}
	return doc.native[index], nil
}

// ExtractPage returns the text of one page: the native text layer when it
// holds enough characters, OCR output otherwise. A failed OCR yields a page
// with empty text and Err set.
func (e *TextExtractor) ExtractPage(ctx context.Context, doc *Document, index int) (dto.Page, error) {
	if page, ok := doc.pages[index]; ok {
		return page, nil
	}
	page, err := e.NativePage(doc, index)
	if err != nil {
		return dto.Page{}, err
	}

	if len(strings.TrimSpace(page.Text)) >= e.opts.MinTextChars {
		page.Source = dto.SourceNative
		doc.pages[index] = page
		return page, nil
	}

	ocrPage, err := e.ocrPage(ctx, doc.Path, index)
	if err != nil {
		log.Printf("extractor: OCR failed for %s page %d: %v", filepath.Base(doc.Path), index+1, err)
		page = dto.Page{Index: index, Source: dto.SourceNone, Width: page.Width, Height: page.Height, Err: err}
	} else {
		page = ocrPage
	}
	doc.pages[index] = page
	return page, nil
}

// ExtractDocument extracts every page in order.
func (e *TextExtractor) ExtractDocument(ctx context.Context, doc *Document) ([]dto.Page, error) {
	n, err := e.PageCount(doc)
	if err != nil {
		return nil, err
	}
	pages := make([]dto.Page, 0, n)
	for i := 0; i < n; i++ {
		page, err := e.ExtractPage(ctx, doc, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// DocumentText extracts every page and joins their text in reading order.
func (e *TextExtractor) DocumentText(ctx context.Context, doc *Document) (string, error) {
	pages, err := e.ExtractDocument(ctx, doc)
	if err != nil {
		return "", err
	}
	return JoinPageText(pages), nil
}

// JoinPageText joins the text of pages, one page per paragraph.
func JoinPageText(pages []dto.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (e *TextExtractor) ocrPage(ctx context.Context, path string, index int) (dto.Page, error) {
	if e.ocr == nil {
		return dto.Page{}, ErrOCRUnavailable
	}

	images, err := e.pdf.PageImages(path, index)
	if err != nil {
		return dto.Page{}, err
	}
	what := fmt.Sprintf("%s page %d", filepath.Base(path), index+1)
	result, size, err := e.recognizeImage(ctx, largestImage(images), e.opts.Upscale, what)
	if err != nil {
		return dto.Page{}, err
	}
	return dto.Page{
		Index:  index,
		Text:   result.Text,
		Source: dto.SourceOCR,
		Blocks: result.Lines,
		Width:  float64(size.Dx()),
		Height: float64(size.Dy()),
	}, nil
}

// recognizeImage preprocesses img and runs OCR on it under the page timeout.
// It also returns the bounds of the image the engine saw.
func (e *TextExtractor) recognizeImage(ctx context.Context, img image.Image, scale int, what string) (*dto.OCRResult, image.Rectangle, error) {
	if e.ocr == nil {
		return nil, image.Rectangle{}, ErrOCRUnavailable
	}
	prepared := PrepareForOCR(img, scale)
	data, err := encodePNG(prepared)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to encode page image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()

	e.ocrCalls++
	start := time.Now()
	result, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, image.Rectangle{}, fmt.Errorf("%w after %s", ErrOCRTimeout, e.opts.PageTimeout)
		}
		return nil, image.Rectangle{}, err
	}
	log.Printf("extractor: %s OCR'd %s in %s (%d chars)",
		e.ocr.Name(), what, time.Since(start).Round(time.Millisecond), len(result.Text))
	return result, prepared.Bounds(), nil
}
