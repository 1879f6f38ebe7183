package service

import (
	"context"
	"fmt"
	"image"
	"log"
	"path/filepath"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/Aashish23092/albaran-merge/utils"
)

// The code box is small, so it is always upscaled at least this much.
const codeBoxUpscale = 4

// ContentMatcher finds the delivery-note code printed inside a document: the
// native text layer first, then barcodes on the first page, then OCR of the
// code box, then OCR of the whole first page.
type ContentMatcher struct {
	extractor *TextExtractor
	pdf       PDFProcessor
}

func NewContentMatcher(extractor *TextExtractor, pdf PDFProcessor) *ContentMatcher {
	return &ContentMatcher{extractor: extractor, pdf: pdf}
}

func (m *ContentMatcher) ProbeCode(ctx context.Context, path string) (string, error) {
	doc := NewDocument(path)
	native, err := m.extractor.NativePage(doc, 0)
	if err != nil {
		return "", err
	}
	if code, ok := utils.ParseDeliveryNoteCode(native.Text); ok {
		return code, nil
	}

	images, imgErr := m.pdf.PageImages(path, 0)
	if imgErr == nil {
		for _, img := range images {
			for _, payload := range DecodeBarcodes(img) {
				if code, ok := utils.ParseDeliveryNoteCode(payload); ok {
					return code, nil
				}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if imgErr == nil && len(images) > 0 && m.extractor.ocr != nil {
		if code, ok := m.readCodeBox(ctx, path, native, largestImage(images)); ok {
			return code, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	page, err := m.extractor.ExtractPage(ctx, doc, 0)
	if err != nil {
		return "", err
	}
	if page.Err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), page.Err)
	}
	code, _ := utils.ParseDeliveryNoteCode(page.Text)
	return code, nil
}

// readCodeBox OCRs only the box where delivery notes print their code. A miss
// or an OCR failure is not an error: the caller falls back to the full page.
func (m *ContentMatcher) readCodeBox(ctx context.Context, path string, native dto.Page, raster image.Image) (string, bool) {
	box := codeBox(raster.Bounds(), native.Width, native.Height)
	if box.Empty() {
		return "", false
	}
	scale := max(m.extractor.opts.Upscale, codeBoxUpscale)
	what := fmt.Sprintf("%s code box", filepath.Base(path))
	result, _, err := m.extractor.recognizeImage(ctx, cropImage(raster, box), scale, what)
	if err != nil {
		log.Printf("content: %s: %v, trying the whole page", what, err)
		return "", false
	}
	code, ok := utils.ParseCodeBoxText(result.Text)
	if !ok {
		log.Printf("content: no code in %s, trying the whole page", what)
	}
	return code, ok
}
