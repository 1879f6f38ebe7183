package dto

import "time"

type ReferenceKind string

const (
	KindInvoiceNumber ReferenceKind = "invoice_number"
	KindDeliveryNote  ReferenceKind = "delivery_note"
)

type TextSource string

const (
	SourceNative TextSource = "native"
	SourceOCR    TextSource = "ocr"
	SourceNone   TextSource = "none"
)

// TextBlock is a run of text with its bounding box. Coordinates use a
// top-left origin in page units (points for native text, pixels for OCR).
type TextBlock struct {
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Text string  `json:"text"`
}

// Page is the extracted content of one page of a document.
type Page struct {
	Index  int         `json:"index"`
	Text   string      `json:"text"`
	Source TextSource  `json:"source"`
	Blocks []TextBlock `json:"blocks,omitempty"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Err    error       `json:"-"`
}

// Reference is an identifier parsed out of document text.
type Reference struct {
	Kind   ReferenceKind `json:"kind"`
	Code   string        `json:"code"`
	Raw    string        `json:"raw"`
	Date   *time.Time    `json:"date,omitempty"`
	Client string        `json:"client,omitempty"`
	Offset int           `json:"offset"`
}

// InvoiceHeader holds the fields used to name merged and split outputs.
type InvoiceHeader struct {
	Number string     `json:"number,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	Client string     `json:"client,omitempty"`
}

// HasNumberAndDate reports whether the header can produce a "YYYY-MM-DD FE#NNNN" base name.
func (h InvoiceHeader) HasNumberAndDate() bool {
	return h.Number != "" && h.Date != nil
}

// OCRResult is the output of one OCR call. Lines carry pixel coordinates of
// the recognized image.
type OCRResult struct {
	Text       string      `json:"text"`
	Lines      []TextBlock `json:"lines,omitempty"`
	Confidence float64     `json:"confidence"`
}
