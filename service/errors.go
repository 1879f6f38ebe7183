package service

import "errors"

var (
	ErrNoText             = errors.New("no text extracted")
	ErrNoImages           = errors.New("page has no raster images to OCR")
	ErrOCRTimeout         = errors.New("OCR timed out")
	ErrOCRUnavailable     = errors.New("no OCR engine configured")
	ErrDocumentUnreadable = errors.New("document cannot be read")
	ErrInvoiceUnreadable  = errors.New("invoice cannot be opened")
)
