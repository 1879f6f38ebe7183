package service

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// A4 in points, used when a page carries no usable MediaBox.
const (
	defaultPageWidth  = 595.0
	defaultPageHeight = 842.0
)

// PDFProcessor is the boundary to PDF files on disk. Page indexes are 0-based.
type PDFProcessor interface {
	ReadPages(path string) ([]dto.Page, error)
	PageCount(path string) (int, error)
	PageImages(path string, index int) ([]image.Image, error)
	Validate(path string) error
	Merge(inputs []string, outFile string) error
	Trim(path string, indexes []int, outFile string) error
}

type pdfProcessor struct{}

func NewPDFProcessor() PDFProcessor {
	return &pdfProcessor{}
}

// ReadPages returns the native text layer of every page together with
// positioned blocks. Scanned pages come back with empty text.
func (p *pdfProcessor) ReadPages(path string) (pages []dto.Page, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filepath.Base(path), err)
	}
	defer f.Close()

	totalPage := r.NumPage()
	pages = make([]dto.Page, 0, totalPage)
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := dto.Page{Index: pageIndex - 1, Source: dto.SourceNative}
		pg := r.Page(pageIndex)
		if pg.V.IsNull() {
			page.Width, page.Height = defaultPageWidth, defaultPageHeight
			pages = append(pages, page)
			continue
		}

		page.Width, page.Height = pageSize(pg)
		rows, rowErr := pg.GetTextByRow()
		if rowErr != nil {
			page.Err = rowErr
			pages = append(pages, page)
			continue
		}
		page.Text, page.Blocks = layoutRows(rows, page.Height)
		pages = append(pages, page)
	}
	return pages, nil
}

func pageSize(pg pdf.Page) (float64, float64) {
	box := pg.V.Key("MediaBox")
	if box.IsNull() {
		box = pg.V.Key("Parent").Key("MediaBox")
	}
	if box.Len() != 4 {
		return defaultPageWidth, defaultPageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return w, h
}

// layoutRows rebuilds reading-order text from glyph rows and cuts each row
// into blocks wherever the horizontal gap looks like a column break.
// Block coordinates are flipped to a top-left origin.
func layoutRows(rows pdf.Rows, pageHeight float64) (string, []dto.TextBlock) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

	var text strings.Builder
	var blocks []dto.TextBlock
	for _, row := range rows {
		words := row.Content
		if len(words) == 0 {
			continue
		}
		sort.SliceStable(words, func(i, j int) bool { return words[i].X < words[j].X })

		var line strings.Builder
		var seg strings.Builder
		var cur dto.TextBlock
		open := false
		flush := func() {
			if s := strings.TrimSpace(seg.String()); s != "" {
				cur.Text = s
				blocks = append(blocks, cur)
			}
			seg.Reset()
			open = false
		}

		prevEnd := words[0].X
		for i, w := range words {
			size := w.FontSize
			if size <= 0 {
				size = 10
			}
			gap := w.X - prevEnd
			if i > 0 && gap > 3*size {
				flush()
				line.WriteString(" ")
			} else if i > 0 && gap > 0.25*size {
				seg.WriteString(" ")
				line.WriteString(" ")
			}
			seg.WriteString(w.S)
			line.WriteString(w.S)

			top := pageHeight - (w.Y + size)
			bottom := pageHeight - w.Y
			if !open {
				cur = dto.TextBlock{X0: w.X, Y0: top, X1: w.X + w.W, Y1: bottom}
				open = true
			}
			cur.Y0 = min(cur.Y0, top)
			cur.Y1 = max(cur.Y1, bottom)
			cur.X1 = max(cur.X1, w.X+w.W)
			prevEnd = max(prevEnd, w.X+w.W)
		}
		flush()

		if s := strings.TrimSpace(line.String()); s != "" {
			text.WriteString(s)
			text.WriteString("\n")
		}
	}
	return text.String(), blocks
}

func (p *pdfProcessor) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filepath.Base(path), err)
	}
	return n, nil
}

// PageImages extracts the raster images embedded in one page. Extracted files
// live in a temp dir that is removed before returning.
func (p *pdfProcessor) PageImages(path string, index int) ([]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "albaran-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractImagesFile(path, tempDir, []string{strconv.Itoa(index + 1)}, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	files, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}

	var images []image.Image
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		img, err := decodeImageFile(filepath.Join(tempDir, file.Name()))
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func (p *pdfProcessor) Validate(path string) error {
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filepath.Base(path), err)
	}
	return nil
}

// Merge concatenates inputs in order into outFile. A single input is copied as is.
func (p *pdfProcessor) Merge(inputs []string, outFile string) error {
	switch len(inputs) {
	case 0:
		return fmt.Errorf("merge: no input files")
	case 1:
		return copyFile(inputs[0], outFile)
	}
	if err := api.MergeCreateFile(inputs, outFile, false, model.NewDefaultConfiguration()); err != nil {
		os.Remove(outFile)
		return fmt.Errorf("failed to merge into %s: %w", filepath.Base(outFile), err)
	}
	return nil
}

// Trim writes the selected pages of path into outFile.
func (p *pdfProcessor) Trim(path string, indexes []int, outFile string) error {
	selected := make([]string, 0, len(indexes))
	for _, i := range indexes {
		selected = append(selected, strconv.Itoa(i+1))
	}
	if err := api.TrimFile(path, outFile, selected, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("failed to write pages %v to %s: %w", selected, filepath.Base(outFile), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
