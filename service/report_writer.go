package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/xuri/excelize/v2"
)

const (
	FormatText = "txt"
	FormatJSON = "json"
	FormatXLSX = "xlsx"

	reportBaseName = "informe"
)

// ReportWriter writes the run report in each configured format to dir.
// Previous reports with the same name are overwritten.
type ReportWriter struct {
	dir     string
	formats []string
}

func NewReportWriter(dir string, formats []string) *ReportWriter {
	if len(formats) == 0 {
		formats = []string{FormatText}
	}
	return &ReportWriter{dir: dir, formats: formats}
}

// Write returns the paths written. A failing format does not prevent the others.
func (w *ReportWriter) Write(r *dto.RunReport) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}

	var written []string
	var errs []error
	for _, format := range w.formats {
		format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
		path := filepath.Join(w.dir, reportBaseName+"."+format)

		var err error
		switch format {
		case FormatText:
			err = writeFile(path, func(out io.Writer) error { return WriteTextReport(out, r) })
		case FormatJSON:
			err = writeFile(path, func(out io.Writer) error { return WriteJSONReport(out, r) })
		case FormatXLSX:
			err = WriteXLSXReport(path, r)
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s report: %w", format, err))
			continue
		}
		log.Printf("report: wrote %s", path)
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteJSONReport(out io.Writer, r *dto.RunReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTextReport renders the report for a human reader.
func WriteTextReport(out io.Writer, r *dto.RunReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	fmt.Fprintf(&b, "Started:  %s\n", formatTime(r.StartedAt))
	fmt.Fprintf(&b, "Finished: %s\n", formatTime(r.FinishedAt))
	fmt.Fprintf(&b, "Invoices:       %s\n", r.InvoiceDir)
	fmt.Fprintf(&b, "Delivery notes: %s (content search %s)\n", r.DeliveryNoteRoot, onOff(r.ContentSearch))
	fmt.Fprintf(&b, "Output:         %s\n\n", r.OutputDir)
	fmt.Fprintf(&b, "Processed %d, merged %d, indexed codes %d\n", r.Processed, r.Merged, r.IndexedCodes)

	section(&b, "INVOICES", len(r.Invoices))
	for _, o := range r.Invoices {
		dest := "not merged"
		if o.Merged {
			dest = filepath.Base(o.Output)
		}
		fmt.Fprintf(&b, "  %s -> %s\n", filepath.Base(o.Invoice), dest)
		for _, m := range o.Match.Matches {
			target := string(m.Status)
			if m.Path != "" {
				target = filepath.Base(m.Path)
			}
			fmt.Fprintf(&b, "      %s: %s\n", m.Reference.Code, target)
		}
		if o.Failure != "" {
			fmt.Fprintf(&b, "      FAILED: %s\n", o.Failure)
		}
		for _, n := range o.Notes {
			fmt.Fprintf(&b, "      note: %s\n", n)
		}
	}

	section(&b, "MISSING", len(r.Missing))
	for _, m := range r.Missing {
		fmt.Fprintf(&b, "  %s: %s\n", filepath.Base(m.Invoice), m.Code)
	}

	section(&b, "DUPLICATES", len(r.Duplicates))
	for _, d := range r.Duplicates {
		fmt.Fprintf(&b, "  %s -> %s\n", d.Code, d.Chosen)
		for _, p := range d.Paths {
			fmt.Fprintf(&b, "      candidate: %s\n", p)
		}
	}

	section(&b, "ORPHANS", len(r.Orphans))
	for _, o := range r.Orphans {
		fmt.Fprintf(&b, "  %s: %s\n", o.Code, strings.Join(o.Paths, ", "))
	}

	section(&b, "FAILURES", len(r.Failures))
	for _, f := range r.Failures {
		if f.Path != "" {
			fmt.Fprintf(&b, "  %s (%s): %s\n", filepath.Base(f.Invoice), f.Path, f.Reason)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", filepath.Base(f.Invoice), f.Reason)
	}

	section(&b, "SKIPPED", len(r.Skipped))
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "  %s: %s\n", s.Path, s.Reason)
	}

	_, err := io.WriteString(out, b.String())
	return err
}

func section(b *strings.Builder, title string, n int) {
	fmt.Fprintf(b, "\n%s (%d)\n", title, n)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// WriteXLSXReport writes one sheet per report section.
func WriteXLSXReport(path string, r *dto.RunReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summary := [][]interface{}{
		{"Run", r.RunID},
		{"Inicio", formatTime(r.StartedAt)},
		{"Fin", formatTime(r.FinishedAt)},
		{"Facturas", r.InvoiceDir},
		{"Albaranes", r.DeliveryNoteRoot},
		{"Salida", r.OutputDir},
		{"Busqueda por contenido", onOff(r.ContentSearch)},
		{"Procesadas", r.Processed},
		{"Unidas", r.Merged},
		{"Codigos indexados", r.IndexedCodes},
		{"Faltantes", len(r.Missing)},
		{"Duplicados", len(r.Duplicates)},
		{"Huerfanos", len(r.Orphans)},
		{"Errores", len(r.Failures)},
		{"Omitidos", len(r.Skipped)},
	}
	if err := f.SetSheetName("Sheet1", "Resumen"); err != nil {
		return err
	}
	if err := writeRows(f, "Resumen", summary); err != nil {
		return err
	}

	invoices := [][]interface{}{{"Factura", "Salida", "Unida", "Albaranes", "Faltantes", "Duplicados", "Error", "Notas"}}
	for _, o := range r.Invoices {
		var codes []string
		for _, m := range o.Match.Matches {
			codes = append(codes, m.Reference.Code)
		}
		invoices = append(invoices, []interface{}{
			o.Invoice, o.Output, o.Merged,
			strings.Join(codes, ", "), strings.Join(o.Missing, ", "), strings.Join(o.Duplicates, ", "),
			o.Failure, strings.Join(o.Notes, "; "),
		})
	}

	missing := [][]interface{}{{"Factura", "Albaran"}}
	for _, m := range r.Missing {
		missing = append(missing, []interface{}{m.Invoice, m.Code})
	}

	duplicates := [][]interface{}{{"Albaran", "Elegido", "Candidatos", "Facturas"}}
	for _, d := range r.Duplicates {
		duplicates = append(duplicates, []interface{}{d.Code, d.Chosen, strings.Join(d.Paths, "\n"), strings.Join(d.Invoices, "\n")})
	}

	orphans := [][]interface{}{{"Albaran", "Archivos"}}
	for _, o := range r.Orphans {
		orphans = append(orphans, []interface{}{o.Code, strings.Join(o.Paths, "\n")})
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{"Facturas", invoices},
		{"Faltantes", missing},
		{"Duplicados", duplicates},
		{"Huerfanos", orphans},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return err
		}
		if err := writeRows(f, s.name, s.rows); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
