package service

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type staticIndex map[string][]string

func (s staticIndex) Codes() []string {
	codes := make([]string, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	return sortedUnique(codes)
}

func (s staticIndex) Paths(code string) []string { return s[code] }

func sampleReport() *dto.RunReport {
	r := &dto.RunReport{
		RunID:            "run-1",
		StartedAt:        time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC),
		InvoiceDir:       "/in",
		DeliveryNoteRoot: "/notes",
		OutputDir:        "/out",
	}
	r.Record(dto.InvoiceOutcome{
		Invoice: "/in/FE1106.pdf",
		Output:  "/out/2025-04-07 FE#1106 ACME.pdf",
		Merged:  true,
		Match: dto.MatchResult{
			Invoice: "/in/FE1106.pdf",
			Matches: []dto.ResolvedReference{
				{Reference: dto.Reference{Code: "A25-0487"}, Path: "/notes/A25 487.pdf", Status: dto.StatusMatched},
				{Reference: dto.Reference{Code: "A25-0999"}, Status: dto.StatusMissing},
				{
					Reference:  dto.Reference{Code: "A25-0500"},
					Path:       "/notes/a/A25 500.pdf",
					Status:     dto.StatusDuplicate,
					Candidates: []string{"/notes/a/A25 500.pdf", "/notes/b/A25 500.pdf"},
				},
			},
		},
	})
	r.RecordFailure("/in/FE1106.pdf", "/notes/broken.pdf", "delivery note left out of merge: unreadable")
	r.Skipped = append(r.Skipped, dto.SkippedFile{Path: "/notes/scan.pdf", Reason: "no delivery-note code in file name"})
	r.Finalize(staticIndex{
		"A25-0487": {"/notes/A25 487.pdf"},
		"A25-0500": {"/notes/a/A25 500.pdf", "/notes/b/A25 500.pdf"},
		"A25-0777": {"/notes/A25 777.pdf"},
	}, time.Date(2025, 4, 7, 9, 5, 0, 0, time.UTC))
	return r
}

func TestWriteTextReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTextReport(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "Processed 1, merged 1, indexed codes 3")
	assert.Contains(t, out, "FE1106.pdf -> 2025-04-07 FE#1106 ACME.pdf")
	assert.Contains(t, out, "MISSING (1)")
	assert.Contains(t, out, "FE1106.pdf: A25-0999")
	assert.Contains(t, out, "DUPLICATES (1)")
	assert.Contains(t, out, "candidate: /notes/b/A25 500.pdf")
	assert.Contains(t, out, "ORPHANS (1)")
	assert.Contains(t, out, "A25-0777: /notes/A25 777.pdf")
	assert.Contains(t, out, "FAILURES (1)")
	assert.Contains(t, out, "SKIPPED (1)")
}

func TestWriteJSONReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONReport(&buf, sampleReport()))

	var decoded dto.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, []dto.MissingEntry{{Invoice: "/in/FE1106.pdf", Code: "A25-0999"}}, decoded.Missing)
	require.Len(t, decoded.Orphans, 1)
	assert.Equal(t, "A25-0777", decoded.Orphans[0].Code)
	require.Len(t, decoded.Duplicates, 1)
	assert.Equal(t, "/notes/a/A25 500.pdf", decoded.Duplicates[0].Chosen)
}

func TestWriteXLSXReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "informe.xlsx")
	require.NoError(t, WriteXLSXReport(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Resumen", "Facturas", "Faltantes", "Duplicados", "Huerfanos"}, f.GetSheetList())

	rows, err := f.GetRows("Faltantes")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Factura", "Albaran"}, {"/in/FE1106.pdf", "A25-0999"}}, rows)

	summary, err := f.GetRows("Resumen")
	require.NoError(t, err)
	require.NotEmpty(t, summary)
	assert.Equal(t, []string{"Run", "run-1"}, summary[0])
}

func TestReportWriterUnknownFormat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewReportWriter(dir, []string{"txt", "pdf", ".JSON"})

	written, err := w.Write(sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown report format "pdf"`)
	assert.Equal(t, []string{filepath.Join(dir, "informe.txt"), filepath.Join(dir, "informe.json")}, written)

	for _, p := range written {
		_, statErr := os.Stat(p)
		assert.NoError(t, statErr)
	}
}

func TestReportWriterDefaultsToText(t *testing.T) {
	dir := t.TempDir()
	written, err := NewReportWriter(dir, nil).Write(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "informe.txt")}, written)
}
