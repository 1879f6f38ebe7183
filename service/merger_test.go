package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputName(t *testing.T) {
	date := time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header dto.InvoiceHeader
		want   string
	}{
		{"number, date and client", dto.InvoiceHeader{Number: "1106", Date: &date, Client: "HERMANOS GARCIA"}, "2025-10-07 FE#1106 HERMANOS GARCIA.pdf"},
		{"client only", dto.InvoiceHeader{Client: "HERMANOS GARCIA"}, "scan 12 HERMANOS GARCIA.pdf"},
		{"no client", dto.InvoiceHeader{Number: "1106", Date: &date}, "scan 12.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName("/in/scan 12.PDF", tt.header))
		})
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	first, err := UniquePath(dir, "F.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "F.pdf"), first)

	touch(t, first)
	touch(t, filepath.Join(dir, "F (1).pdf"))

	next, err := UniquePath(dir, "F.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "F (2).pdf"), next)
}

func TestMergerOrderAndDroppedNotes(t *testing.T) {
	pdf := newFakePDF()
	pdf.add("/in/F1.pdf", "x")
	pdf.add("/notes/A25487.pdf", "x")
	pdf.add("/notes/A25512.pdf", "x").invalid = true
	pdf.add("/notes/A25600.pdf", "x")
	outDir := filepath.Join(t.TempDir(), "out")

	out, dropped, err := NewMerger(pdf).Merge("/in/F1.pdf",
		[]string{"/notes/A25487.pdf", "/notes/A25512.pdf", "/notes/A25600.pdf"}, outDir, dto.InvoiceHeader{Client: "ACME"})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "F1 ACME.pdf"), out)
	require.Len(t, pdf.merges, 1)
	assert.Equal(t, []string{"/in/F1.pdf", "/notes/A25487.pdf", "/notes/A25600.pdf"}, pdf.merges[0])
	require.Len(t, dropped, 1)
	assert.Equal(t, "/notes/A25512.pdf", dropped[0].Path)
	assert.FileExists(t, out)
}

func TestMergerDoesNotOverwrite(t *testing.T) {
	pdf := newFakePDF()
	pdf.add("/in/F1.pdf", "x")
	outDir := t.TempDir()
	existing := touch(t, filepath.Join(outDir, "F1.pdf"))

	out, _, err := NewMerger(pdf).Merge("/in/F1.pdf", nil, outDir, dto.InvoiceHeader{})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "F1 (1).pdf"), out)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\n", string(data))
}

func TestMergerUnreadableInvoice(t *testing.T) {
	pdf := newFakePDF()
	pdf.add("/in/F1.pdf", "x").invalid = true

	_, _, err := NewMerger(pdf).Merge("/in/F1.pdf", []string{"/notes/A.pdf"}, t.TempDir(), dto.InvoiceHeader{})

	assert.ErrorIs(t, err, ErrInvoiceUnreadable)
	assert.Empty(t, pdf.merges)
}
