package utils

import (
	"testing"
	"time"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferencesKeepsTextOrder(t *testing.T) {
	text := `
		Servicio de transporte segun A25 487 de 07/04/2025
		Material adicional A25 500 de 08/04/2025
	`

	refs := DeliveryNoteReferences(ParseReferences(text))

	require.Len(t, refs, 2)
	assert.Equal(t, "A25-0487", refs[0].Code)
	assert.Equal(t, "A25-0500", refs[1].Code)
	require.NotNil(t, refs[0].Date)
	assert.Equal(t, time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC), *refs[0].Date)
	assert.Less(t, refs[0].Offset, refs[1].Offset)
}

func TestParseReferencesLabeled(t *testing.T) {
	text := `FACTURA
Factura: 1106   Fecha: 07/10/2025
Albarán Num. A25  487 de 07/04/2025   120,00
ALBARAN Nº A25-512 DEL 09/04/2025     80,00
Albaran A25 1608`

	refs := ParseReferences(text)
	notes := DeliveryNoteReferences(refs)

	require.Len(t, notes, 3)
	assert.Equal(t, []string{"A25-0487", "A25-0512", "A25-1608"}, codes(notes))
	assert.Nil(t, notes[2].Date)
	require.NotNil(t, notes[1].Date)
	assert.Equal(t, 9, notes[1].Date.Day())

	assert.Equal(t, dto.KindInvoiceNumber, refs[0].Kind)
	assert.Equal(t, "1106", refs[0].Code)
}

func TestParseReferencesLabeledList(t *testing.T) {
	text := "Albaranes: A25 487, A25 500 y A25 512 de 09/04/2025\nTotal 300,00"

	notes := DeliveryNoteReferences(ParseReferences(text))

	require.Len(t, notes, 3)
	assert.Equal(t, []string{"A25-0487", "A25-0500", "A25-0512"}, codes(notes))
	assert.Less(t, notes[0].Offset, notes[1].Offset)
	assert.Less(t, notes[1].Offset, notes[2].Offset)
	assert.Equal(t, "A25 500", notes[1].Raw)
	require.NotNil(t, notes[2].Date)
	assert.Equal(t, 9, notes[2].Date.Day())
}

func TestParseReferencesListStopsAtAmounts(t *testing.T) {
	notes := DeliveryNoteReferences(ParseReferences("Albarán A25 487, 120,00 EUR"))

	assert.Equal(t, []string{"A25-0487"}, codes(notes))
}

func TestParseReferencesConfusableAtNumberEnd(t *testing.T) {
	for _, text := range []string{
		"Albarán Num. A25 48| de 07/04/2025",
		"Albarán Num. A25 48! de 07/04/2025",
	} {
		notes := DeliveryNoteReferences(ParseReferences(text))

		require.Len(t, notes, 1, text)
		assert.Equal(t, "A25-0481", notes[0].Code, text)
		require.NotNil(t, notes[0].Date, text)
	}
}

func TestParseReferencesToleratesOCRConfusions(t *testing.T) {
	text := "Albaran A2S 48T de O7/O4/2O25 y Albaran 425 5OO de 08/04/2025"

	notes := DeliveryNoteReferences(ParseReferences(text))

	require.Len(t, notes, 2)
	assert.Equal(t, "A25-0487", notes[0].Code)
	require.NotNil(t, notes[0].Date)
	assert.Equal(t, time.April, notes[0].Date.Month())
	assert.Equal(t, "A25-0500", notes[1].Code)
}

func TestParseReferencesRepeatedCodeKept(t *testing.T) {
	text := "A25 999 de 01/04/2025 ... A25 487 de 02/04/2025 ... A25 999 de 01/04/2025"

	notes := DeliveryNoteReferences(ParseReferences(text))

	assert.Equal(t, []string{"A25-0999", "A25-0487", "A25-0999"}, codes(notes))
}

func TestParseReferencesIgnoresNoise(t *testing.T) {
	text := "ASSIST TECHNICAL SERVICES, total 1.234,56 EUR, Albaran pendiente"

	assert.Empty(t, DeliveryNoteReferences(ParseReferences(text)))
}

func TestParseReferencesIdempotent(t *testing.T) {
	text := "Albarán A25 487 de 07/04/2025\nA25 500 de 08/04/2025\nFactura 1106"

	first := ParseReferences(text)
	second := ParseReferences(text)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestParseInvoiceHeader(t *testing.T) {
	h := ParseInvoiceHeader("FACTURA\nNº FE#1106\nFecha factura: 07/10/2025\n")

	assert.Equal(t, "1106", h.Number)
	require.NotNil(t, h.Date)
	assert.Equal(t, "2025-10-07", h.Date.Format("2006-01-02"))
	assert.True(t, h.HasNumberAndDate())
}

func TestParseInvoiceHeaderMissingFields(t *testing.T) {
	h := ParseInvoiceHeader("Presupuesto sin numero")

	assert.Empty(t, h.Number)
	assert.Nil(t, h.Date)
	assert.False(t, h.HasNumberAndDate())
}

func TestParseDeliveryNoteCode(t *testing.T) {
	cases := map[string]string{
		"A25487.pdf":                  "A25-0487",
		"A25512.pdf":                  "A25-0512",
		"a25-1608 escaneado.pdf":      "A25-1608",
		"Albarán nº 0487.pdf":         "0487",
		"Albaran_12.pdf":              "0012",
		"Albarán: A25 1608 cliente X": "A25-1608",
		"A25487_escaneado.pdf":        "A25-0487",
		"Albaran_A25487.pdf":          "A25-0487",
		"A25-0487_firmado.pdf":        "A25-0487",
		"2025_04_A25512.pdf":          "A25-0512",
	}
	for in, want := range cases {
		got, ok := ParseDeliveryNoteCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseDeliveryNoteCode("scan_20251007.pdf")
	assert.False(t, ok)
}

func TestParseFileNameCode(t *testing.T) {
	cases := map[string]string{
		"0487.pdf":              "0487",
		"ALB 0487.pdf":          "0487",
		"alb-01608 firmado.pdf": "1608",
		"2025-04-07 0487.pdf":   "0487",
		"A25487_firmado.pdf":    "A25-0487",
		"Albarán nº 0512.pdf":   "0512",
	}
	for in, want := range cases {
		got, ok := ParseFileNameCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"escaneo_001.pdf", "scan_20251007.pdf", "2025-04-07.pdf", "notas.pdf"} {
		_, ok := ParseFileNameCode(in)
		assert.False(t, ok, in)
	}
}

func TestNormalizeCode(t *testing.T) {
	for _, in := range []string{"A25 487", "a25-0487", "A2S 48T", "A25487"} {
		got, ok := NormalizeCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, "A25-0487", got, in)
	}
	assert.Equal(t, "0487", CodeNumber("A25-0487"))
	assert.Equal(t, "0487", CodeNumber("0487"))
}

func TestCanonicalDigits(t *testing.T) {
	assert.Equal(t, "0152", CanonicalDigits("O1S2"))
	assert.Equal(t, "1078", CanonicalDigits("l O7B"))
	assert.Equal(t, 'A', CanonicalLetter('4'))
	assert.Equal(t, 'A', CanonicalLetter('a'))
}

func codes(refs []dto.Reference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Code)
	}
	return out
}
