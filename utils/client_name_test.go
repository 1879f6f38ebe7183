package utils

import (
	"testing"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/stretchr/testify/assert"
)

const (
	a4Width  = 595.0
	a4Height = 842.0
)

func TestExtractClientNameFromClientBox(t *testing.T) {
	blocks := []dto.TextBlock{
		{X0: 40, Y0: 40, X1: 250, Y1: 60, Text: "TRANSPORTES DEL NORTE SL\nC/ Mayor 1"},
		{X0: 330, Y0: 60, X1: 560, Y1: 80, Text: "FACTURA"},
		{X0: 330, Y0: 110, X1: 560, Y1: 180, Text: "Construcciones García, S.L.\nAvda. Castilla 12\n28001 Madrid"},
		{X0: 40, Y0: 700, X1: 560, Y1: 720, Text: "Total 1.234,56"},
	}

	name, ok := ExtractClientName(blocks, a4Width, a4Height)

	assert.True(t, ok)
	assert.Equal(t, "CONSTRUCCIONES GARCIA", name)
}

func TestExtractClientNameSkipsLabels(t *testing.T) {
	blocks := []dto.TextBlock{
		{X0: 300, Y0: 100, X1: 560, Y1: 160, Text: "CLIENTE:\nNIF: B12345678\nHERMANOS PEREZ SLU"},
	}

	name, ok := ExtractClientName(blocks, a4Width, a4Height)

	assert.True(t, ok)
	assert.Equal(t, "HERMANOS PEREZ", name)
}

func TestExtractClientNameSkipsNumberedLabels(t *testing.T) {
	for _, label := range []string{"Nº FACTURA: 1106", "N° FACTURA: 1106", "Nº PEDIDO: 55", "FECHA FACTURA: 07/10/2025"} {
		blocks := []dto.TextBlock{
			{X0: 300, Y0: 100, X1: 560, Y1: 160, Text: label + "\nHERMANOS GARCIA SL"},
		}

		name, ok := ExtractClientName(blocks, a4Width, a4Height)

		assert.True(t, ok, label)
		assert.Equal(t, "HERMANOS GARCIA", name, label)
	}
}

func TestIsSectionLabelKeepsNamesWithLabelWords(t *testing.T) {
	assert.True(t, isSectionLabel("Nº FACTURA:"))
	assert.True(t, isSectionLabel("Nº. Factura: FE#1106"))
	assert.False(t, isSectionLabel("COPIA Y MAS S.L."))
	assert.False(t, isSectionLabel("FACTURAS RAPIDAS SA"))
}

func TestExtractClientNameUpperCaseFallback(t *testing.T) {
	blocks := []dto.TextBlock{
		{X0: 40, Y0: 20, X1: 200, Y1: 40, Text: "Emisor de ejemplo"},
		{X0: 40, Y0: 250, X1: 250, Y1: 270, Text: "Cliente\nALUMINIOS SUR SA"},
	}

	name, ok := ExtractClientName(blocks, a4Width, a4Height)

	assert.True(t, ok)
	assert.Equal(t, "ALUMINIOS SUR", name)
}

func TestExtractClientNameAbsent(t *testing.T) {
	blocks := []dto.TextBlock{
		{X0: 330, Y0: 60, X1: 560, Y1: 80, Text: "FACTURA"},
		{X0: 40, Y0: 500, X1: 300, Y1: 520, Text: "EMPRESA LEJANA SL"},
		{X0: 40, Y0: 100, X1: 300, Y1: 120, Text: "minusculas solo"},
	}

	name, ok := ExtractClientName(blocks, a4Width, a4Height)

	assert.False(t, ok)
	assert.Empty(t, name)

	_, ok = ExtractClientName(blocks, 0, 0)
	assert.False(t, ok)
}

func TestCleanClientName(t *testing.T) {
	cases := map[string]string{
		"Construcciones García, S.L.": "CONSTRUCCIONES GARCIA",
		"ACME S.A.U.":                 "ACME",
		"Talleres  Unidos   SCOOP":    "TALLERES UNIDOS",
		`Import/Export "Sol" SL`:      "IMPORT_EXPORT _SOL_",
		"S.L.":                        "",
		"  ":                          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanClientName(in), in)
	}
}

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "Albaran", FoldDiacritics("Albarán"))
	assert.Equal(t, "Pena", FoldDiacritics("Peña"))
}
