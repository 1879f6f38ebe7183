package service

import (
	"image"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBarcodesQR(t *testing.T) {
	matrix, err := qrcode.NewQRCodeWriter().Encode("Albaran A25 1608", gozxing.BarcodeFormat_QR_CODE, 250, 250, nil)
	require.NoError(t, err)

	payloads := DecodeBarcodes(matrix)

	assert.Contains(t, payloads, "Albaran A25 1608")
}

func TestDecodeBarcodesBlankImage(t *testing.T) {
	assert.Empty(t, DecodeBarcodes(image.NewGray(image.Rect(0, 0, 100, 100))))
}
