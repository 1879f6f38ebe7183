package service

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// DecodeBarcodes returns the payloads of every QR code or Code 128/39 barcode
// gozxing can read in img. Unreadable images yield nil.
func DecodeBarcodes(img image.Image) []string {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	readers := []gozxing.Reader{
		qrcode.NewQRCodeReader(),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
	}

	var payloads []string
	for _, reader := range readers {
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			continue
		}
		if text := result.GetText(); text != "" {
			payloads = append(payloads, text)
		}
	}
	return payloads
}
