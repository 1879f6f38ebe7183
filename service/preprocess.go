package service

import (
	"bytes"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// Upscaling stops once the scaled width would exceed this many pixels.
const maxUpscaledWidth = 5000

// Box on the first page of a delivery note where its code is printed, in
// centimetres from the top-left corner. The crop adds codeBoxPadCM on each side.
const (
	codeBoxLeftCM   = 1.1
	codeBoxTopCM    = 5.6
	codeBoxRightCM  = 7.4
	codeBoxBottomCM = 6.9
	codeBoxPadCM    = 0.2

	cmPerPoint = 2.54 / 72
	a4WidthCM  = 21.0
	a4HeightCM = 29.7
)

// PrepareForOCR converts img to grayscale, upscales small scans and stretches
// contrast to the full 0-255 range.
func PrepareForOCR(img image.Image, scale int) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	if scale > 1 && b.Dx()*scale <= maxUpscaledWidth {
		scaled := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Src, nil)
		gray = scaled
	}

	stretchContrast(gray)
	return gray
}

func stretchContrast(img *image.Gray) {
	if len(img.Pix) == 0 {
		return
	}
	lo, hi := uint8(255), uint8(0)
	for _, p := range img.Pix {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return
	}
	span := int(hi) - int(lo)
	for i, p := range img.Pix {
		img.Pix[i] = uint8((int(p) - int(lo)) * 255 / span)
	}
}

// encodePNG is the wire format handed to OCR engines.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// largestImage picks the page raster out of the images embedded in a page.
func largestImage(images []image.Image) image.Image {
	var best image.Image
	bestArea := -1
	for _, img := range images {
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	return best
}

// codeBox maps the code box onto a raster of the first page. pageWidth and
// pageHeight are the page size in points; zero means A4.
func codeBox(bounds image.Rectangle, pageWidth, pageHeight float64) image.Rectangle {
	widthCM, heightCM := a4WidthCM, a4HeightCM
	if pageWidth > 0 && pageHeight > 0 {
		widthCM, heightCM = pageWidth*cmPerPoint, pageHeight*cmPerPoint
	}
	sx := float64(bounds.Dx()) / widthCM
	sy := float64(bounds.Dy()) / heightCM
	box := image.Rect(
		bounds.Min.X+int(math.Max(0, codeBoxLeftCM-codeBoxPadCM)*sx),
		bounds.Min.Y+int(math.Max(0, codeBoxTopCM-codeBoxPadCM)*sy),
		bounds.Min.X+int(math.Ceil((codeBoxRightCM+codeBoxPadCM)*sx)),
		bounds.Min.Y+int(math.Ceil((codeBoxBottomCM+codeBoxPadCM)*sy)),
	)
	return box.Intersect(bounds)
}

// cropImage copies r out of img into a new image anchored at the origin.
func cropImage(img image.Image, r image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
