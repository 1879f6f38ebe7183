package client

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/Aashish23092/albaran-merge/dto"
	"github.com/otiai10/gosseract/v2"
)

// maxPendingCalls bounds the OCR calls running at once, abandoned ones
// included. A hung call therefore blocks later calls instead of piling up.
const maxPendingCalls = 1

// TesseractClient runs Tesseract in-process through gosseract.
type TesseractClient struct {
	dataPath  string
	languages []string

	slots     chan struct{}
	run       func(img []byte) (*dto.OCRResult, error)
	abandoned atomic.Int64
}

func NewTesseractClient(dataPath string, languages []string) *TesseractClient {
	if len(languages) == 0 {
		languages = []string{"spa"}
	}
	tc := &TesseractClient{
		dataPath:  dataPath,
		languages: languages,
		slots:     make(chan struct{}, maxPendingCalls),
	}
	tc.run = tc.recognize
	return tc
}

func (tc *TesseractClient) Name() string { return "gosseract" }

// Recognize runs OCR on an encoded image. The cgo call cannot be interrupted,
// so on context expiry the result is abandoned and ctx.Err() is returned. The
// abandoned call keeps its slot until tesseract returns; while no slot is
// free, Recognize waits for one until ctx expires.
func (tc *TesseractClient) Recognize(ctx context.Context, img []byte) (*dto.OCRResult, error) {
	select {
	case tc.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("gosseract busy with an abandoned call: %w", ctx.Err())
	}

	type outcome struct {
		res *dto.OCRResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-tc.slots }()
		res, err := tc.run(img)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		n := tc.abandoned.Add(1)
		log.Printf("tesseract: abandoned OCR call after %v (%d in this run), it holds its slot until tesseract returns", ctx.Err(), n)
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

// Abandoned reports how many calls returned before tesseract finished.
func (tc *TesseractClient) Abandoned() int64 {
	return tc.abandoned.Load()
}

func (tc *TesseractClient) recognize(img []byte) (*dto.OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if tc.dataPath != "" {
		client.SetTessdataPrefix(tc.dataPath)
	}
	if err := client.SetLanguage(tc.languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	res := &dto.OCRResult{Text: text}

	// Line boxes feed the client-name zone lookup; text is still usable without them.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		log.Printf("tesseract: bounding boxes unavailable: %v", err)
		return res, nil
	}

	var totalConf float64
	for _, box := range boxes {
		line := strings.TrimSpace(box.Word)
		if line == "" {
			continue
		}
		res.Lines = append(res.Lines, dto.TextBlock{
			X0:   float64(box.Box.Min.X),
			Y0:   float64(box.Box.Min.Y),
			X1:   float64(box.Box.Max.X),
			Y1:   float64(box.Box.Max.Y),
			Text: line,
		})
		totalConf += box.Confidence
	}
	if len(res.Lines) > 0 {
		res.Confidence = totalConf / float64(len(res.Lines))
	}
	return res, nil
}
