package client

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Aashish23092/albaran-merge/dto"
)

// TesseractCLIClient shells out to the tesseract binary. Unlike the in-process
// client, a timed-out call kills the child process.
type TesseractCLIClient struct {
	binary    string
	dataPath  string
	languages []string
}

func NewTesseractCLIClient(binary, dataPath string, languages []string) *TesseractCLIClient {
	if binary == "" {
		binary = "tesseract"
	}
	if len(languages) == 0 {
		languages = []string{"spa"}
	}
	return &TesseractCLIClient{
		binary:    binary,
		dataPath:  dataPath,
		languages: languages,
	}
}

func (c *TesseractCLIClient) Name() string { return "tesseract-cli" }

// Recognize writes the image to a temp file and runs tesseract with TSV output.
func (c *TesseractCLIClient) Recognize(ctx context.Context, img []byte) (*dto.OCRResult, error) {
	tempFile, err := saveTempImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to save temp image: %w", err)
	}
	defer os.Remove(tempFile)

	args := []string{tempFile, "stdout", "-l", strings.Join(c.languages, "+"), "--psm", "3"}
	if c.dataPath != "" {
		args = append(args, "--tessdata-dir", c.dataPath)
	}
	args = append(args, "tsv")

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tesseract command failed: %v, stderr: %s", err, stderr.String())
	}

	return ParseTSV(stdout.String()), nil
}

// ParseTSV folds tesseract TSV word rows into lines. Lines of the same block
// are joined with newlines; blocks are separated by a blank line.
func ParseTSV(tsv string) *dto.OCRResult {
	type lineKey struct{ block, par, line int }

	res := &dto.OCRResult{}
	var (
		order   []lineKey
		lines   = make(map[lineKey]*dto.TextBlock)
		words   = make(map[lineKey][]string)
		conf    float64
		counted int
	)

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 && strings.HasPrefix(row, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		n := make([]int, 10)
		for j := 1; j <= 9; j++ {
			n[j], _ = strconv.Atoi(cols[j])
		}
		if wc, err := strconv.ParseFloat(cols[10], 64); err == nil && wc >= 0 {
			conf += wc
			counted++
		}

		key := lineKey{block: n[2], par: n[3], line: n[4]}
		left, top, width, height := float64(n[6]), float64(n[7]), float64(n[8]), float64(n[9])
		b, ok := lines[key]
		if !ok {
			b = &dto.TextBlock{X0: left, Y0: top, X1: left + width, Y1: top + height}
			lines[key] = b
			order = append(order, key)
		}
		b.X0 = min(b.X0, left)
		b.Y0 = min(b.Y0, top)
		b.X1 = max(b.X1, left+width)
		b.Y1 = max(b.Y1, top+height)
		words[key] = append(words[key], text)
	}

	var sb strings.Builder
	prevBlock := -1
	for _, key := range order {
		b := lines[key]
		b.Text = strings.Join(words[key], " ")
		res.Lines = append(res.Lines, *b)

		if prevBlock != -1 {
			if key.block != prevBlock {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString("\n")
			}
		}
		sb.WriteString(b.Text)
		prevBlock = key.block
	}
	res.Text = sb.String()
	if counted > 0 {
		res.Confidence = conf / float64(counted)
	}
	return res
}

func saveTempImage(img []byte) (string, error) {
	tempFile, err := os.CreateTemp("", "albaran-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := tempFile.Write(img); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return tempFile.Name(), nil
}
