package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Aashish23092/albaran-merge/client"
	"github.com/Aashish23092/albaran-merge/config"
	"github.com/Aashish23092/albaran-merge/service"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration:\n%v", err)
	}

	if cfg.Log.File != "" {
		logFile, err := os.Create(cfg.Log.File)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}

	// Tesseract reads its language data location from the environment.
	if cfg.OCR.TessdataPrefix != "" {
		os.Setenv("TESSDATA_PREFIX", cfg.OCR.TessdataPrefix)
		log.Println("TESSDATA_PREFIX set to:", cfg.OCR.TessdataPrefix)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pdfProcessor := service.NewPDFProcessor()
	extractor := service.NewTextExtractor(pdfProcessor, newOCREngine(cfg), service.ExtractorOptions{
		MinTextChars: cfg.OCR.MinTextChars,
		PageTimeout:  cfg.OCR.PageTimeout,
		Upscale:      cfg.OCR.Upscale,
	})

	switch cfg.Command {
	case config.CommandSplit:
		err = runSplit(ctx, cfg, pdfProcessor, extractor)
	case config.CommandRename:
		err = runRename(ctx, cfg, pdfProcessor, extractor)
	default:
		err = runMerge(ctx, cfg, pdfProcessor, extractor)
	}
	if err != nil {
		log.Printf("Finished with errors: %v", err)
		stop()
		os.Exit(1)
	}
}

func newOCREngine(cfg *config.Config) service.OCREngine {
	if cfg.OCR.Engine == config.EngineCLI {
		log.Printf("Using tesseract CLI engine (%s, languages %v)", cfg.OCR.TesseractPath, cfg.OCR.Languages)
		return client.NewTesseractCLIClient(cfg.OCR.TesseractPath, cfg.OCR.TessdataPrefix, cfg.OCR.Languages)
	}
	log.Printf("Using gosseract engine (languages %v)", cfg.OCR.Languages)
	return client.NewTesseractClient(cfg.OCR.TessdataPrefix, cfg.OCR.Languages)
}

func runMerge(ctx context.Context, cfg *config.Config, pdf service.PDFProcessor, extractor *service.TextExtractor) error {
	mergeService := service.NewMergeService(pdf, extractor)
	report, runErr := mergeService.Run(ctx, service.RunRequest{
		InvoiceDir:       cfg.Invoices,
		DeliveryNoteRoot: cfg.DeliveryNotes,
		OutputDir:        cfg.Output,
		Index: service.IndexOptions{
			ContentSearch: cfg.Index.ContentSearch,
			FileTimeout:   cfg.Index.FileTimeout,
			Extensions:    cfg.Index.Extensions,
		},
	})
	if report == nil {
		return runErr
	}

	written, reportErr := service.NewReportWriter(cfg.ReportDir(), cfg.Report.Formats).Write(report)
	for _, p := range written {
		log.Printf("Report written to %s", p)
	}

	log.Printf("Processed %d invoices, merged %d, %d OCR calls", report.Processed, report.Merged, extractor.OCRCalls())
	if report.HasIssues() {
		log.Printf("Review needed: %d missing, %d duplicates, %d orphans, %d failures, %d skipped",
			len(report.Missing), len(report.Duplicates), len(report.Orphans), len(report.Failures), len(report.Skipped))
	}
	return errors.Join(runErr, reportErr)
}

func runSplit(ctx context.Context, cfg *config.Config, pdf service.PDFProcessor, extractor *service.TextExtractor) error {
	outputs, err := service.NewSplitter(pdf, extractor).Split(ctx, cfg.Split.Input, cfg.Output)
	log.Printf("Split %s into %d files", cfg.Split.Input, len(outputs))
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	return nil
}

func runRename(ctx context.Context, cfg *config.Config, pdf service.PDFProcessor, extractor *service.TextExtractor) error {
	renamer := service.NewRenamer(service.NewContentMatcher(extractor, pdf), cfg.Index.FileTimeout)
	outcomes, err := renamer.Rename(ctx, cfg.DeliveryNotes, cfg.Output)

	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", o.Source, o.Err))
		}
	}
	log.Printf("Renamed %d of %d delivery notes into %s", len(outcomes)-len(failed), len(outcomes), cfg.Output)
	if len(failed) > 0 {
		log.Printf("No code found, review by hand:\n  %s", strings.Join(failed, "\n  "))
	}
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
