package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	CommandMerge  = "merge"
	CommandSplit  = "split"
	CommandRename = "rename"

	EngineGosseract = "gosseract"
	EngineCLI       = "cli"

	envPrefix = "ALBARANES"
)

var reportFormats = map[string]bool{"txt": true, "json": true, "xlsx": true}

type Config struct {
	Command       string
	Invoices      string
	DeliveryNotes string
	Output        string
	ConfigFile    string

	OCR    OCRConfig
	Index  IndexConfig
	Report ReportConfig
	Log    LogConfig
	Split  SplitConfig
}

// OCRConfig selects and tunes the OCR engine used for scanned pages.
type OCRConfig struct {
	Engine         string
	TesseractPath  string
	TessdataPrefix string
	Languages      []string
	MinTextChars   int
	PageTimeout    time.Duration
	Upscale        int
}

type IndexConfig struct {
	ContentSearch bool
	FileTimeout   time.Duration
	Extensions    []string
}

// ReportConfig controls where the run report goes. An empty Dir means the output dir.
type ReportConfig struct {
	Dir     string
	Formats []string
}

type LogConfig struct {
	File string
}

type SplitConfig struct {
	Input string
}

// LoadConfig reads configuration from flags, ALBARANES_* environment
// variables and an optional YAML file, in that order of precedence. The first
// argument may name the command; merge is the default.
func LoadConfig(args []string) (*Config, error) {
	command := CommandMerge
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}
	switch command {
	case CommandMerge, CommandSplit, CommandRename:
	default:
		return nil, fmt.Errorf("unknown command %q (want %s, %s or %s)", command, CommandMerge, CommandSplit, CommandRename)
	}

	fs := pflag.NewFlagSet("albaran-merge "+command, pflag.ContinueOnError)
	fs.String("config", "", "YAML configuration file")
	fs.String("invoices", "", "directory with the invoice PDFs")
	fs.String("albaranes", "", "root directory of the delivery-note PDFs (rename: the scans to rename)")
	fs.String("output", "", "directory for the merged, split or renamed PDFs")
	fs.String("input", "", "batch PDF to split (split only)")
	fs.String("ocr-engine", "", "OCR engine: cli (default) or gosseract")
	fs.String("tesseract", "", "tesseract binary used by the cli engine")
	fs.String("tessdata", "", "tessdata directory (sets TESSDATA_PREFIX)")
	fs.String("lang", "", "OCR languages, comma separated")
	fs.Bool("content-search", false, "read delivery notes whose file name carries no code")
	fs.String("report-dir", "", "directory for the run report (default: output dir)")
	fs.String("report-formats", "", "report formats, comma separated: txt, json, xlsx")
	fs.String("log-file", "", "also write the log to this file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("invoices", "")
	v.SetDefault("albaranes", "")
	v.SetDefault("output", "")

	// OCR defaults
	v.SetDefault("ocr.engine", EngineCLI)
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.tessdata_prefix", os.Getenv("TESSDATA_PREFIX"))
	v.SetDefault("ocr.languages", "spa")
	v.SetDefault("ocr.min_text_chars", 20)
	v.SetDefault("ocr.page_timeout", "60s")
	v.SetDefault("ocr.upscale", 2)

	// Index defaults
	v.SetDefault("index.content_search", false)
	v.SetDefault("index.file_timeout", "90s")
	v.SetDefault("index.extensions", ".pdf")

	v.SetDefault("report.dir", "")
	v.SetDefault("report.formats", "txt")
	v.SetDefault("log.file", "")
	v.SetDefault("split.input", "")

	envBindings := map[string]string{
		"invoices":             envPrefix + "_INVOICES",
		"albaranes":            envPrefix + "_ALBARANES",
		"output":               envPrefix + "_OUTPUT",
		"ocr.engine":           envPrefix + "_OCR_ENGINE",
		"ocr.tesseract_path":   envPrefix + "_OCR_TESSERACT_PATH",
		"ocr.tessdata_prefix":  envPrefix + "_OCR_TESSDATA_PREFIX",
		"ocr.languages":        envPrefix + "_OCR_LANGUAGES",
		"ocr.min_text_chars":   envPrefix + "_OCR_MIN_TEXT_CHARS",
		"ocr.page_timeout":     envPrefix + "_OCR_PAGE_TIMEOUT",
		"ocr.upscale":          envPrefix + "_OCR_UPSCALE",
		"index.content_search": envPrefix + "_INDEX_CONTENT_SEARCH",
		"index.file_timeout":   envPrefix + "_INDEX_FILE_TIMEOUT",
		"index.extensions":     envPrefix + "_INDEX_EXTENSIONS",
		"report.dir":           envPrefix + "_REPORT_DIR",
		"report.formats":       envPrefix + "_REPORT_FORMATS",
		"log.file":             envPrefix + "_LOG_FILE",
		"split.input":          envPrefix + "_SPLIT_INPUT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	flagBindings := map[string]string{
		"invoices":             "invoices",
		"albaranes":            "albaranes",
		"output":               "output",
		"split.input":          "input",
		"ocr.engine":           "ocr-engine",
		"ocr.tesseract_path":   "tesseract",
		"ocr.tessdata_prefix":  "tessdata",
		"ocr.languages":        "lang",
		"index.content_search": "content-search",
		"report.dir":           "report-dir",
		"report.formats":       "report-formats",
		"log.file":             "log-file",
	}
	for key, name := range flagBindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return &Config{
		Command:       command,
		Invoices:      v.GetString("invoices"),
		DeliveryNotes: v.GetString("albaranes"),
		Output:        v.GetString("output"),
		ConfigFile:    configFile,
		OCR: OCRConfig{
			Engine:         strings.ToLower(v.GetString("ocr.engine")),
			TesseractPath:  v.GetString("ocr.tesseract_path"),
			TessdataPrefix: v.GetString("ocr.tessdata_prefix"),
			Languages:      stringList(v, "ocr.languages"),
			MinTextChars:   v.GetInt("ocr.min_text_chars"),
			PageTimeout:    v.GetDuration("ocr.page_timeout"),
			Upscale:        v.GetInt("ocr.upscale"),
		},
		Index: IndexConfig{
			ContentSearch: v.GetBool("index.content_search"),
			FileTimeout:   v.GetDuration("index.file_timeout"),
			Extensions:    stringList(v, "index.extensions"),
		},
		Report: ReportConfig{
			Dir:     v.GetString("report.dir"),
			Formats: stringList(v, "report.formats"),
		},
		Log:   LogConfig{File: v.GetString("log.file")},
		Split: SplitConfig{Input: v.GetString("split.input")},
	}, nil
}

// stringList accepts both a YAML list and a comma-separated string.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ReportDir returns the directory the run report is written to.
func (c *Config) ReportDir() string {
	if c.Report.Dir != "" {
		return c.Report.Dir
	}
	return c.Output
}

// Validate checks the settings needed by the selected command. All problems
// are returned together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Command {
	case CommandMerge:
		errs = append(errs, requireDir("invoices", c.Invoices), requireDir("albaranes", c.DeliveryNotes))
	case CommandRename:
		errs = append(errs, requireDir("albaranes", c.DeliveryNotes))
	case CommandSplit:
		if c.Split.Input == "" {
			errs = append(errs, errors.New("input is required"))
		} else if info, err := os.Stat(c.Split.Input); err != nil {
			errs = append(errs, fmt.Errorf("input: %w", err))
		} else if info.IsDir() {
			errs = append(errs, fmt.Errorf("input: %s is a directory", c.Split.Input))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown command %q", c.Command))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}

	if c.OCR.Engine != EngineGosseract && c.OCR.Engine != EngineCLI {
		errs = append(errs, fmt.Errorf("ocr.engine: unknown engine %q", c.OCR.Engine))
	}
	if len(c.OCR.Languages) == 0 {
		errs = append(errs, errors.New("ocr.languages must not be empty"))
	}
	if c.OCR.MinTextChars < 0 {
		errs = append(errs, errors.New("ocr.min_text_chars must not be negative"))
	}
	if c.OCR.PageTimeout <= 0 {
		errs = append(errs, errors.New("ocr.page_timeout must be positive"))
	}
	if c.OCR.Upscale < 1 {
		errs = append(errs, errors.New("ocr.upscale must be at least 1"))
	}
	if c.Index.FileTimeout <= 0 {
		errs = append(errs, errors.New("index.file_timeout must be positive"))
	}
	if len(c.Index.Extensions) == 0 {
		errs = append(errs, errors.New("index.extensions must not be empty"))
	}
	for _, f := range c.Report.Formats {
		if !reportFormats[strings.ToLower(strings.TrimPrefix(f, "."))] {
			errs = append(errs, fmt.Errorf("report.formats: unknown format %q", f))
		}
	}
	return errors.Join(errs...)
}

func requireDir(key, dir string) error {
	if dir == "" {
		return fmt.Errorf("%s is required", key)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %s is not a directory", key, dir)
	}
	return nil
}
