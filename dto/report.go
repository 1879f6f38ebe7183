package dto

import (
	"sort"
	"time"
)

// CodeIndex is the read-only view of the delivery-note index needed to compute orphans.
type CodeIndex interface {
	Codes() []string
	// Paths returns the files indexed under exactly this key.
	Paths(code string) []string
}

type InvoiceOutcome struct {
	Invoice    string      `json:"invoice"`
	Output     string      `json:"output,omitempty"`
	Merged     bool        `json:"merged"`
	Match      MatchResult `json:"match"`
	Missing    []string    `json:"missing,omitempty"`
	Duplicates []string    `json:"duplicates,omitempty"`
	Failure    string      `json:"failure,omitempty"`
	Notes      []string    `json:"notes,omitempty"`
}

type MissingEntry struct {
	Invoice string `json:"invoice"`
	Code    string `json:"code"`
}

type DuplicateEntry struct {
	Code     string   `json:"code"`
	Chosen   string   `json:"chosen"`
	Paths    []string `json:"paths"`
	Invoices []string `json:"invoices"`
}

type OrphanEntry struct {
	Code  string   `json:"code"`
	Paths []string `json:"paths"`
}

type FailureEntry struct {
	Invoice string `json:"invoice"`
	Path    string `json:"path,omitempty"`
	Reason  string `json:"reason"`
}

type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RunReport aggregates the outcome of one batch run.
type RunReport struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	InvoiceDir       string    `json:"invoice_dir"`
	DeliveryNoteRoot string    `json:"delivery_note_root"`
	OutputDir        string    `json:"output_dir"`
	ContentSearch    bool      `json:"content_search"`
	IndexedCodes     int       `json:"indexed_codes"`

	Processed  int              `json:"processed"`
	Merged     int              `json:"merged"`
	Invoices   []InvoiceOutcome `json:"invoices"`
	Missing    []MissingEntry   `json:"missing"`
	Duplicates []DuplicateEntry `json:"duplicates"`
	Orphans    []OrphanEntry    `json:"orphans"`
	Failures   []FailureEntry   `json:"failures"`
	Skipped    []SkippedFile    `json:"skipped"`

	matched     map[string]bool
	matchedPath map[string]bool
	duplicate   map[string]int
}

// Record adds one invoice outcome. Missing and duplicate codes are taken from
// the outcome's MatchResult, each listed once per invoice.
func (r *RunReport) Record(o InvoiceOutcome) {
	if r.matched == nil {
		r.matched = make(map[string]bool)
		r.matchedPath = make(map[string]bool)
		r.duplicate = make(map[string]int)
	}

	o.Missing = o.Match.MissingCodes()
	o.Duplicates = o.Match.DuplicateCodes()

	r.Processed++
	if o.Merged {
		r.Merged++
	}
	for _, code := range o.Missing {
		r.Missing = append(r.Missing, MissingEntry{Invoice: o.Invoice, Code: code})
	}
	for _, m := range o.Match.Matches {
		if m.Path == "" {
			continue
		}
		r.matched[m.Reference.Code] = true
		r.matchedPath[m.Path] = true
		if m.Status != StatusDuplicate {
			continue
		}
		idx, ok := r.duplicate[m.Reference.Code]
		if !ok {
			r.duplicate[m.Reference.Code] = len(r.Duplicates)
			r.Duplicates = append(r.Duplicates, DuplicateEntry{
				Code:     m.Reference.Code,
				Chosen:   m.Path,
				Paths:    append([]string(nil), m.Candidates...),
				Invoices: []string{o.Invoice},
			})
			continue
		}
		entry := &r.Duplicates[idx]
		if entry.Invoices[len(entry.Invoices)-1] != o.Invoice {
			entry.Invoices = append(entry.Invoices, o.Invoice)
		}
	}
	if o.Failure != "" {
		r.Failures = append(r.Failures, FailureEntry{Invoice: o.Invoice, Reason: o.Failure})
	}
	r.Invoices = append(r.Invoices, o)
}

// RecordFailure adds a failure that is not tied to a whole invoice, such as a
// delivery note that could not be read during the merge.
func (r *RunReport) RecordFailure(invoice, path, reason string) {
	r.Failures = append(r.Failures, FailureEntry{Invoice: invoice, Path: path, Reason: reason})
}

// Finalize computes orphans against the index and stamps the finish time. A
// code is an orphan when neither it nor any of its files was used.
func (r *RunReport) Finalize(index CodeIndex, finishedAt time.Time) {
	r.FinishedAt = finishedAt
	r.Orphans = nil
	if index == nil {
		return
	}
	codes := index.Codes()
	r.IndexedCodes = len(codes)
	for _, code := range codes {
		if r.matched[code] {
			continue
		}
		paths := index.Paths(code)
		if r.anyPathMatched(paths) {
			continue
		}
		r.Orphans = append(r.Orphans, OrphanEntry{Code: code, Paths: paths})
	}
	sort.Slice(r.Orphans, func(i, j int) bool { return r.Orphans[i].Code < r.Orphans[j].Code })
}

func (r *RunReport) anyPathMatched(paths []string) bool {
	for _, p := range paths {
		if r.matchedPath[p] {
			return true
		}
	}
	return false
}

// HasIssues reports whether anything in the run needs operator review.
func (r *RunReport) HasIssues() bool {
	return len(r.Missing) > 0 || len(r.Duplicates) > 0 || len(r.Failures) > 0 || len(r.Skipped) > 0
}
