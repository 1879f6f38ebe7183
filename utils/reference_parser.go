package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aashish23092/albaran-merge/dto"
)

const codeNumberWidth = 4

var (
	datePattern = fmt.Sprintf(`(%[1]s{1,2}[/\-.]%[1]s{1,2}[/\-.]%[1]s{2,4})`, digitLike)

	// "Albarán Num. A25 487 de 07/04/2025", "ALBARAN Nº A25-0487", "Albaranes: A2S 48T", "Albaran_A25487"
	labeledNoteRe = regexp.MustCompile(fmt.Sprintf(
		`(?i:albar[aá]n(?:es)?)[\s:._]*(?:(?i:n[uú]m(?:ero)?|n[º°o])\.?[\s:._]*)?([A4a])\s*(%[1]s{2})[\s\-_.]*(%[1]s{1,5})(?:\s*(?:(?i:del?|fecha)|[-,])?\s*%[2]s)?`,
		digitLike, datePattern))

	// Further codes listed after a label: ", A25 500", " y A25 512 de 09/04/2025".
	listedNoteRe = regexp.MustCompile(fmt.Sprintf(
		`^(?:\s*[,;/&+\-]\s*|\s+(?i:y|e)\s+)([A4a])\s*(%[1]s{2})[\s\-_.]*(%[1]s{1,5})(?:\s*(?:(?i:del?|fecha)|[-,])?\s*%[2]s)?`,
		digitLike, datePattern))

	// "A25 487 de 07/04/2025" without a label; the date is mandatory here.
	bareNoteRe = regexp.MustCompile(fmt.Sprintf(
		`([Aa])\s?(%[1]s{2})[\s\-]*(%[1]s{1,5})\s*(?i:del?)\s+%[2]s`,
		digitLike, datePattern))

	// "Factura: 1106", "FACTURA Nº FE#1106"
	invoiceNumberRe = regexp.MustCompile(fmt.Sprintf(
		`(?i:factura)[\s:]*(?:(?i:n[uú]m(?:ero)?|n[º°o])\.?[\s:]*)?(?:(?i:fe)\s*#?\s*)?(%[1]s{1,6})`,
		digitLike))
	feNumberRe = regexp.MustCompile(fmt.Sprintf(`(?i:fe)\s*#\s*(%[1]s{1,6})`, digitLike))

	invoiceDateRe = regexp.MustCompile(fmt.Sprintf(`(?i:fecha)(?:\s+(?i:factura))?[\s:]*%s`, datePattern))

	// Codes found in file names or delivery-note content.
	seriesCodeRe = regexp.MustCompile(fmt.Sprintf(`([Aa])\s?(%[1]s{2})[\s\-_.]*(%[1]s{1,5})`, digitLike))
	seriesLessRe = regexp.MustCompile(`(?i:albar[aá]n)[^0-9A-Za-z]*(?:(?i:n[uú]m|n[º°o])\.?)?[^0-9A-Za-z]*([0-9]{1,5})`)

	// File names and the code box only: a standalone padded number ("0487.pdf", "ALB 0487.pdf").
	loneNumberRe  = regexp.MustCompile(`[0-9]{4,5}`)
	numericDateRe = regexp.MustCompile(`[0-9]{1,4}[-_./][0-9]{1,2}[-_./][0-9]{1,4}`)
)

type referenceRule struct {
	kind  dto.ReferenceKind
	re    *regexp.Regexp
	build func(text string, loc []int) (dto.Reference, bool)
	// number is the submatch holding the identifier's digits; it must not run
	// into a letter or digit.
	number int
	// list rules also take the codes listed after the first one.
	list bool
}

var referenceRules = []referenceRule{
	{kind: dto.KindDeliveryNote, re: labeledNoteRe, build: buildNoteReference, number: 3, list: true},
	{kind: dto.KindDeliveryNote, re: bareNoteRe, build: buildNoteReference, number: 3},
	{kind: dto.KindInvoiceNumber, re: feNumberRe, build: buildInvoiceReference, number: 1},
	{kind: dto.KindInvoiceNumber, re: invoiceNumberRe, build: buildInvoiceReference, number: 1},
}

// ParseReferences returns every identifier found in text, ordered by where it
// first appears. Overlapping matches from different rules are collapsed to the
// earliest one. A delivery note referenced twice is returned twice.
func ParseReferences(text string) []dto.Reference {
	type span struct {
		start, end int
		ref        dto.Reference
	}
	var spans []span
	for _, rule := range referenceRules {
		for _, loc := range findDelimited(rule.re, text, rule.number) {
			ref, ok := rule.build(text, loc)
			if !ok {
				continue
			}
			ref.Kind = rule.kind
			ref.Offset = loc[0]
			spans = append(spans, span{start: loc[0], end: loc[1], ref: ref})

			for end := loc[1]; rule.list; {
				m := listedNoteRe.FindStringSubmatchIndex(text[end:])
				if m == nil {
					break
				}
				for i := range m {
					if m[i] >= 0 {
						m[i] += end
					}
				}
				if !delimitedAfter(text, m[7]) {
					break
				}
				item, ok := buildNoteReference(text, m)
				if !ok {
					break
				}
				item.Kind = rule.kind
				item.Offset = m[2]
				item.Raw = text[m[2]:m[1]]
				spans = append(spans, span{start: m[2], end: m[1], ref: item})
				end = m[1]
			}
		}
	}

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	refs := make([]dto.Reference, 0, len(spans))
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		refs = append(refs, s.ref)
		lastEnd = s.end
	}
	return refs
}

// findDelimited returns the matches of re that neither start nor end (at
// submatch group) inside a run of ASCII letters and digits. Unlike \b it
// treats '_' as a separator, so "A25487_firmado" still yields a code. A
// rejected match is retried one rune further on.
func findDelimited(re *regexp.Regexp, s string, group int) [][]int {
	var out [][]int
	for pos := 0; pos <= len(s); {
		loc := re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		if delimitedBefore(s, loc[0]) && delimitedAfter(s, loc[2*group+1]) {
			out = append(out, loc)
			if loc[1] > loc[0] {
				pos = loc[1]
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(s[loc[0]:])
		pos = loc[0] + max(size, 1)
	}
	return out
}

func delimitedBefore(s string, i int) bool {
	return i <= 0 || !isASCIIAlnum(s[i-1])
}

func delimitedAfter(s string, i int) bool {
	return i < 0 || i >= len(s) || !isASCIIAlnum(s[i])
}

func isASCIIAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// DeliveryNoteReferences filters refs down to delivery-note references, keeping order.
func DeliveryNoteReferences(refs []dto.Reference) []dto.Reference {
	var out []dto.Reference
	for _, r := range refs {
		if r.Kind == dto.KindDeliveryNote {
			out = append(out, r)
		}
	}
	return out
}

// ParseInvoiceHeader extracts the invoice number and date from invoice text.
// The client name comes from page layout, see ExtractClientName.
func ParseInvoiceHeader(text string) dto.InvoiceHeader {
	var h dto.InvoiceHeader
	for _, r := range ParseReferences(text) {
		if r.Kind == dto.KindInvoiceNumber {
			h.Number = r.Code
			break
		}
	}
	if m := invoiceDateRe.FindStringSubmatch(text); len(m) > 1 {
		h.Date = parseDate(m[1])
	}
	return h
}

// ParseDeliveryNoteCode finds the first delivery-note code in a file name or
// in the text of a delivery note. Codes without a series ("Albarán nº 0487")
// are returned as the bare padded number.
func ParseDeliveryNoteCode(s string) (string, bool) {
	for _, r := range ParseReferences(s) {
		if r.Kind == dto.KindDeliveryNote {
			return r.Code, true
		}
	}
	if code, ok := NormalizeCode(s); ok {
		return code, true
	}
	for _, loc := range findDelimited(seriesLessRe, s, 1) {
		return padNumber(s[loc[2]:loc[3]]), true
	}
	return "", false
}

// ParseFileNameCode reads the delivery-note code from a file name. On top of
// what ParseDeliveryNoteCode accepts, a lone padded number ("0487.pdf",
// "ALB 0487.pdf") is taken as a code without series. Dates are ignored.
func ParseFileNameCode(name string) (string, bool) {
	return parseCodeOrNumber(strings.TrimSuffix(name, filepath.Ext(name)))
}

// ParseCodeBoxText reads the code OCR'd from the box on a delivery note's
// first page where the code is printed. Since nothing else is printed there, a
// lone 4 or 5 digit number counts as a code without series.
func ParseCodeBoxText(text string) (string, bool) {
	return parseCodeOrNumber(text)
}

func parseCodeOrNumber(s string) (string, bool) {
	if code, ok := ParseDeliveryNoteCode(s); ok {
		return code, true
	}
	s = numericDateRe.ReplaceAllString(s, " ")
	for _, loc := range findDelimited(loneNumberRe, s, 0) {
		return padNumber(strings.TrimLeft(s[loc[0]:loc[1]], "0")), true
	}
	return "", false
}

// NormalizeCode canonicalizes a free-form code such as "A25 487" or "a2S-48T".
func NormalizeCode(s string) (string, bool) {
	for _, loc := range findDelimited(seriesCodeRe, s, 3) {
		if code, ok := formatCode(s[loc[2]:loc[3]], s[loc[4]:loc[5]], s[loc[6]:loc[7]]); ok {
			return code, true
		}
	}
	return "", false
}

// CodeNumber returns the number part of a code: "A25-0487" -> "0487".
func CodeNumber(code string) string {
	if i := strings.LastIndexByte(code, '-'); i >= 0 {
		return code[i+1:]
	}
	return code
}

func buildNoteReference(text string, loc []int) (dto.Reference, bool) {
	code, ok := formatCode(group(text, loc, 1), group(text, loc, 2), group(text, loc, 3))
	if !ok {
		return dto.Reference{}, false
	}
	ref := dto.Reference{Code: code, Raw: text[loc[0]:loc[1]]}
	if raw := group(text, loc, 4); raw != "" {
		ref.Date = parseDate(raw)
	}
	return ref, true
}

func buildInvoiceReference(text string, loc []int) (dto.Reference, bool) {
	raw := group(text, loc, 1)
	if !hasASCIIDigit(raw) {
		return dto.Reference{}, false
	}
	return dto.Reference{Code: padNumber(CanonicalDigits(raw)), Raw: text[loc[0]:loc[1]]}, true
}

func group(text string, loc []int, n int) string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return ""
	}
	return text[loc[2*n]:loc[2*n+1]]
}

// formatCode builds "A25-0487" from the raw series letter, series digits and number.
func formatCode(letter, series, number string) (string, bool) {
	if !hasASCIIDigit(series) || !hasASCIIDigit(number) {
		return "", false
	}
	digits := CanonicalDigits(series)
	if len(digits) != 2 {
		return "", false
	}
	n := CanonicalDigits(number)
	if n == "" {
		return "", false
	}
	l := []rune(letter)
	if len(l) != 1 {
		return "", false
	}
	return string(CanonicalLetter(l[0])) + digits + "-" + padNumber(n), true
}

func padNumber(n string) string {
	if len(n) < codeNumberWidth {
		n = strings.Repeat("0", codeNumberWidth-len(n)) + n
	}
	return n
}

// parseDate reads dd/mm/yyyy, dd-mm-yy and similar, tolerating OCR confusables.
func parseDate(raw string) *time.Time {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '-' || r == '.' })
	if len(parts) != 3 {
		return nil
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(CanonicalDigits(p))
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return nil
	}
	return &d
}
