package utils

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Aashish23092/albaran-merge/dto"
)

// Client box on the first page of an invoice: right of 45% of the width and
// above 30% of the height. The wider fallback band goes down to 35%.
const (
	clientZoneMinX     = 0.45
	clientZoneMaxY     = 0.30
	clientFallbackMaxY = 0.35
)

// sectionLabels are headings printed in the client area that are never a client name.
var sectionLabels = map[string]bool{
	"FACTURA":              true,
	"FACTURA SIMPLIFICADA": true,
	"CLIENTE":              true,
	"DATOS DEL CLIENTE":    true,
	"DATOS CLIENTE":        true,
	"ALBARAN":              true,
	"FECHA":                true,
	"NIF":                  true,
	"CIF":                  true,
	"DNI":                  true,
	"DIRECCION":            true,
	"DOMICILIO":            true,
	"PAGINA":               true,
	"TELEFONO":             true,
	"EMAIL":                true,
	"ORIGINAL":             true,
	"COPIA":                true,
}

var (
	legalSuffixRe  = regexp.MustCompile(`(?i)\b(SL|SA|SLU|SLL|SAU|SCOOP|SCOOPG|SC|CB)\b`)
	unsafeCharsRe  = regexp.MustCompile(`[/\\:*?"<>|]`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
	labelPrefixRe  = regexp.MustCompile(`^([A-Z ]+?)\s*[:.]`)
	labelValueRe   = regexp.MustCompile(`^[^:]+:\s*[0-9]`)
	trailingPuncRe = regexp.MustCompile(`[\s,;\-]+$`)
	numberMarkRe   = regexp.MustCompile(`^N\s*[º°ª]\.?\s*`)
)

// ExtractClientName picks the client name out of the first page layout. It
// looks at blocks in the upper-right client box, then at upper-case lines in
// the top band of the page. It returns false rather than guessing when no
// plausible line is found.
func ExtractClientName(blocks []dto.TextBlock, width, height float64) (string, bool) {
	if width <= 0 || height <= 0 {
		return "", false
	}

	var candidates []dto.TextBlock
	for _, b := range blocks {
		if b.X0 >= width*clientZoneMinX && b.Y0 <= height*clientZoneMaxY {
			candidates = append(candidates, b)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Y0 != candidates[j].Y0 {
			return candidates[i].Y0 < candidates[j].Y0
		}
		return candidates[i].X0 > candidates[j].X0
	})

	for _, c := range candidates {
		for _, line := range blockLines(c.Text) {
			if isSectionLabel(line) {
				continue
			}
			if name := CleanClientName(line); name != "" {
				return name, true
			}
			break
		}
	}

	for _, b := range blocks {
		if b.Y0 > height*clientFallbackMaxY {
			continue
		}
		for _, line := range blockLines(b.Text) {
			if len([]rune(line)) <= 3 || !isUpperLine(line) || isSectionLabel(line) {
				continue
			}
			if name := CleanClientName(line); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// CleanClientName turns a raw client line into a file-name-safe component:
// no dots, no legal-entity suffix, single spaces, no diacritics, upper case.
func CleanClientName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, ".", "")
	s = legalSuffixRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = unsafeCharsRe.ReplaceAllString(s, "_")
	s = FoldDiacritics(s)
	s = trailingPuncRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.ToUpper(strings.TrimSpace(s))
}

func blockLines(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

func isSectionLabel(line string) bool {
	norm := strings.ToUpper(FoldDiacritics(strings.TrimSpace(line)))
	norm = numberMarkRe.ReplaceAllString(norm, "")
	norm = strings.TrimRight(norm, ":. ")
	if norm == "" || sectionLabels[norm] || labelValueRe.MatchString(norm) {
		return true
	}
	if m := labelPrefixRe.FindStringSubmatch(norm); m != nil && sectionLabels[strings.TrimSpace(m[1])] {
		return true
	}
	return !strings.ContainsFunc(norm, unicode.IsLetter)
}

// isUpperLine reports whether s has at least one cased letter and no lower-case ones.
func isUpperLine(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
