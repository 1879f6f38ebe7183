package dto

type MatchStatus string

const (
	StatusMatched   MatchStatus = "matched"
	StatusMissing   MatchStatus = "missing"
	StatusDuplicate MatchStatus = "duplicate"
)

type ResolvedReference struct {
	Reference  Reference   `json:"reference"`
	Path       string      `json:"path,omitempty"`
	Status     MatchStatus `json:"status"`
	Candidates []string    `json:"candidates,omitempty"`
}

// MatchResult is the correlation outcome for one invoice. Matches keep the
// order in which references were read from the invoice text.
type MatchResult struct {
	Invoice string              `json:"invoice"`
	Header  InvoiceHeader       `json:"header"`
	Matches []ResolvedReference `json:"matches"`
}

// Paths returns the resolved delivery-note paths in merge order. A note
// referenced more than once is merged at its first position only.
func (m MatchResult) Paths() []string {
	seen := make(map[string]bool)
	paths := make([]string, 0, len(m.Matches))
	for _, r := range m.Matches {
		if r.Path == "" || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		paths = append(paths, r.Path)
	}
	return paths
}

// MissingCodes returns each unresolved code once, in first-seen order.
func (m MatchResult) MissingCodes() []string {
	return m.codesWithStatus(StatusMissing)
}

// DuplicateCodes returns each ambiguously resolved code once, in first-seen order.
func (m MatchResult) DuplicateCodes() []string {
	return m.codesWithStatus(StatusDuplicate)
}

func (m MatchResult) codesWithStatus(status MatchStatus) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, r := range m.Matches {
		if r.Status != status || seen[r.Reference.Code] {
			continue
		}
		seen[r.Reference.Code] = true
		codes = append(codes, r.Reference.Code)
	}
	return codes
}
