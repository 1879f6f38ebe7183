package service

import (
	"log"
	"path/filepath"

	"github.com/Aashish23092/albaran-merge/dto"
)

// Resolver looks up the files indexed for a delivery-note code.
type Resolver interface {
	Resolve(code string) []string
}

// Correlate resolves each delivery-note reference of an invoice against the
// index, keeping reference order. Several candidate files resolve to the
// lexicographically smallest path and are flagged as duplicates.
func Correlate(invoice string, refs []dto.Reference, index Resolver) dto.MatchResult {
	result := dto.MatchResult{Invoice: invoice, Matches: make([]dto.ResolvedReference, 0, len(refs))}
	for _, ref := range refs {
		if ref.Kind != dto.KindDeliveryNote {
			continue
		}
		resolved := dto.ResolvedReference{Reference: ref, Status: dto.StatusMissing}
		candidates := index.Resolve(ref.Code)
		switch len(candidates) {
		case 0:
			log.Printf("correlator: %s references %s, no file found", filepath.Base(invoice), ref.Code)
		case 1:
			resolved.Path = candidates[0]
			resolved.Status = dto.StatusMatched
		default:
			resolved.Path = smallest(candidates)
			resolved.Status = dto.StatusDuplicate
			resolved.Candidates = candidates
			log.Printf("correlator: %s matches %d files, using %s", ref.Code, len(candidates), resolved.Path)
		}
		result.Matches = append(result.Matches, resolved)
	}
	return result
}

func smallest(paths []string) string {
	best := paths[0]
	for _, p := range paths[1:] {
		if p < best {
			best = p
		}
	}
	return best
}
