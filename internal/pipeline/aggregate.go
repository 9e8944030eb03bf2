package pipeline

import (
	"orderdesk/internal"
	"orderdesk/internal/matchsvc"
)

// ApplyMatches merges a batch match-result mapping into an order's line
// items. The lookup is by verbatim request-item text, so duplicate
// descriptions in one order receive identical match data. The first
// candidate becomes the primary match; the rest become alternates in the
// service's own ranking order, which is never re-sorted here.
func ApplyMatches(items []internal.LineItem, results map[string][]matchsvc.Candidate) []internal.LineItem {
	out := make([]internal.LineItem, 0, len(items))
	for _, item := range items {
		updated := item.Clone()
		matches := results[item.RequestItem]
		if len(matches) == 0 {
			updated.MatchedItem = nil
			updated.MatchScore = nil
			updated.AlternateMatches = []internal.AltMatch{}
			out = append(out, updated)
			continue
		}

		best := matches[0]
		updated.MatchedItem = &best.Match
		score := best.Score
		updated.MatchScore = &score

		alternates := make([]internal.AltMatch, 0, len(matches)-1)
		for _, candidate := range matches[1:] {
			alternates = append(alternates, internal.AltMatch{Match: candidate.Match, Score: candidate.Score})
		}
		updated.AlternateMatches = alternates
		out = append(out, updated)
	}
	return out
}
