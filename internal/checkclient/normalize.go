package checkclient

import (
	"sort"
	"unicode/utf16"
)

// Normalize maps any server result shape onto the canonical CheckResult. The
// sources differ only in which statistics they carry (history records have no
// processing time or chunk count); missing fields stay at their zero values
// since they are cosmetic. Pure and deterministic.
func Normalize(r Record) CheckResult {
	issues := r.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return CheckResult{
		ID:               r.ID,
		OriginalText:     r.OriginalText,
		CorrectedText:    r.CorrectedText,
		Issues:           issues,
		Provider:         r.Provider,
		ProcessingTimeMs: r.ProcessingTimeMs,
		ChunkCount:       r.ChunkCount,
	}
}

// OrderedIssues returns the issues sorted by position for display in reading
// order. The server does not guarantee ordering.
func OrderedIssues(result CheckResult) []Issue {
	issues := make([]Issue, len(result.Issues))
	copy(issues, result.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Position.Start < issues[j].Position.Start
	})
	return issues
}

// ResolveSpan returns the span of an issue's corrected string within the
// corrected text. The server-reported offset is used when it actually marks
// the corrected string; otherwise the text is searched for the nearest
// occurrence, and a zero-width span at -1 is returned when the string does
// not occur at all. Offsets come from per-chunk model output and drift.
func ResolveSpan(correctedText string, issue Issue) Span {
	if issue.Corrected == "" {
		return issue.Position
	}
	units := utf16.Encode([]rune(correctedText))
	target := utf16.Encode([]rune(issue.Corrected))

	if spanMatches(units, target, issue.Position) {
		return issue.Position
	}

	best := -1
	for i := 0; i+len(target) <= len(units); i++ {
		if !unitsEqual(units[i:i+len(target)], target) {
			continue
		}
		if best == -1 || distance(i, issue.Position.Start) < distance(best, issue.Position.Start) {
			best = i
		}
	}
	if best == -1 {
		return Span{Start: -1, End: -1}
	}
	return Span{Start: best, End: best + len(target)}
}

func spanMatches(units, target []uint16, span Span) bool {
	if span.Start < 0 || span.End > len(units) || span.End-span.Start != len(target) {
		return false
	}
	return unitsEqual(units[span.Start:span.End], target)
}

func unitsEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
