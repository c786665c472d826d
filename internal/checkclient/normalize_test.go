package checkclient

import (
	"reflect"
	"testing"
)

func TestNormalizeIdempotent(t *testing.T) {
	rec := Record{
		ID:            3,
		OriginalText:  "안녕하세요 반갑슴니다",
		CorrectedText: "안녕하세요 반갑습니다",
		Issues: []Issue{{
			Original: "반갑슴니다", Corrected: "반갑습니다",
			Position: Span{Start: 6, End: 11}, Type: "spelling",
		}},
		Provider:         "claude",
		ProcessingTimeMs: 1200,
		ChunkCount:       1,
	}

	first := Normalize(rec)
	second := Normalize(rec)
	if !reflect.DeepEqual(first, second) {
		t.Error("Normalize is not deterministic for a fixed input")
	}
}

func TestNormalizeSourcesAgreeOnContent(t *testing.T) {
	// A cache hit carries full statistics; a history record carries none.
	// The content fields must normalize identically regardless.
	cacheHit := Record{
		OriginalText:  "본문",
		CorrectedText: "본문",
		Issues:        []Issue{{Original: "a", Corrected: "b"}},
		Provider:      "openai",

		ProcessingTimeMs: 840,
		ChunkCount:       2,
	}
	historyRecord := cacheHit
	historyRecord.ProcessingTimeMs = 0
	historyRecord.ChunkCount = 0

	a := Normalize(cacheHit)
	b := Normalize(historyRecord)
	if a.CorrectedText != b.CorrectedText || a.Provider != b.Provider {
		t.Error("content fields differ between sources")
	}
	if !reflect.DeepEqual(a.Issues, b.Issues) {
		t.Error("issues differ between sources")
	}
}

func TestNormalizeDefaultsMissingFields(t *testing.T) {
	result := Normalize(Record{CorrectedText: "고친 글"})
	if result.Issues == nil {
		t.Error("nil issues not defaulted to empty slice")
	}
	if result.ProcessingTimeMs != 0 || result.ChunkCount != 0 {
		t.Error("missing statistics not left at zero")
	}
}

func TestOrderedIssues(t *testing.T) {
	result := CheckResult{Issues: []Issue{
		{Original: "c", Position: Span{Start: 20, End: 21}},
		{Original: "a", Position: Span{Start: 0, End: 1}},
		{Original: "b", Position: Span{Start: 5, End: 6}},
	}}

	ordered := OrderedIssues(result)
	for i, want := range []string{"a", "b", "c"} {
		if ordered[i].Original != want {
			t.Fatalf("ordered[%d] = %q, want %q", i, ordered[i].Original, want)
		}
	}
	if result.Issues[0].Original != "c" {
		t.Error("OrderedIssues mutated its input")
	}
}

func TestResolveSpanTrustsAccurateOffsets(t *testing.T) {
	text := "안녕하세요 반갑습니다"
	issue := Issue{Corrected: "반갑습니다", Position: Span{Start: 6, End: 11}}

	span := ResolveSpan(text, issue)
	if span != issue.Position {
		t.Errorf("span = %+v, want server offsets %+v", span, issue.Position)
	}
}

func TestResolveSpanRecoversFromDriftedOffsets(t *testing.T) {
	text := "안녕하세요 반갑습니다"
	issue := Issue{Corrected: "반갑습니다", Position: Span{Start: 2, End: 7}}

	span := ResolveSpan(text, issue)
	if span.Start != 6 || span.End != 11 {
		t.Errorf("span = %+v, want {6 11}", span)
	}
}

func TestResolveSpanPrefersNearestDuplicate(t *testing.T) {
	// "네" occurs at offsets 0 and 4; an offset hint of 3 should pick 4.
	text := "네 아니 네"
	issue := Issue{Corrected: "네", Position: Span{Start: 3, End: 4}}

	span := ResolveSpan(text, issue)
	if span.Start != 4 {
		t.Errorf("span.Start = %d, want 4", span.Start)
	}
}

func TestResolveSpanMissingSubstring(t *testing.T) {
	span := ResolveSpan("본문", Issue{Corrected: "없는말", Position: Span{Start: 0, End: 3}})
	if span.Start != -1 || span.End != -1 {
		t.Errorf("span = %+v, want {-1 -1}", span)
	}
}
