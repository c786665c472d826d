package storage

import (
	"strings"
	"testing"
)

func saveTestDocument(t *testing.T, s *Store, id, filename string, pageTexts ...string) {
	t.Helper()
	pages := make([]Page, len(pageTexts))
	for i, text := range pageTexts {
		pages[i] = Page{
			ID:         id + "-p" + string(rune('1'+i)),
			DocumentID: id,
			PageNumber: i + 1,
			Content:    text,
		}
	}
	doc := Document{ID: id, Filename: filename, SizeBytes: 1024}
	if err := s.SaveDocument(doc, pages); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := openTestStore(t)
	saveTestDocument(t, s, "doc-1", "report.pdf", "첫 페이지 내용", "둘째 페이지 내용")

	doc, err := s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Filename != "report.pdf" {
		t.Errorf("Filename = %q", doc.Filename)
	}
	if doc.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", doc.PageCount)
	}

	pages, err := s.GetDocumentPages("doc-1")
	if err != nil {
		t.Fatalf("GetDocumentPages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0].PageNumber != 1 || pages[1].PageNumber != 2 {
		t.Errorf("pages out of order: %v, %v", pages[0].PageNumber, pages[1].PageNumber)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := openTestStore(t)
	saveTestDocument(t, s, "doc-1", "report.pdf", "content")

	if err := s.DeleteDocument("doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument("doc-1"); err != ErrNotFound {
		t.Errorf("GetDocument after delete = %v, want ErrNotFound", err)
	}

	pages, err := s.GetDocumentPages("doc-1")
	if err != nil {
		t.Fatalf("GetDocumentPages: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("pages survived document delete: %d", len(pages))
	}

	if err := s.DeleteDocument("doc-1"); err != ErrNotFound {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestSearchDocumentsByFilename(t *testing.T) {
	s := openTestStore(t)
	saveTestDocument(t, s, "doc-1", "annual_report.pdf", "내용")
	saveTestDocument(t, s, "doc-2", "meeting_notes.pdf", "내용")

	matches, err := s.SearchDocuments("report", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].DocumentID != "doc-1" {
		t.Errorf("matched %q, want doc-1", matches[0].DocumentID)
	}
	if matches[0].PageNumber != 0 {
		t.Errorf("filename match has page number %d", matches[0].PageNumber)
	}
}

func TestSearchDocumentsFullText(t *testing.T) {
	s := openTestStore(t)
	saveTestDocument(t, s, "doc-1", "a.pdf", "서울의 봄은 아름답다", "부산의 바다")

	matches, err := s.SearchDocuments("바다", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.PageNumber != 2 {
		t.Errorf("PageNumber = %d, want 2", m.PageNumber)
	}
	if !strings.Contains(m.Snippet, "바다") {
		t.Errorf("snippet %q does not contain the query", m.Snippet)
	}
}

func TestSearchDocumentsEscapesLikeWildcards(t *testing.T) {
	s := openTestStore(t)
	saveTestDocument(t, s, "doc-1", "a.pdf", "100% 완료")
	saveTestDocument(t, s, "doc-2", "b.pdf", "50 퍼센트")

	matches, err := s.SearchDocuments("100%", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (wildcard not escaped?)", len(matches))
	}
}

func TestSearchDocumentsBlankQuery(t *testing.T) {
	s := openTestStore(t)
	saveTestDocument(t, s, "doc-1", "a.pdf", "내용")

	matches, err := s.SearchDocuments("   ", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if matches != nil {
		t.Errorf("blank query returned %d matches", len(matches))
	}
}

func TestMakeSnippetLengthChangingFold(t *testing.T) {
	// 'İ' lowercases to fewer bytes, so an index found in the lowered copy
	// does not line up with the original text.
	content := strings.Repeat("İ", 200) + "표적어" + strings.Repeat("가", 100)

	snippet := makeSnippet(content, "표적어")
	if !strings.Contains(snippet, "표적어") {
		t.Fatalf("snippet misaligned, lost the match: %q", snippet)
	}
	for _, r := range snippet {
		if r == '�' {
			t.Fatalf("snippet contains replacement char: %q", snippet)
		}
	}
}

func TestMakeSnippetRuneBoundaries(t *testing.T) {
	long := strings.Repeat("가나다라마바사", 40)
	content := long + "표적어" + long

	snippet := makeSnippet(content, "표적어")
	if !strings.Contains(snippet, "표적어") {
		t.Fatalf("snippet lost the match: %q", snippet)
	}
	// Trimming must not split a rune.
	for _, r := range snippet {
		if r == '�' {
			t.Fatalf("snippet contains replacement char: %q", snippet)
		}
	}
}
