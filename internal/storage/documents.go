package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// snippetRadius is the number of bytes of page text kept on each side of a match.
const snippetRadius = 60

// SaveDocument inserts a document and its extracted pages in one transaction.
func (s *Store) SaveDocument(doc Document, pages []Page) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.Exec(`
		INSERT INTO documents (id, filename, title, page_count, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Title, len(pages), doc.SizeBytes,
		createdAt.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	for _, p := range pages {
		if _, err := tx.Exec(`
			INSERT INTO document_pages (id, document_id, page_number, content)
			VALUES (?, ?, ?, ?)`,
			p.ID, doc.ID, p.PageNumber, p.Content,
		); err != nil {
			return fmt.Errorf("inserting page %d: %w", p.PageNumber, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, filename, title, page_count, size_bytes, created_at
		FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Filename, &d.Title, &d.PageCount, &d.SizeBytes, &createdAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return d, nil
}

func (s *Store) ListDocuments(limit int) ([]Document, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, filename, title, page_count, size_bytes, created_at
		FROM documents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Filename, &d.Title, &d.PageCount, &d.SizeBytes, &createdAt); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocumentPages returns the pages of a document in page order.
func (s *Store) GetDocumentPages(documentID string) ([]Page, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, page_number, content
		FROM document_pages WHERE document_id = ?
		ORDER BY page_number ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PageNumber, &p.Content); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeleteDocument removes a document; its pages cascade.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SearchDocuments matches query against filenames and page text,
// case-insensitively. Filename matches come first, then full-text matches
// with a short snippet around the first occurrence.
func (s *Store) SearchDocuments(query string, limit int) ([]SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"

	var matches []SearchMatch

	rows, err := s.db.Query(`
		SELECT id, filename FROM documents
		WHERE filename LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\'
		ORDER BY created_at DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var m SearchMatch
		if err := rows.Scan(&m.DocumentID, &m.Filename); err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	remaining := limit - len(matches)
	if remaining <= 0 {
		return matches, nil
	}

	rows, err = s.db.Query(`
		SELECT p.document_id, d.filename, p.page_number, p.content
		FROM document_pages p JOIN documents d ON d.id = p.document_id
		WHERE p.content LIKE ? ESCAPE '\'
		ORDER BY d.created_at DESC, p.page_number ASC LIMIT ?`, pattern, remaining)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m SearchMatch
		var content string
		if err := rows.Scan(&m.DocumentID, &m.Filename, &m.PageNumber, &content); err != nil {
			return nil, err
		}
		m.Snippet = makeSnippet(content, query)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// makeSnippet extracts the text around the first case-insensitive occurrence
// of query, trimmed to rune boundaries.
func makeSnippet(content, query string) string {
	idx, matchLen := foldIndex(content, query)
	if idx < 0 {
		if len(content) <= 2*snippetRadius {
			return content
		}
		return content[:boundaryBefore(content, 2*snippetRadius)] + "…"
	}

	start := idx - snippetRadius
	if start < 0 {
		start = 0
	} else {
		start = boundaryAfter(content, start)
	}
	end := idx + matchLen + snippetRadius
	if end > len(content) {
		end = len(content)
	} else {
		end = boundaryBefore(content, end)
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(content) {
		snippet += "…"
	}
	return snippet
}

// foldIndex locates the first case-insensitive occurrence of query in
// content and reports its byte offset and length in the original string.
// Lowercasing can change byte lengths ('İ' shrinks to "i"), so an index
// found in the lowered copy is walked back to the original.
func foldIndex(content, query string) (start, length int) {
	lower := strings.ToLower(content)
	lq := strings.ToLower(query)
	li := strings.Index(lower, lq)
	if li < 0 {
		return -1, 0
	}

	lo, oo := 0, 0
	for lo < li && oo < len(content) {
		r, size := utf8.DecodeRuneInString(content[oo:])
		lo += utf8.RuneLen(unicode.ToLower(r))
		oo += size
	}
	start = oo
	for lo < li+len(lq) && oo < len(content) {
		r, size := utf8.DecodeRuneInString(content[oo:])
		lo += utf8.RuneLen(unicode.ToLower(r))
		oo += size
	}
	return start, oo - start
}

func boundaryBefore(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func boundaryAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
