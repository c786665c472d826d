package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kyuho/barun/internal/document"
	"github.com/kyuho/barun/internal/storage"
)

const maxUploadSize = 50 << 20 // 50MB

type documentPayload struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Title     string `json:"title"`
	PageCount int    `json:"page_count"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

func toDocumentPayload(d storage.Document) documentPayload {
	return documentPayload{
		ID:        d.ID,
		Filename:  d.Filename,
		Title:     d.Title,
		PageCount: d.PageCount,
		SizeBytes: d.SizeBytes,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type searchMatchPayload struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	Snippet    string `json:"snippet"`
}

func toSearchMatchPayloads(matches []storage.SearchMatch) []searchMatchPayload {
	out := make([]searchMatchPayload, len(matches))
	for i, m := range matches {
		out[i] = searchMatchPayload{
			DocumentID: m.DocumentID,
			Filename:   m.Filename,
			PageNumber: m.PageNumber,
			Snippet:    m.Snippet,
		}
	}
	return out
}

// handleUploadDocument ingests a PDF sent as the multipart "file" field,
// extracts its pages, and stores both for later search.
func handleUploadDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}
		if !document.IsPDF(data) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "only PDF files are supported")
			return
		}

		texts, err := document.ExtractBytes(data)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "extracting text: %v", err)
			return
		}

		title := r.FormValue("title")
		if title == "" {
			title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}

		doc := storage.Document{
			ID:        uuid.New().String(),
			Filename:  header.Filename,
			Title:     title,
			PageCount: len(texts),
			SizeBytes: int64(len(data)),
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc, document.BuildPages(doc.ID, texts)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving document: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, toDocumentPayload(doc))
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Store.ListDocuments(100)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing documents: %v", err)
			return
		}
		payloads := make([]documentPayload, 0, len(docs))
		for _, d := range docs {
			payloads = append(payloads, toDocumentPayload(d))
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": payloads})
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := deps.Store.DeleteDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "invalid_request_error", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query parameter q is required")
			return
		}

		matches, err := deps.Store.SearchDocuments(query, 50)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "searching documents: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"query":   query,
			"matches": toSearchMatchPayloads(matches),
		})
	}
}
