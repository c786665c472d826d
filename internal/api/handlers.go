// Package api exposes the barun HTTP surface: proofreading checks, the job
// status/cancel endpoints the polling client depends on, check history, and
// the document library.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kyuho/barun/internal/checker"
	"github.com/kyuho/barun/internal/provider"
	"github.com/kyuho/barun/internal/storage"
)

const maxCheckBodySize = 1 << 20 // 1MB of JSON is plenty for 100K chars of text

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Store   *storage.Store
	Checker *checker.Service
	Token   string
}

// NewHandler builds the top-level router. /health is open; everything else
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/check", handleSubmitCheck(deps))
		r.Get("/check/jobs/{id}", handleJobStatus(deps))
		r.Post("/check/jobs/{id}/cancel", handleCancelJob(deps))
		r.Get("/check/history", handleListHistory(deps))
		r.Delete("/check/history/{id}", handleDeleteHistory(deps))
		r.Get("/check/providers", handleProviders(deps))

		r.Post("/documents", handleUploadDocument(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Delete("/documents/{id}", handleDeleteDocument(deps))
		r.Get("/search", handleSearch(deps))
	})

	return r
}

type checkRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

// resultPayload is the wire shape of a stored check result.
type resultPayload struct {
	ID               int64           `json:"id"`
	OriginalText     string          `json:"original_text"`
	CorrectedText    string          `json:"corrected_text"`
	Issues           json.RawMessage `json:"issues"`
	Provider         string          `json:"provider"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ChunkCount       int             `json:"chunk_count"`
	CreatedAt        string          `json:"created_at"`
}

func toResultPayload(r storage.CheckResult) resultPayload {
	issues := r.Issues
	if issues == "" {
		issues = "[]"
	}
	return resultPayload{
		ID:               r.ID,
		OriginalText:     r.OriginalText,
		CorrectedText:    r.CorrectedText,
		Issues:           json.RawMessage(issues),
		Provider:         r.Provider,
		ProcessingTimeMs: r.ProcessingMs,
		ChunkCount:       r.ChunkCount,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func handleSubmitCheck(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCheckBodySize)
		defer r.Body.Close()

		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		outcome, err := deps.Checker.Submit(req.Text, req.Provider)
		switch {
		case errors.Is(err, checker.ErrEmptyText):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text cannot be empty")
			return
		case errors.Is(err, checker.ErrTextTooLong):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, provider.ErrUnavailable):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "submitting check: %v", err)
			return
		}

		if outcome.Cached {
			writeJSON(w, http.StatusOK, map[string]any{
				"cached": true,
				"result": toResultPayload(*outcome.Result),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"cached": false,
			"job_id": outcome.JobID,
		})
	}
}

type progressPayload struct {
	CurrentChunk int `json:"current_chunk"`
	TotalChunks  int `json:"total_chunks"`
	Percentage   int `json:"percentage"`
}

func handleJobStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid job id")
			return
		}

		job, err := deps.Store.GetCheckJob(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "invalid_request_error", "job %d not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading job: %v", err)
			return
		}

		payload := map[string]any{
			"id":     job.ID,
			"status": job.Status,
		}
		// Progress is omitted until the worker has sized the job; a 0/0
		// snapshot would read as a spurious 0% to pollers.
		if job.ProgressTotal > 0 {
			payload["progress"] = progressPayload{
				CurrentChunk: job.ProgressCurrent,
				TotalChunks:  job.ProgressTotal,
				Percentage:   job.ProgressCurrent * 100 / job.ProgressTotal,
			}
		}
		if job.ErrorMessage != "" {
			payload["error_message"] = job.ErrorMessage
		}
		if job.Status == storage.JobCompleted && job.ResultID != 0 {
			result, err := deps.Store.GetCheckResult(job.ResultID)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "loading result: %v", err)
				return
			}
			payload["result"] = toResultPayload(result)
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func handleCancelJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid job id")
			return
		}
		if err := deps.Store.CancelCheckJob(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "cancelling job: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", 20)
		if perPage > 100 {
			perPage = 100
		}

		results, total, err := deps.Store.ListCheckResults(page, perPage)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing history: %v", err)
			return
		}

		payloads := make([]resultPayload, 0, len(results))
		for _, result := range results {
			payloads = append(payloads, toResultPayload(result))
		}
		totalPages := (total + perPage - 1) / perPage
		writeJSON(w, http.StatusOK, map[string]any{
			"results": payloads,
			"pagination": map[string]int{
				"page":        page,
				"per_page":    perPage,
				"total":       total,
				"total_pages": totalPages,
			},
		})
	}
}

func handleDeleteHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid result id")
			return
		}
		err = deps.Store.DeleteCheckResult(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "invalid_request_error", "result %d not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting result: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleProviders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"providers": deps.Checker.Availability(r.Context()),
		})
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
