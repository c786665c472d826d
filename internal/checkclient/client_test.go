package checkclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSubmitCacheHit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/check" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["text"] != "안녕하세요" || req["provider"] != "claude" {
			t.Errorf("request body = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"cached": true,
			"result": Record{CorrectedText: "안녕하세요", Provider: "claude"},
		})
	}))
	defer ts.Close()

	outcome, err := NewClient(ts.URL, "").Submit(context.Background(), "안녕하세요", "claude")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !outcome.Cached || outcome.Result == nil {
		t.Fatalf("outcome = %+v, want cache hit", outcome)
	}
	if outcome.Result.Issues == nil {
		t.Error("cached result not normalized")
	}
}

func TestClientSubmitJobCreated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"cached": false, "job_id": 42})
	}))
	defer ts.Close()

	outcome, err := NewClient(ts.URL, "").Submit(context.Background(), "본문", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Cached || outcome.JobID != 42 {
		t.Errorf("outcome = %+v, want job 42", outcome)
	}
}

func TestClientPassesServerErrorVerbatim(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "text cannot be empty", "type": "invalid_request_error"},
		})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "").Submit(context.Background(), "", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Error() != "text cannot be empty" {
		t.Errorf("message = %q, want server message verbatim", apiErr.Error())
	}
}

func TestClientFallsBackToGenericMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewClient(ts.URL, "").Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Error() != "server returned status 502" {
		t.Errorf("message = %q", apiErr.Error())
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sekrit" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{"providers": map[string]bool{"claude": true}})
	}))
	defer ts.Close()

	providers, err := NewClient(ts.URL, "sekrit").Providers(context.Background())
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if !providers["claude"] {
		t.Errorf("providers = %v", providers)
	}
}

func TestClientHistory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "2" {
			t.Errorf("per_page = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []Record{{ID: 2}, {ID: 1}},
			"pagination": map[string]int{
				"page": 1, "per_page": 2, "total": 5, "total_pages": 3,
			},
		})
	}))
	defer ts.Close()

	page, err := NewClient(ts.URL, "").History(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page.Records) != 2 || page.Total != 5 || page.TotalPages != 3 {
		t.Errorf("page = %+v", page)
	}
}
