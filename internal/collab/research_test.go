package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMarketClientCompanyChallenges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "sonar-pro" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "Contoso") {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  Contoso faces margin pressure. Hiring has slowed.  "}},
			},
		})
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL, "test-key", "")
	got, err := c.CompanyChallenges(context.Background(), "Contoso")
	if err != nil {
		t.Fatalf("CompanyChallenges: %v", err)
	}
	if got != "Contoso faces margin pressure. Hiring has slowed." {
		t.Fatalf("content = %q", got)
	}
}

func TestMarketClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL, "test-key", "")
	if _, err := c.CompanyChallenges(context.Background(), "Contoso"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestResearchFetchInternal(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		queries = append(queries, req.Query)
		json.NewEncoder(w).Encode(searchResponse{Passages: []string{"passage for " + req.Query}})
	}))
	defer srv.Close()

	r := &Research{Knowledge: NewKnowledgeClient(srv.URL, "", 4)}
	got, err := r.FetchInternal(context.Background(), "Contoso", []string{"Contoso challenges", "Contoso growth"})
	if err != nil {
		t.Fatalf("FetchInternal: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("queries = %v, want 2", queries)
	}
	if !strings.Contains(got, "passage for Contoso challenges") || !strings.Contains(got, "passage for Contoso growth") {
		t.Fatalf("joined passages = %q", got)
	}
}

func TestResearchFetchInternalAllQueriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := &Research{Knowledge: NewKnowledgeClient(srv.URL, "", 4)}
	if _, err := r.FetchInternal(context.Background(), "Contoso", []string{"a", "b"}); err == nil {
		t.Fatal("expected error when every query fails")
	}
}
