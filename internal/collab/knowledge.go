package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// KnowledgeClient retrieves product and customer passages from the internal
// knowledge-base search service.
type KnowledgeClient struct {
	endpoint string
	apiKey   string
	topK     int
	client   *http.Client
}

// NewKnowledgeClient creates a knowledge-base client. endpoint is the search
// URL; topK caps passages per query (zero means 4).
func NewKnowledgeClient(endpoint, apiKey string, topK int) *KnowledgeClient {
	if topK <= 0 {
		topK = 4
	}
	return &KnowledgeClient{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		topK:     topK,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Passages []string `json:"passages"`
}

// Search returns the passages most relevant to the query.
func (k *KnowledgeClient) Search(ctx context.Context, query string) ([]string, error) {
	body, err := json.Marshal(searchRequest{Query: query, TopK: k.topK})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if k.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+k.apiKey)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("knowledge base returned %s", resp.Status)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Passages, nil
}

// Research combines market intelligence and knowledge-base retrieval into
// the context provider a campaign consumes.
type Research struct {
	Market    *MarketClient
	Knowledge *KnowledgeClient
}

// FetchExternal returns recent market context for the company.
func (r *Research) FetchExternal(ctx context.Context, company string) (string, error) {
	return r.Market.CompanyChallenges(ctx, company)
}

// FetchInternal runs each hint query against the knowledge base and joins
// the passages. Per-query failures are skipped; the call fails only when
// every query fails.
func (r *Research) FetchInternal(ctx context.Context, company string, hints []string) (string, error) {
	var (
		passages []string
		lastErr  error
		failed   int
	)
	for _, hint := range hints {
		found, err := r.Knowledge.Search(ctx, hint)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		passages = append(passages, found...)
	}
	if failed == len(hints) && lastErr != nil {
		return "", fmt.Errorf("knowledge search for %s: %w", company, lastErr)
	}
	return strings.Join(passages, "\n\n"), nil
}
