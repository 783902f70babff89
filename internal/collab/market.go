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

const defaultMarketModel = "sonar-pro"

// MarketClient summarizes recent company challenges via an OpenAI-compatible
// chat completions endpoint with web search.
type MarketClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewMarketClient creates a market intelligence client. endpoint is the full
// chat completions URL.
func NewMarketClient(endpoint, apiKey, model string) *MarketClient {
	if model == "" {
		model = defaultMarketModel
	}
	return &MarketClient{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model              string        `json:"model"`
	Messages           []chatMessage `json:"messages"`
	SearchDomainFilter []string      `json:"search_domain_filter,omitempty"`
	SearchRecency      string        `json:"search_recency_filter,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// CompanyChallenges returns a two-sentence summary of the company's current
// strategic and operational challenges.
func (m *MarketClient) CompanyChallenges(ctx context.Context, company string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: m.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a sales intelligence assistant."},
			{Role: "user", Content: fmt.Sprintf(
				"Summarize the latest strategic, operational, or product challenges faced by %s in exactly 2 sentences. Avoid generic statements. Use citations if possible.",
				company)},
		},
		SearchDomainFilter: []string{"bloomberg.com", "reuters.com", strings.ToLower(company) + ".com"},
		SearchRecency:      "month",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("market intelligence endpoint returned %s", resp.Status)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("market intelligence returned no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
