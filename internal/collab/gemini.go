// Package collab holds the external collaborator clients a campaign drives:
// the LLM for discovery and drafting, market and knowledge-base research, and
// the SMTP mailer.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// LLM discovers target companies and drafts outreach emails using the
// Gemini API.
type LLM struct {
	client *genai.Client
	model  string
	org    string
}

// NewLLM creates a Gemini-backed LLM client. org is the organization the
// drafted emails pitch on behalf of.
func NewLLM(ctx context.Context, apiKey, model, org string) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &LLM{client: client, model: model, org: org}, nil
}

// Discover asks the model for up to 10 company names in the sector. Output
// the model fails to format as a JSON array is treated as an empty result,
// not an error.
func (l *LLM) Discover(ctx context.Context, sector string) ([]string, error) {
	prompt := fmt.Sprintf(
		`Return only a valid JSON array of 10 company names in the %s sector. No explanation. Format: ["Company A", "Company B", ...]`,
		sector)

	text, err := l.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("discover companies: %w", err)
	}
	return parseCompanyList(text), nil
}

// GenerateEmail drafts a personalized cold email for the company from the
// gathered research context.
func (l *LLM) GenerateEmail(ctx context.Context, company, externalCtx, internalCtx string) (string, error) {
	prompt := fmt.Sprintf(`You are a friendly, concise sales-outreach assistant at %[1]s.
Given the following context for %[2]s:

External context:
%[3]s

%[1]s context:
%[4]s

Write a personalized cold email to %[2]s's leadership explaining,
in 3-4 short paragraphs, how %[1]s can help solve their challenges.
Make it warm, professional, and include a clear call to action.

DO NOT include placeholder text like [Your Name], [Your Title], or any bracketed placeholders.
DO NOT include a subject line in the email body.

Email:
`, l.org, company, externalCtx, internalCtx)

	text, err := l.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate email for %s: %w", company, err)
	}
	return strings.TrimSpace(text), nil
}

func (l *LLM) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// parseCompanyList extracts a JSON string array from model output, tolerating
// code fences and surrounding prose. Anything unparseable yields nil.
func parseCompanyList(text string) []string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil
	}
	var companies []string
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			companies = append(companies, name)
		}
	}
	return companies
}
