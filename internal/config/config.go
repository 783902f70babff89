// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string

	// LLM used for company discovery and email drafting.
	GeminiAPIKey string
	GeminiModel  string

	// Market intelligence (OpenAI-compatible chat completions with search).
	MarketAPIURL string
	MarketAPIKey string
	MarketModel  string

	// Internal knowledge-base search service.
	KnowledgeURL    string
	KnowledgeAPIKey string
	KnowledgeTopK   int

	// Outbound email.
	SMTPAddr      string
	FromEmail     string
	EmailPassword string
	SignerName    string
	OrgName       string

	// Campaign tuning.
	MaxCompanies  int
	ContextFanOut int

	// Safety limits.
	DailyEmailLimit         int
	DailyCampaignLimit      int
	ConcurrentCampaignLimit int
	EmailsPerCampaignLimit  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MarketAPIURL: getEnv("MARKET_API_URL", "https://api.perplexity.ai/chat/completions"),
		MarketAPIKey: getEnv("MARKET_API_KEY", ""),
		MarketModel:  getEnv("MARKET_MODEL", "sonar-pro"),

		KnowledgeURL:    getEnv("KNOWLEDGE_URL", ""),
		KnowledgeAPIKey: getEnv("KNOWLEDGE_API_KEY", ""),
		KnowledgeTopK:   getEnvInt("KNOWLEDGE_TOP_K", 4),

		SMTPAddr:      getEnv("SMTP_ADDR", "smtp.gmail.com:587"),
		FromEmail:     getEnv("FROM_EMAIL", ""),
		EmailPassword: getEnv("EMAIL_PASSWORD", ""),
		SignerName:    getEnv("EMAIL_SIGNER_NAME", "John Doe"),
		OrgName:       getEnv("ORG_NAME", "RevReach"),

		MaxCompanies:  getEnvInt("MAX_COMPANIES", 10),
		ContextFanOut: getEnvInt("CONTEXT_FAN_OUT", 4),

		DailyEmailLimit:         getEnvInt("DAILY_EMAIL_LIMIT", 50),
		DailyCampaignLimit:      getEnvInt("DAILY_CAMPAIGN_LIMIT", 5),
		ConcurrentCampaignLimit: getEnvInt("CONCURRENT_CAMPAIGN_LIMIT", 2),
		EmailsPerCampaignLimit:  getEnvInt("EMAILS_PER_CAMPAIGN_LIMIT", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"PORT", c.Port},
		{"GEMINI_API_KEY", c.GeminiAPIKey},
		{"MARKET_API_KEY", c.MarketAPIKey},
		{"KNOWLEDGE_URL", c.KnowledgeURL},
		{"FROM_EMAIL", c.FromEmail},
		{"EMAIL_PASSWORD", c.EmailPassword},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s cannot be empty", field.name)
		}
	}

	limits := []struct {
		name  string
		value int
	}{
		{"DAILY_EMAIL_LIMIT", c.DailyEmailLimit},
		{"DAILY_CAMPAIGN_LIMIT", c.DailyCampaignLimit},
		{"CONCURRENT_CAMPAIGN_LIMIT", c.ConcurrentCampaignLimit},
		{"EMAILS_PER_CAMPAIGN_LIMIT", c.EmailsPerCampaignLimit},
	}
	for _, limit := range limits {
		if limit.value <= 0 {
			return fmt.Errorf("%s must be > 0", limit.name)
		}
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
