package risk

import (
	"strings"
	"testing"

	"github.com/ashureev/revreach/internal/domain"
)

func TestAssessCompany(t *testing.T) {
	tests := []struct {
		company string
		sector  string
		want    domain.RiskLevel
	}{
		{"Acme Robotics", "SaaS", domain.RiskLow},
		{"Google Cloud", "SaaS", domain.RiskHigh},
		{"Tesla Energy", "CleanTech", domain.RiskHigh},
		{"Plaid", "Financial Services", domain.RiskMedium},
		{"SmallCo", "Healthcare", domain.RiskMedium},
	}
	for _, tt := range tests {
		if got := AssessCompany(tt.company, tt.sector); got != tt.want {
			t.Errorf("AssessCompany(%q, %q) = %v, want %v", tt.company, tt.sector, got, tt.want)
		}
	}
}

func TestAssessCompanyDeterministic(t *testing.T) {
	first := AssessCompany("Acme", "SaaS")
	for i := 0; i < 10; i++ {
		if got := AssessCompany("Acme", "SaaS"); got != first {
			t.Fatalf("assessment not deterministic: got %v then %v", first, got)
		}
	}
}

func TestAssessEmailSensitiveTopic(t *testing.T) {
	body := wordsOfLength(60) + " we heard about the recent layoffs at your company"
	level, factors := AssessEmail(body, "Acme")
	if level != domain.RiskHigh {
		t.Errorf("expected high risk, got %v", level)
	}
	found := false
	for _, f := range factors {
		if f.Type == "sensitive_topic" {
			found = true
		}
	}
	if !found {
		t.Error("expected a sensitive_topic factor")
	}
}

func TestAssessEmailRiskyLanguage(t *testing.T) {
	body := wordsOfLength(60) + " this is a limited time offer"
	level, _ := AssessEmail(body, "Acme")
	if level != domain.RiskMedium {
		t.Errorf("expected medium risk, got %v", level)
	}
}

func TestAssessEmailLengthBands(t *testing.T) {
	level, factors := AssessEmail("too short", "Acme")
	if level != domain.RiskLow {
		t.Errorf("short email: expected low risk, got %v", level)
	}
	if len(factors) != 1 || factors[0].Type != "email_length" {
		t.Errorf("short email: expected a single length factor, got %v", factors)
	}

	level, _ = AssessEmail(wordsOfLength(250), "Acme")
	if level != domain.RiskMedium {
		t.Errorf("long email: expected medium risk, got %v", level)
	}
}

func TestAssessEmailClean(t *testing.T) {
	level, factors := AssessEmail(wordsOfLength(120), "Acme")
	if level != domain.RiskLow {
		t.Errorf("expected low risk, got %v (factors: %v)", level, factors)
	}
}

func TestAssessCampaign(t *testing.T) {
	level, a := AssessCampaign([]string{"Acme", "Google Cloud", "Beta"}, "SaaS")
	if level != domain.RiskHigh {
		t.Errorf("expected high campaign risk, got %v", level)
	}
	if len(a.HighRiskCompanies) != 1 || a.HighRiskCompanies[0] != "Google Cloud" {
		t.Errorf("unexpected high-risk companies: %v", a.HighRiskCompanies)
	}
	if len(a.Recommendations) == 0 {
		t.Error("expected recommendations for high-risk campaign")
	}

	level, a = AssessCampaign([]string{"Acme", "Beta"}, "SaaS")
	if level != domain.RiskLow {
		t.Errorf("expected low campaign risk, got %v", level)
	}
	if len(a.Recommendations) != 1 {
		t.Errorf("expected the standard low-risk recommendation, got %v", a.Recommendations)
	}
}

// wordsOfLength builds neutral filler text with n words.
func wordsOfLength(n int) string {
	return strings.TrimSpace(strings.Repeat("partnership ", n))
}
