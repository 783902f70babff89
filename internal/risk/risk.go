// Package risk classifies pending campaign actions by content heuristics.
// All assessments are pure functions of their inputs: no I/O, no state.
package risk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/revreach/internal/domain"
)

// Factor describes one detected risk contributor in an email draft.
type Factor struct {
	Type           string           `json:"factor_type"`
	Severity       domain.RiskLevel `json:"severity"`
	Description    string           `json:"description"`
	Recommendation string           `json:"recommendation"`
}

// Assessment summarizes campaign-level risk across the target list.
type Assessment struct {
	Overall             domain.RiskLevel `json:"overall_risk"`
	HighRiskCompanies   []string         `json:"high_risk_companies"`
	MediumRiskCompanies []string         `json:"medium_risk_companies"`
	Recommendations     []string         `json:"recommendations"`
}

// highProfileCompanies require manual approval before outreach.
var highProfileCompanies = []string{
	"microsoft", "google", "apple", "amazon", "meta", "netflix",
	"salesforce", "oracle", "ibm", "adobe", "nvidia", "tesla",
}

// regulatedIndustries carry compliance requirements that raise sector risk.
var regulatedIndustries = []string{
	"financial", "healthcare", "pharmaceutical", "banking",
	"insurance", "government", "defense",
}

// sensitiveTopics in drafted content always need a human look.
var sensitiveTopics = []string{
	"layoffs", "layoff", "downsizing", "bankruptcy", "lawsuit",
	"controversy", "scandal", "hack", "breach", "investigation",
	"regulatory", "compliance", "penalty", "fine",
}

var riskyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`urgent|immediate|emergency`),
	regexp.MustCompile(`guaranteed|promise|100%`),
	regexp.MustCompile(`free|no cost|no charge`),
	regexp.MustCompile(`limited time|expires|deadline`),
	regexp.MustCompile(`confidential|secret|insider`),
}

const (
	minEmailWords = 50
	maxEmailWords = 200
)

// AssessCompany classifies the risk of targeting a single company.
func AssessCompany(company, sector string) domain.RiskLevel {
	lower := strings.ToLower(company)
	for _, hp := range highProfileCompanies {
		if strings.Contains(lower, hp) {
			return domain.RiskHigh
		}
	}
	sectorLower := strings.ToLower(sector)
	for _, ri := range regulatedIndustries {
		if strings.Contains(sectorLower, ri) {
			return domain.RiskMedium
		}
	}
	return domain.RiskLow
}

// AssessEmail classifies a drafted email's content risk and returns the
// contributing factors.
func AssessEmail(content, company string) (domain.RiskLevel, []Factor) {
	var factors []Factor
	lower := strings.ToLower(content)

	for _, topic := range sensitiveTopics {
		if strings.Contains(lower, topic) {
			factors = append(factors, Factor{
				Type:           "sensitive_topic",
				Severity:       domain.RiskHigh,
				Description:    fmt.Sprintf("email for %s mentions sensitive topic: %s", company, topic),
				Recommendation: "consider softer language or remove the reference",
			})
		}
	}

	for _, pat := range riskyPatterns {
		if pat.MatchString(lower) {
			factors = append(factors, Factor{
				Type:           "risky_language",
				Severity:       domain.RiskMedium,
				Description:    "email contains potentially risky language: " + pat.String(),
				Recommendation: "consider a more professional tone",
			})
		}
	}

	switch words := len(strings.Fields(content)); {
	case words < minEmailWords:
		factors = append(factors, Factor{
			Type:           "email_length",
			Severity:       domain.RiskLow,
			Description:    "email is very short and may appear impersonal",
			Recommendation: "consider adding more context",
		})
	case words > maxEmailWords:
		factors = append(factors, Factor{
			Type:           "email_length",
			Severity:       domain.RiskMedium,
			Description:    "email is very long and may reduce engagement",
			Recommendation: "consider shortening the message",
		})
	}

	return overall(factors), factors
}

// AssessCampaign classifies overall campaign risk across the target list.
func AssessCampaign(companies []string, sector string) (domain.RiskLevel, Assessment) {
	a := Assessment{}
	for _, company := range companies {
		switch AssessCompany(company, sector) {
		case domain.RiskHigh:
			a.HighRiskCompanies = append(a.HighRiskCompanies, company)
		case domain.RiskMedium:
			a.MediumRiskCompanies = append(a.MediumRiskCompanies, company)
		}
	}

	switch {
	case len(a.HighRiskCompanies) > 0:
		a.Overall = domain.RiskHigh
	case len(a.MediumRiskCompanies)*2 > len(companies):
		a.Overall = domain.RiskMedium
	default:
		a.Overall = domain.RiskLow
	}
	a.Recommendations = recommendations(a, sector)
	return a.Overall, a
}

func overall(factors []Factor) domain.RiskLevel {
	level := domain.RiskLow
	for _, f := range factors {
		switch f.Severity {
		case domain.RiskHigh:
			return domain.RiskHigh
		case domain.RiskMedium:
			level = domain.RiskMedium
		}
	}
	return level
}

func recommendations(a Assessment, sector string) []string {
	var recs []string
	if n := len(a.HighRiskCompanies); n > 0 {
		recs = append(recs,
			fmt.Sprintf("manual approval required for %d high-profile companies", n),
			"consider executive review for high-risk targets")
	}
	if n := len(a.MediumRiskCompanies); n > 0 {
		recs = append(recs, fmt.Sprintf("extra caution needed for %d regulated industry targets", n))
	}
	sectorLower := strings.ToLower(sector)
	for _, ri := range regulatedIndustries {
		if strings.Contains(sectorLower, ri) {
			recs = append(recs, "ensure compliance with industry regulations")
			break
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "campaign appears low-risk, can proceed with standard monitoring")
	}
	return recs
}
