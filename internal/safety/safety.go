// Package safety enforces process-wide volume limits for campaigns and
// email sends. Counters reset at UTC midnight; hard limits reject, never clamp.
package safety

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimitExceeded is returned when a reservation would pass a hard limit.
var ErrLimitExceeded = errors.New("safety limit exceeded")

// Status is the aggregate compliance evaluation result.
type Status string

const (
	StatusOK        Status = "ok"
	StatusWarning   Status = "warning"
	StatusViolation Status = "violation"
)

// Check is the outcome of a compliance evaluation.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Limits holds the configured hard limits.
type Limits struct {
	DailyEmails         int
	DailyCampaigns      int
	ConcurrentCampaigns int
	EmailsPerCampaign   int
}

// DefaultLimits mirrors the production defaults.
func DefaultLimits() Limits {
	return Limits{
		DailyEmails:         50,
		DailyCampaigns:      5,
		ConcurrentCampaigns: 2,
		EmailsPerCampaign:   20,
	}
}

// warnFraction is the soft-limit threshold: at or above this share of a hard
// limit the check reports WARNING. Advisory only, never blocks.
const warnFraction = 0.8

// LimitStatus reports one counter for the safety endpoint.
type LimitStatus struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}

// Controller tracks process-wide counters. All gates take the same mutex as
// the increments they guard, so concurrent reservations cannot race past a
// hard limit.
type Controller struct {
	mu     sync.Mutex
	now    func() time.Time
	limits Limits

	dayKey         string
	emailsToday    int
	campaignsToday int
	concurrent     int
}

// NewController creates a safety controller with the given limits.
func NewController(limits Limits) *Controller {
	return &Controller{now: time.Now, limits: limits}
}

// SetClock overrides the controller clock. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Limits returns the configured limits.
func (c *Controller) Limits() Limits {
	return c.limits
}

// CheckCampaignLimits evaluates current counters against the campaign
// thresholds. Read-only; used for start-time reporting and the dashboard.
func (c *Controller) CheckCampaignLimits() Check {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDayLocked()
	return c.campaignCheckLocked()
}

// ReserveCampaignStart atomically validates the campaign gates and records a
// campaign start. On violation nothing is recorded and ErrLimitExceeded is
// returned wrapped with the compliance message.
func (c *Controller) ReserveCampaignStart() (Check, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDayLocked()

	check := c.campaignCheckLocked()
	if check.Status == StatusViolation {
		return check, fmt.Errorf("%s: %w", check.Message, ErrLimitExceeded)
	}
	c.campaignsToday++
	c.concurrent++
	return check, nil
}

// ReserveEmailSend atomically validates the daily email gate and records one
// send. On violation nothing is recorded.
func (c *Controller) ReserveEmailSend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDayLocked()

	if c.emailsToday >= c.limits.DailyEmails {
		return fmt.Errorf("daily email limit reached (%d): %w", c.limits.DailyEmails, ErrLimitExceeded)
	}
	c.emailsToday++
	return nil
}

// RecordCampaignFinished releases a concurrent-campaign slot.
func (c *Controller) RecordCampaignFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.concurrent > 0 {
		c.concurrent--
	}
}

// Snapshot reports all counters for the safety-status endpoint.
func (c *Controller) Snapshot() map[string]LimitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDayLocked()
	return map[string]LimitStatus{
		"daily_emails":         limitStatus(c.emailsToday, c.limits.DailyEmails),
		"daily_campaigns":      limitStatus(c.campaignsToday, c.limits.DailyCampaigns),
		"concurrent_campaigns": limitStatus(c.concurrent, c.limits.ConcurrentCampaigns),
	}
}

func limitStatus(current, max int) LimitStatus {
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return LimitStatus{Current: current, Max: max, Remaining: remaining}
}

func (c *Controller) campaignCheckLocked() Check {
	switch {
	case c.campaignsToday >= c.limits.DailyCampaigns:
		return Check{StatusViolation, fmt.Sprintf("daily campaign limit reached (%d)", c.limits.DailyCampaigns)}
	case c.concurrent >= c.limits.ConcurrentCampaigns:
		return Check{StatusViolation, fmt.Sprintf("concurrent campaign limit reached (%d)", c.limits.ConcurrentCampaigns)}
	case float64(c.campaignsToday) >= warnFraction*float64(c.limits.DailyCampaigns):
		return Check{StatusWarning, "approaching daily campaign limit"}
	default:
		return Check{StatusOK, "campaign limits ok"}
	}
}

// rollDayLocked resets the daily counters when the UTC day changes.
// Concurrent-campaign count is not daily and survives the roll.
func (c *Controller) rollDayLocked() {
	day := c.now().UTC().Format("2006-01-02")
	if day != c.dayKey {
		c.dayKey = day
		c.emailsToday = 0
		c.campaignsToday = 0
	}
}
