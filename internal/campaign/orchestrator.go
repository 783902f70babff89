// Package campaign runs outreach campaigns end to end: one goroutine per
// agent walks the step pipeline, raising human checkpoints for risky actions
// and honoring interventions at unit-of-work boundaries.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/revreach/internal/checkpoint"
	"github.com/ashureev/revreach/internal/domain"
	"github.com/ashureev/revreach/internal/risk"
	"github.com/ashureev/revreach/internal/safety"
	"github.com/ashureev/revreach/internal/state"
)

// ErrInvalidIntervention is returned when an intervention action is unknown
// or not applicable to the agent's current status.
var ErrInvalidIntervention = errors.New("invalid intervention")

// Options tunes campaign execution.
type Options struct {
	// MaxCompanies caps the discovery result. Zero means the default of 10.
	MaxCompanies int
	// ContextFanOut bounds concurrent context fetches. Zero means 4.
	ContextFanOut int
	// SenderOrg is the organization name used in email subjects.
	SenderOrg string
}

func (o Options) withDefaults() Options {
	if o.MaxCompanies <= 0 {
		o.MaxCompanies = 10
	}
	if o.ContextFanOut <= 0 {
		o.ContextFanOut = 4
	}
	if o.SenderOrg == "" {
		o.SenderOrg = "RevReach"
	}
	return o
}

// Service starts and supervises campaign agents.
type Service struct {
	baseCtx     context.Context
	store       *state.Store
	checkpoints *checkpoint.Manager
	safety      *safety.Controller
	collab      Collaborators
	opts        Options
	log         *slog.Logger

	mu      sync.Mutex
	runners map[string]*Runner
}

// NewService wires a campaign service. baseCtx bounds the lifetime of every
// campaign goroutine; cancelling it aborts all running campaigns.
func NewService(baseCtx context.Context, store *state.Store, checkpoints *checkpoint.Manager, safetyCtrl *safety.Controller, collab Collaborators, opts Options, log *slog.Logger) *Service {
	return &Service{
		baseCtx:     baseCtx,
		store:       store,
		checkpoints: checkpoints,
		safety:      safetyCtrl,
		collab:      collab,
		opts:        opts.withDefaults(),
		log:         log,
		runners:     make(map[string]*Runner),
	}
}

// Start validates the safety gates, registers a new agent and launches its
// campaign goroutine. On a limit violation no agent is created and the
// returned error wraps safety.ErrLimitExceeded.
func (s *Service) Start(sector, recipientEmail string, autonomy domain.AutonomyLevel) (*domain.Agent, safety.Check, error) {
	check, err := s.safety.ReserveCampaignStart()
	if err != nil {
		s.log.Warn("campaign start rejected", "sector", sector, "reason", check.Message)
		return nil, check, err
	}

	agent := s.store.Create(sector, recipientEmail, autonomy)
	ctx, cancel := context.WithCancel(s.baseCtx)
	r := newRunner(agent.ID, cancel)

	s.mu.Lock()
	s.runners[agent.ID] = r
	s.mu.Unlock()

	s.log.Info("campaign started", "job_id", agent.ID, "sector", sector, "autonomy", autonomy)
	go s.run(ctx, r)
	return agent, check, nil
}

// Intervene applies a human intervention to a running agent and returns the
// message and new status to report.
func (s *Service) Intervene(jobID, action string) (string, domain.Status, error) {
	agent, err := s.store.Get(jobID)
	if err != nil {
		return "", "", err
	}
	r := s.runner(jobID)

	switch action {
	case "pause":
		if agent.Status != domain.StatusExecuting {
			return "", "", fmt.Errorf("%w: can only pause an executing agent (status %s)", ErrInvalidIntervention, agent.Status)
		}
		if r != nil {
			r.Pause()
		}
		s.store.SetStatus(jobID, domain.StatusPaused)
		s.log.Info("campaign paused", "job_id", jobID)
		return "Agent paused. In-flight work finishes; no new work starts.", domain.StatusPaused, nil

	case "resume":
		if agent.Status != domain.StatusPaused {
			return "", "", fmt.Errorf("%w: can only resume a paused agent (status %s)", ErrInvalidIntervention, agent.Status)
		}
		s.store.SetStatus(jobID, domain.StatusExecuting)
		if r != nil {
			r.Resume()
		}
		s.log.Info("campaign resumed", "job_id", jobID)
		return "Agent resumed.", domain.StatusExecuting, nil

	case "stop":
		if agent.Status.Terminal() {
			return "", "", fmt.Errorf("%w: agent already %s", ErrInvalidIntervention, agent.Status)
		}
		s.store.SetStatus(jobID, domain.StatusStopped)
		if r != nil {
			r.Stop()
		}
		s.log.Info("campaign stopped", "job_id", jobID)
		return "Agent stopped gracefully.", domain.StatusStopped, nil

	case "emergency_stop":
		if agent.Status.Terminal() {
			return "", "", fmt.Errorf("%w: agent already %s", ErrInvalidIntervention, agent.Status)
		}
		s.store.SetError(jobID, "emergency stop requested by operator")
		s.store.SetStatus(jobID, domain.StatusFailed)
		if r != nil {
			r.EmergencyStop()
		}
		s.log.Warn("campaign emergency stopped", "job_id", jobID)
		return "Agent emergency stopped.", domain.StatusFailed, nil

	default:
		return "", "", fmt.Errorf("%w: unknown action %q", ErrInvalidIntervention, action)
	}
}

// EmergencyStopAll emergency-stops every non-terminal agent and returns the
// ids of the agents it stopped.
func (s *Service) EmergencyStopAll() []string {
	var stopped []string
	for _, agent := range s.store.ListActive() {
		if _, _, err := s.Intervene(agent.ID, "emergency_stop"); err == nil {
			stopped = append(stopped, agent.ID)
		}
	}
	s.log.Warn("emergency stop all", "stopped", len(stopped))
	return stopped
}

func (s *Service) runner(jobID string) *Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runners[jobID]
}

func (s *Service) removeRunner(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runners, jobID)
}

// run drives one campaign to a terminal status and releases its resources.
func (s *Service) run(ctx context.Context, r *Runner) {
	defer s.safety.RecordCampaignFinished()
	defer s.removeRunner(r.agentID)
	defer r.cancel()

	err := s.execute(ctx, r)
	switch {
	case err == nil:
		s.store.SetStep(r.agentID, domain.StepCompleted)
		s.store.SetStatus(r.agentID, domain.StatusCompleted)
		s.log.Info("campaign completed", "job_id", r.agentID)
	case errors.Is(err, errStopped):
		s.store.SetStatus(r.agentID, domain.StatusStopped)
	case errors.Is(err, errEmergencyStopped):
		s.store.SetError(r.agentID, "emergency stop requested by operator")
		s.store.SetStatus(r.agentID, domain.StatusFailed)
	case errors.Is(err, errPlanRejected):
		s.log.Info("campaign plan rejected", "job_id", r.agentID)
		s.store.SetError(r.agentID, err.Error())
		s.store.SetStatus(r.agentID, domain.StatusFailed)
	case errors.Is(err, context.Canceled):
		// Base context cancelled: a server drain, not a campaign failure.
		s.log.Info("campaign aborted by shutdown", "job_id", r.agentID)
		s.store.SetStatus(r.agentID, domain.StatusStopped)
	default:
		s.log.Error("campaign failed", "job_id", r.agentID, "error", err)
		cp := s.checkpoints.Create(r.agentID, domain.CheckpointErrorIntervention, domain.RiskHigh,
			fmt.Sprintf("Campaign failed: %v. Review before retrying this sector.", err),
			map[string]any{"error": err.Error()}, true)
		s.store.AppendCheckpoint(r.agentID, cp.ID)
		s.store.SetError(r.agentID, err.Error())
		s.store.SetStatus(r.agentID, domain.StatusFailed)
	}
}

// execute walks the step pipeline. A nil return means the campaign ran to
// completion; callers translate errors into the terminal status.
func (s *Service) execute(ctx context.Context, r *Runner) error {
	id := r.agentID
	agent, err := s.store.Get(id)
	if err != nil {
		return err
	}

	if err := r.gate(ctx); err != nil {
		return err
	}
	s.store.SetStatus(id, domain.StatusPlanning)
	s.store.SetStep(id, domain.StepPlanning)

	companies, err := s.discover(ctx, id, agent.Sector)
	if err != nil {
		return err
	}

	if err := s.approvePlan(ctx, r, agent, companies); err != nil {
		return err
	}

	s.store.SetStatus(id, domain.StatusExecuting)
	if err := s.advance(ctx, r, domain.StepGatheringContext); err != nil {
		return err
	}
	contexts := s.gatherContexts(ctx, id, companies)

	if err := s.advance(ctx, r, domain.StepGeneratingEmails); err != nil {
		return err
	}
	drafts, err := s.generateDrafts(ctx, r, id, contexts)
	if err != nil {
		return err
	}

	if err := s.advance(ctx, r, domain.StepRequestingSendApprove); err != nil {
		return err
	}
	outbox, err := s.collectApprovals(ctx, r, agent, drafts)
	if err != nil {
		return err
	}

	if err := s.advance(ctx, r, domain.StepSendingEmails); err != nil {
		return err
	}
	return s.sendEmails(ctx, r, agent, outbox)
}

// advance moves the agent to the next step after passing the control gate.
func (s *Service) advance(ctx context.Context, r *Runner, step domain.Step) error {
	if err := r.gate(ctx); err != nil {
		return err
	}
	s.store.SetStep(r.agentID, step)
	return nil
}

func (s *Service) discover(ctx context.Context, agentID, sector string) ([]string, error) {
	actionID := s.store.AppendAction(agentID, domain.ActionDiscoverCompanies, sector)
	companies, err := s.collab.Discoverer.Discover(ctx, sector)
	if err != nil {
		s.store.FinishAction(agentID, actionID, domain.ActionFailed, err.Error())
		return nil, fmt.Errorf("company discovery failed: %w", err)
	}
	if len(companies) > s.opts.MaxCompanies {
		companies = companies[:s.opts.MaxCompanies]
	}
	s.store.FinishAction(agentID, actionID, domain.ActionCompleted, "")
	s.log.Info("companies discovered", "job_id", agentID, "sector", sector, "count", len(companies))
	return companies, nil
}

// approvePlan raises a plan checkpoint when the campaign-level risk is
// medium or high and blocks until it is resolved. A reject decision fails
// the campaign before any email work starts.
func (s *Service) approvePlan(ctx context.Context, r *Runner, agent *domain.Agent, companies []string) error {
	level, assessment := risk.AssessCampaign(companies, agent.Sector)
	if level == domain.RiskLow {
		return nil
	}

	requires := agent.Autonomy != domain.AutonomyAutonomous
	cp := s.checkpoints.Create(agent.ID, domain.CheckpointPlanApproval, level,
		fmt.Sprintf("Campaign plan for sector %q targets %d companies with %s overall risk.", agent.Sector, len(companies), level),
		map[string]any{
			"sector":          agent.Sector,
			"companies":       companies,
			"risk_assessment": assessment,
		}, requires)
	s.store.AppendCheckpoint(agent.ID, cp.ID)
	if !requires {
		return nil
	}

	resolved, err := s.awaitCheckpoint(ctx, r, agent.ID, cp.ID)
	if err != nil {
		return err
	}
	if resolved.Decision == domain.DecisionReject {
		return fmt.Errorf("%w: %s", errPlanRejected, orUnspecified(resolved.Feedback))
	}
	s.store.SetStatus(agent.ID, domain.StatusExecuting)
	return nil
}

// companyContext is the research gathered for one target company.
type companyContext struct {
	company  string
	external string
	internal string
}

// gatherContexts fetches research for every company with bounded fan-out.
// Fetch failures degrade to placeholder text; they never fail the campaign.
func (s *Service) gatherContexts(ctx context.Context, agentID string, companies []string) []companyContext {
	out := make([]companyContext, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ContextFanOut)
	for i, company := range companies {
		actionID := s.store.AppendAction(agentID, domain.ActionGatherContext, company)
		g.Go(func() error {
			out[i] = s.fetchCompanyContext(gctx, company)
			s.store.FinishAction(agentID, actionID, domain.ActionCompleted, "")
			return nil
		})
	}
	_ = g.Wait() // workers degrade failures internally and never return errors
	return out
}

func (s *Service) fetchCompanyContext(ctx context.Context, company string) companyContext {
	var external, internal string
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		txt, err := s.collab.Contexts.FetchExternal(ctx, company)
		if err != nil || strings.TrimSpace(txt) == "" {
			if err != nil {
				s.log.Warn("external context unavailable", "company", company, "error", err)
			}
			txt = fmt.Sprintf("Recent market developments for %s could not be retrieved.", company)
		}
		external = txt
	}()
	go func() {
		defer wg.Done()
		hints := []string{
			company + " business challenges",
			company + " growth opportunities",
		}
		txt, err := s.collab.Contexts.FetchInternal(ctx, company, hints)
		if err != nil || strings.TrimSpace(txt) == "" {
			if err != nil {
				s.log.Warn("internal context unavailable", "company", company, "error", err)
			}
			txt = fmt.Sprintf("No internal knowledge found for %s.", company)
		}
		internal = txt
	}()
	wg.Wait()

	return companyContext{
		company:  company,
		external: external,
		internal: dedupeAgainst(internal, external),
	}
}

// dedupeAgainst drops passages of text that already appear verbatim in any
// of the prior texts, preserving first-seen order. Passages are blocks
// separated by blank lines.
func dedupeAgainst(text string, prior ...string) string {
	seen := make(map[string]bool)
	for _, p := range prior {
		for _, block := range splitPassages(p) {
			seen[block] = true
		}
	}
	var kept []string
	for _, block := range splitPassages(text) {
		if seen[block] {
			continue
		}
		seen[block] = true
		kept = append(kept, block)
	}
	return strings.Join(kept, "\n\n")
}

func splitPassages(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

// draft is a generated email awaiting risk review.
type draft struct {
	company string
	content string
}

// generateDrafts produces one email per company. A failed generation is
// recorded against that company and skipped; the campaign carries on with
// the remaining drafts.
func (s *Service) generateDrafts(ctx context.Context, r *Runner, agentID string, contexts []companyContext) ([]draft, error) {
	var drafts []draft
	for _, cc := range contexts {
		if err := r.gate(ctx); err != nil {
			return nil, err
		}
		actionID := s.store.AppendAction(agentID, domain.ActionGenerateEmail, cc.company)
		content, err := s.collab.Generator.GenerateEmail(ctx, cc.company, cc.external, cc.internal)
		if err != nil {
			s.log.Warn("email generation failed", "job_id", agentID, "company", cc.company, "error", err)
			s.store.FinishAction(agentID, actionID, domain.ActionFailed, err.Error())
			continue
		}
		s.store.FinishAction(agentID, actionID, domain.ActionCompleted, "")
		drafts = append(drafts, draft{company: cc.company, content: content})
	}
	return drafts, nil
}

// outbound is a draft cleared for sending.
type outbound struct {
	company string
	content string
}

// collectApprovals risk-scores every draft and raises send checkpoints for
// medium and high risk ones. Checkpoints for the whole batch are created
// first; the agent then waits in WAITING_APPROVAL until each is resolved.
// Low-risk drafts pass straight through without a checkpoint.
func (s *Service) collectApprovals(ctx context.Context, r *Runner, agent *domain.Agent, drafts []draft) ([]outbound, error) {
	type pendingSlot struct {
		index        int
		checkpointID string
	}

	slots := make([]*outbound, len(drafts))
	var waits []pendingSlot

	for i, d := range drafts {
		level, factors := risk.AssessEmail(d.content, d.company)
		if level == domain.RiskLow {
			slots[i] = &outbound{company: d.company, content: d.content}
			continue
		}

		requires := agent.Autonomy != domain.AutonomyAutonomous
		cp := s.checkpoints.Create(agent.ID, domain.CheckpointSendApproval, level,
			fmt.Sprintf("Email to %s carries %s risk. Review before sending.", d.company, level),
			map[string]any{
				"company":       d.company,
				"email_content": d.content,
				"risk_level":    level,
				"risk_factors":  factors,
			}, requires)
		s.store.AppendCheckpoint(agent.ID, cp.ID)

		if !requires {
			slots[i] = &outbound{company: d.company, content: d.content}
			continue
		}
		waits = append(waits, pendingSlot{index: i, checkpointID: cp.ID})
	}

	for _, w := range waits {
		resolved, err := s.awaitCheckpoint(ctx, r, agent.ID, w.checkpointID)
		if err != nil {
			return nil, err
		}
		d := drafts[w.index]
		switch resolved.Decision {
		case domain.DecisionApprove:
			slots[w.index] = &outbound{company: d.company, content: d.content}
		case domain.DecisionModify:
			content := resolved.ModifiedContent
			if strings.TrimSpace(content) == "" {
				content = d.content
			}
			slots[w.index] = &outbound{company: d.company, content: content}
		case domain.DecisionReject:
			actionID := s.store.AppendAction(agent.ID, domain.ActionSendEmail, d.company)
			s.store.FinishAction(agent.ID, actionID, domain.ActionRejected,
				"rejected by human: "+orUnspecified(resolved.Feedback))
			s.log.Info("email rejected", "job_id", agent.ID, "company", d.company)
		}
	}
	if len(waits) > 0 {
		s.store.SetStatus(agent.ID, domain.StatusExecuting)
	}

	var out []outbound
	for _, slot := range slots {
		if slot != nil {
			out = append(out, *slot)
		}
	}
	return out, nil
}

// awaitCheckpoint parks the agent in WAITING_APPROVAL until the checkpoint
// resolves or the campaign is halted.
func (s *Service) awaitCheckpoint(ctx context.Context, r *Runner, agentID, checkpointID string) (*domain.Checkpoint, error) {
	if err := r.gate(ctx); err != nil {
		return nil, err
	}
	s.store.SetStatus(agentID, domain.StatusWaitingApproval)
	s.log.Info("awaiting human approval", "job_id", agentID, "checkpoint_id", checkpointID)

	select {
	case <-s.checkpoints.Done(checkpointID):
	case <-ctx.Done():
		return nil, r.haltErr(ctx)
	}
	return s.checkpoints.Get(checkpointID)
}

// sendEmails delivers the approved outbox. Each send passes the control gate
// and the safety reservations; a blocked or failed send is recorded against
// its company and the loop continues.
func (s *Service) sendEmails(ctx context.Context, r *Runner, agent *domain.Agent, outbox []outbound) error {
	perCampaign := s.safety.Limits().EmailsPerCampaign
	sent := 0
	for _, out := range outbox {
		if err := r.gate(ctx); err != nil {
			return err
		}
		actionID := s.store.AppendAction(agent.ID, domain.ActionSendEmail, out.company)

		if sent >= perCampaign {
			s.store.FinishAction(agent.ID, actionID, domain.ActionFailed,
				fmt.Sprintf("per-campaign email limit reached (%d)", perCampaign))
			continue
		}
		if err := s.safety.ReserveEmailSend(); err != nil {
			s.store.FinishAction(agent.ID, actionID, domain.ActionFailed, err.Error())
			s.log.Warn("email send blocked", "job_id", agent.ID, "company", out.company, "error", err)
			continue
		}

		subject := fmt.Sprintf("%s Partnership Opportunity for %s", s.opts.SenderOrg, out.company)
		if err := s.collab.Notifier.Send(ctx, agent.RecipientEmail, subject, out.content); err != nil {
			s.store.FinishAction(agent.ID, actionID, domain.ActionFailed, err.Error())
			s.log.Warn("email send failed", "job_id", agent.ID, "company", out.company, "error", err)
			continue
		}
		sent++
		s.store.FinishAction(agent.ID, actionID, domain.ActionCompleted, "")
		s.log.Info("email sent", "job_id", agent.ID, "company", out.company)
	}
	return nil
}

func orUnspecified(feedback string) string {
	if strings.TrimSpace(feedback) == "" {
		return "no feedback given"
	}
	return feedback
}
