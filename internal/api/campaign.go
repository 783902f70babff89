package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/revreach/internal/campaign"
	"github.com/ashureev/revreach/internal/checkpoint"
	"github.com/ashureev/revreach/internal/domain"
	"github.com/ashureev/revreach/internal/safety"
	"github.com/ashureev/revreach/internal/state"
)

// CampaignHandler handles campaign lifecycle endpoints.
type CampaignHandler struct {
	*Handler
}

// NewCampaignHandler creates a new campaign handler.
func NewCampaignHandler(base *Handler) *CampaignHandler {
	return &CampaignHandler{Handler: base}
}

// RegisterRoutes registers campaign routes.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Post("/start-agent-campaign", h.StartCampaign)
	r.Get("/agent-status/{job_id}", h.AgentStatus)
	r.Get("/agent-analytics/{job_id}", h.AgentAnalytics)
	r.Post("/approve-checkpoint", h.ApproveCheckpoint)
	r.Post("/agent-intervention", h.Intervene)
	r.Get("/agent-dashboard", h.Dashboard)
	r.Get("/safety-status", h.SafetyStatus)
	r.Post("/emergency-stop-all", h.EmergencyStopAll)
	r.Get("/health", h.Health)
}

type startCampaignRequest struct {
	Sector         string `json:"sector"`
	RecipientEmail string `json:"recipient_email"`
	AutonomyLevel  string `json:"autonomy_level"`
}

// StartCampaign validates the request and safety limits and launches a new
// agent campaign in the background.
func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req startCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sector == "" {
		Error(w, http.StatusBadRequest, "sector is required")
		return
	}
	if _, err := mail.ParseAddress(req.RecipientEmail); err != nil {
		Error(w, http.StatusBadRequest, "invalid recipient email")
		return
	}
	autonomy := domain.AutonomyLevel(req.AutonomyLevel)
	if req.AutonomyLevel == "" {
		autonomy = domain.AutonomySupervised
	}
	if !domain.ValidAutonomyLevel(autonomy) {
		Error(w, http.StatusBadRequest, "invalid autonomy level")
		return
	}

	agent, check, err := h.campaigns.Start(req.Sector, req.RecipientEmail, autonomy)
	if err != nil {
		if errors.Is(err, safety.ErrLimitExceeded) {
			Error(w, http.StatusTooManyRequests, "campaign limit exceeded: "+check.Message)
			return
		}
		slog.Error("Failed to start campaign", "error", err, "sector", req.Sector)
		Error(w, http.StatusInternalServerError, "failed to start campaign")
		return
	}

	JSON(w, http.StatusAccepted, map[string]interface{}{
		"message":        "Agent campaign started for " + req.Sector,
		"job_id":         agent.ID,
		"agent_status":   agent.Status,
		"autonomy_level": agent.Autonomy,
		"safety_check":   check.Message,
	})
}

// AgentStatus returns the full status view for one agent.
func (h *CampaignHandler) AgentStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	agent, err := h.store.Get(jobID)
	if err != nil {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}

	pending := h.checkpoints.Pending(jobID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"job_id":              agent.ID,
		"agent_status":        agent.Status,
		"current_step":        agent.CurrentStep,
		"progress":            domain.Progress(agent.Status, agent.CurrentStep),
		"agent_message":       domain.StatusMessage(agent.Status, agent.CurrentStep, len(pending), agent.Error),
		"pending_checkpoints": pending,
		"recent_actions":      actionViews(agent.RecentActions(10)),
		"stats":               h.agentStats(agent),
	})
}

func (h *CampaignHandler) agentStats(agent *domain.Agent) map[string]int {
	resolved := 0
	for _, id := range agent.CheckpointIDs {
		if cp, err := h.checkpoints.Get(id); err == nil && cp.Resolved() {
			resolved++
		}
	}
	successful, failed := 0, 0
	for _, a := range agent.Actions {
		switch a.Status {
		case domain.ActionCompleted:
			successful++
		case domain.ActionFailed:
			failed++
		}
	}
	return map[string]int{
		"total_checkpoints":    len(agent.CheckpointIDs),
		"resolved_checkpoints": resolved,
		"total_actions":        len(agent.Actions),
		"successful_actions":   successful,
		"failed_actions":       failed,
	}
}

type actionView struct {
	domain.Action
	Duration float64 `json:"duration"`
}

func actionViews(actions []domain.Action) []actionView {
	views := make([]actionView, len(actions))
	for i, a := range actions {
		views[i] = actionView{Action: a, Duration: a.Duration()}
	}
	return views
}

// AgentAnalytics returns performance metrics computed from the agent's
// action log and checkpoint history: success rates, per-action-type timing,
// checkpoint resolution stats and the action timeline.
func (h *CampaignHandler) AgentAnalytics(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	agent, err := h.store.Get(jobID)
	if err != nil {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}

	successful, failed := 0, 0
	totalDuration := 0.0
	perType := make(map[domain.ActionType][]float64)
	timeline := make([]map[string]interface{}, 0, len(agent.Actions))
	for _, a := range agent.Actions {
		switch a.Status {
		case domain.ActionCompleted:
			successful++
		case domain.ActionFailed:
			failed++
		}
		if a.CompletedAt != nil {
			d := a.Duration()
			totalDuration += d
			perType[a.Type] = append(perType[a.Type], d)
		}
		timeline = append(timeline, map[string]interface{}{
			"timestamp":        a.StartedAt,
			"type":             a.Type,
			"target":           a.Target,
			"status":           a.Status,
			"duration_seconds": a.Duration(),
		})
	}

	avgTimes := make(map[domain.ActionType]map[string]interface{}, len(perType))
	for typ, times := range perType {
		total := 0.0
		for _, d := range times {
			total += d
		}
		avgTimes[typ] = map[string]interface{}{
			"avg_seconds":   total / float64(len(times)),
			"count":         len(times),
			"total_seconds": total,
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"job_id":       agent.ID,
		"agent_status": agent.Status,
		"performance": map[string]interface{}{
			"total_actions":          len(agent.Actions),
			"successful_actions":     successful,
			"failed_actions":         failed,
			"success_rate":           percentage(successful, len(agent.Actions)),
			"total_duration_minutes": totalDuration / 60,
			"avg_action_times":       avgTimes,
		},
		"checkpoint_analytics": h.checkpointAnalytics(agent),
		"timeline":             timeline,
	})
}

func (h *CampaignHandler) checkpointAnalytics(agent *domain.Agent) map[string]interface{} {
	resolved, approved, modified := 0, 0, 0
	resolutionTotal := 0.0
	for _, id := range agent.CheckpointIDs {
		cp, err := h.checkpoints.Get(id)
		if err != nil || !cp.Resolved() {
			continue
		}
		resolved++
		resolutionTotal += cp.ResolvedAt.Sub(cp.CreatedAt).Seconds()
		switch cp.Decision {
		case domain.DecisionApprove:
			approved++
		case domain.DecisionModify:
			modified++
		}
	}
	avgResolution := 0.0
	if resolved > 0 {
		avgResolution = resolutionTotal / float64(resolved)
	}
	return map[string]interface{}{
		"total_checkpoints":    len(agent.CheckpointIDs),
		"resolved_checkpoints": resolved,
		"pending_checkpoints":  len(agent.CheckpointIDs) - resolved,
		"avg_resolution_time":  avgResolution,
		"approval_rate":        percentage(approved, resolved),
		"modification_rate":    percentage(modified, resolved),
	}
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

type checkpointDecisionRequest struct {
	CheckpointID    string `json:"checkpoint_id"`
	Decision        string `json:"decision"`
	Feedback        string `json:"feedback"`
	ModifiedContent string `json:"modified_content"`
}

// ApproveCheckpoint records a human decision on a pending checkpoint.
func (h *CampaignHandler) ApproveCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req checkpointDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	decision := domain.Decision(req.Decision)
	if !domain.ValidDecision(decision) {
		Error(w, http.StatusBadRequest, "invalid decision type")
		return
	}

	cp, err := h.checkpoints.Get(req.CheckpointID)
	if err != nil {
		Error(w, http.StatusNotFound, "checkpoint not found")
		return
	}
	if decision == domain.DecisionApprove && cp.RiskLevel == domain.RiskHigh && req.Feedback == "" {
		Error(w, http.StatusBadRequest, "high-risk approvals require feedback")
		return
	}
	if decision == domain.DecisionModify && req.ModifiedContent == "" {
		Error(w, http.StatusBadRequest, "modified content required for modify decision")
		return
	}

	if _, err := h.checkpoints.Resolve(req.CheckpointID, decision, req.Feedback, req.ModifiedContent); err != nil {
		switch {
		case errors.Is(err, checkpoint.ErrAlreadyResolved):
			Error(w, http.StatusConflict, "checkpoint already resolved")
		case errors.Is(err, checkpoint.ErrNotFound):
			Error(w, http.StatusNotFound, "checkpoint not found")
		default:
			Error(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"message":       decisionMessage(decision),
		"checkpoint_id": req.CheckpointID,
		"decision":      decision,
		"timestamp":     time.Now().UTC(),
	})
}

func decisionMessage(d domain.Decision) string {
	switch d {
	case domain.DecisionApprove:
		return "Checkpoint approved - agent continuing"
	case domain.DecisionReject:
		return "Checkpoint rejected - action cancelled"
	default:
		return "Checkpoint modified - agent using updated content"
	}
}

type interventionRequest struct {
	JobID  string `json:"job_id"`
	Action string `json:"action"`
}

// Intervene applies pause, resume, stop or emergency_stop to an agent.
func (h *CampaignHandler) Intervene(w http.ResponseWriter, r *http.Request) {
	var req interventionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, newStatus, err := h.campaigns.Intervene(req.JobID, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, state.ErrNotFound):
			Error(w, http.StatusNotFound, "agent not found")
		case errors.Is(err, campaign.ErrInvalidIntervention):
			Error(w, http.StatusBadRequest, err.Error())
		default:
			Error(w, http.StatusInternalServerError, "intervention failed")
		}
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"message":    message,
		"new_status": newStatus,
	})
}

// Dashboard returns the overview of all active agents.
func (h *CampaignHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.dashboardSnapshot())
}

func (h *CampaignHandler) dashboardSnapshot() map[string]interface{} {
	active := h.store.ListActive()
	limits := h.safety.Snapshot()

	var allPending []map[string]interface{}
	agents := make([]map[string]interface{}, 0, len(active))
	for _, agent := range active {
		pending := h.checkpoints.Pending(agent.ID)
		for _, cp := range pending {
			allPending = append(allPending, map[string]interface{}{
				"job_id":        agent.ID,
				"checkpoint_id": cp.ID,
				"type":          cp.Type,
				"message":       cp.Message,
				"risk_level":    cp.RiskLevel,
				"created_at":    cp.CreatedAt,
			})
		}
		agents = append(agents, map[string]interface{}{
			"job_id":              agent.ID,
			"status":              agent.Status,
			"current_step":        agent.CurrentStep,
			"progress":            domain.Progress(agent.Status, agent.CurrentStep),
			"pending_checkpoints": len(pending),
			"created_at":          agent.CreatedAt,
		})
	}

	return map[string]interface{}{
		"summary": map[string]interface{}{
			"active_agents":         len(active),
			"pending_checkpoints":   len(allPending),
			"total_campaigns_today": limits["daily_campaigns"].Current,
			"emails_sent_today":     limits["daily_emails"].Current,
		},
		"active_agents":       agents,
		"pending_checkpoints": allPending,
		"safety_status":       limits,
	}
}

// SafetyStatus reports the current limit counters.
func (h *CampaignHandler) SafetyStatus(w http.ResponseWriter, r *http.Request) {
	limits := h.safety.Snapshot()
	JSON(w, http.StatusOK, map[string]interface{}{
		"current_limits":    limits,
		"compliance_status": h.safety.CheckCampaignLimits().Status,
		"alerts":            []string{},
	})
}

// EmergencyStopAll emergency-stops every active agent.
func (h *CampaignHandler) EmergencyStopAll(w http.ResponseWriter, r *http.Request) {
	stopped := h.campaigns.EmergencyStopAll()
	JSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Emergency stop executed",
		"agents_stopped": len(stopped),
		"job_ids":        stopped,
		"timestamp":      time.Now().UTC(),
	})
}

// Health reports service liveness with agent and checkpoint counts.
func (h *CampaignHandler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"agents": map[string]int{
			"active":        len(h.store.ListActive()),
			"total_created": h.store.Count(),
		},
		"checkpoints": map[string]int{
			"pending": len(h.checkpoints.Pending("")),
		},
	})
}
