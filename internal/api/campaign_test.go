package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/revreach/internal/campaign"
	"github.com/ashureev/revreach/internal/checkpoint"
	"github.com/ashureev/revreach/internal/domain"
	"github.com/ashureev/revreach/internal/safety"
	"github.com/ashureev/revreach/internal/state"
)

type stubDiscoverer struct{ companies []string }

func (s stubDiscoverer) Discover(ctx context.Context, sector string) ([]string, error) {
	return s.companies, nil
}

type stubContexts struct{}

func (stubContexts) FetchExternal(ctx context.Context, company string) (string, error) {
	return company + " is growing.", nil
}

func (stubContexts) FetchInternal(ctx context.Context, company string, hints []string) (string, error) {
	return "Relevant product notes.", nil
}

type stubGenerator struct{ content string }

func (s stubGenerator) GenerateEmail(ctx context.Context, company, externalCtx, internalCtx string) (string, error) {
	return s.content, nil
}

type stubNotifier struct{}

func (stubNotifier) Send(ctx context.Context, to, subject, body string) error { return nil }

type testEnv struct {
	srv         *httptest.Server
	store       *state.Store
	checkpoints *checkpoint.Manager
}

func newTestEnv(t *testing.T, companies []string, emailContent string, limits safety.Limits) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := state.NewStore()
	cps := checkpoint.NewManager()
	ctrl := safety.NewController(limits)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := campaign.NewService(ctx, store, cps, ctrl, campaign.Collaborators{
		Discoverer: stubDiscoverer{companies: companies},
		Contexts:   stubContexts{},
		Generator:  stubGenerator{content: emailContent},
		Notifier:   stubNotifier{},
	}, campaign.Options{}, log)

	h := NewCampaignHandler(NewHandler(store, cps, ctrl, svc))
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, checkpoints: cps}
}

func (e *testEnv) post(t *testing.T, path string, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// longSafeEmail scores low risk so campaigns complete without checkpoints.
func longSafeEmail() string {
	return "Hello team,\n\n" + strings.Repeat("partnership value delivery insight ", 15) + "\n\nTalk soon"
}

func waitStatus(t *testing.T, store *state.Store, jobID string, status domain.Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if agent, err := store.Get(jobID); err == nil && agent.Status == status {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for agent %s to reach %s", jobID, status)
}

func TestStartCampaignAccepted(t *testing.T) {
	env := newTestEnv(t, []string{"Contoso"}, longSafeEmail(), safety.DefaultLimits())

	resp, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector":          "SaaS",
		"recipient_email": "buyer@example.com",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatalf("missing job_id in %v", body)
	}
	if body["autonomy_level"] != "supervised" {
		t.Fatalf("autonomy_level = %v, want supervised default", body["autonomy_level"])
	}
	waitStatus(t, env.store, jobID, domain.StatusCompleted)
}

func TestStartCampaignValidation(t *testing.T) {
	env := newTestEnv(t, nil, longSafeEmail(), safety.DefaultLimits())

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing sector", map[string]any{"recipient_email": "b@example.com"}},
		{"bad email", map[string]any{"sector": "SaaS", "recipient_email": "not-an-email"}},
		{"bad autonomy", map[string]any{"sector": "SaaS", "recipient_email": "b@example.com", "autonomy_level": "yolo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.post(t, "/start-agent-campaign", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestStartCampaignLimitExceeded(t *testing.T) {
	limits := safety.DefaultLimits()
	limits.DailyCampaigns = 1
	env := newTestEnv(t, nil, longSafeEmail(), limits)

	resp, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first start = %d, want 202", resp.StatusCode)
	}
	waitStatus(t, env.store, body["job_id"].(string), domain.StatusCompleted)

	resp, body = env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second start = %d, want 429", resp.StatusCode)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("missing error in %v", body)
	}
	if got := env.store.Count(); got != 1 {
		t.Fatalf("agents = %d, want 1", got)
	}
}

func TestAgentStatus(t *testing.T) {
	env := newTestEnv(t, []string{"Contoso"}, longSafeEmail(), safety.DefaultLimits())

	resp, _ := env.get(t, "/agent-status/unknown-job")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job = %d, want 404", resp.StatusCode)
	}

	_, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	jobID := body["job_id"].(string)
	waitStatus(t, env.store, jobID, domain.StatusCompleted)

	resp, status := env.get(t, "/agent-status/"+jobID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if status["agent_status"] != "completed" {
		t.Fatalf("agent_status = %v", status["agent_status"])
	}
	if status["progress"] != float64(100) {
		t.Fatalf("progress = %v, want 100", status["progress"])
	}
	stats, _ := status["stats"].(map[string]any)
	// discover + gather + generate + send for a single company
	if stats["successful_actions"] != float64(4) {
		t.Fatalf("stats = %v", stats)
	}
}

func TestAgentAnalytics(t *testing.T) {
	env := newTestEnv(t, []string{"Contoso"}, "Guaranteed results, limited time offer.", safety.DefaultLimits())

	resp, _ := env.get(t, "/agent-analytics/unknown-job")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job = %d, want 404", resp.StatusCode)
	}

	_, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	jobID := body["job_id"].(string)
	waitStatus(t, env.store, jobID, domain.StatusWaitingApproval)

	cp := env.checkpoints.Pending(jobID)[0]
	resp, _ = env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": cp.ID, "decision": "approve", "feedback": "content is acceptable",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve = %d, want 200", resp.StatusCode)
	}
	waitStatus(t, env.store, jobID, domain.StatusCompleted)

	resp, analytics := env.get(t, "/agent-analytics/"+jobID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analytics = %d, want 200", resp.StatusCode)
	}
	perf, _ := analytics["performance"].(map[string]any)
	// discover + gather + generate + send for a single company
	if perf["total_actions"] != float64(4) {
		t.Fatalf("total_actions = %v, want 4", perf["total_actions"])
	}
	if perf["success_rate"] != float64(100) {
		t.Fatalf("success_rate = %v, want 100", perf["success_rate"])
	}
	avg, _ := perf["avg_action_times"].(map[string]any)
	send, _ := avg["send_email"].(map[string]any)
	if send["count"] != float64(1) {
		t.Fatalf("send_email timing = %v, want count 1", send)
	}
	cpStats, _ := analytics["checkpoint_analytics"].(map[string]any)
	if cpStats["resolved_checkpoints"] != float64(1) || cpStats["pending_checkpoints"] != float64(0) {
		t.Fatalf("checkpoint analytics = %v", cpStats)
	}
	if cpStats["approval_rate"] != float64(100) {
		t.Fatalf("approval_rate = %v, want 100", cpStats["approval_rate"])
	}
	timeline, _ := analytics["timeline"].([]any)
	if len(timeline) != 4 {
		t.Fatalf("timeline entries = %d, want 4", len(timeline))
	}
}

func TestApproveCheckpointValidation(t *testing.T) {
	env := newTestEnv(t, nil, longSafeEmail(), safety.DefaultLimits())

	resp, _ := env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": "missing", "decision": "approve",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown checkpoint = %d, want 404", resp.StatusCode)
	}

	cp := env.checkpoints.Create("job-1", domain.CheckpointSendApproval, domain.RiskMedium, "review", nil, true)

	resp, _ = env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": cp.ID, "decision": "escalate",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid decision = %d, want 400", resp.StatusCode)
	}

	resp, _ = env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": cp.ID, "decision": "modify",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("modify without content = %d, want 400", resp.StatusCode)
	}

	high := env.checkpoints.Create("job-1", domain.CheckpointSendApproval, domain.RiskHigh, "review", nil, true)
	resp, _ = env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": high.ID, "decision": "approve",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("high-risk approve without feedback = %d, want 400", resp.StatusCode)
	}

	resp, _ = env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": cp.ID, "decision": "reject", "feedback": "wrong audience",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject = %d, want 200", resp.StatusCode)
	}

	resp, _ = env.post(t, "/approve-checkpoint", map[string]any{
		"checkpoint_id": cp.ID, "decision": "approve",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double resolve = %d, want 409", resp.StatusCode)
	}
}

func TestInterventionErrors(t *testing.T) {
	env := newTestEnv(t, nil, longSafeEmail(), safety.DefaultLimits())

	resp, _ := env.post(t, "/agent-intervention", map[string]any{
		"job_id": "missing", "action": "pause",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown agent = %d, want 404", resp.StatusCode)
	}

	_, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	jobID := body["job_id"].(string)
	waitStatus(t, env.store, jobID, domain.StatusCompleted)

	resp, _ = env.post(t, "/agent-intervention", map[string]any{
		"job_id": jobID, "action": "pause",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("pause completed agent = %d, want 400", resp.StatusCode)
	}
}

func TestDashboardAndHealth(t *testing.T) {
	env := newTestEnv(t, []string{"Contoso"}, longSafeEmail(), safety.DefaultLimits())

	_, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	waitStatus(t, env.store, body["job_id"].(string), domain.StatusCompleted)

	resp, dash := env.get(t, "/agent-dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard = %d, want 200", resp.StatusCode)
	}
	summary, _ := dash["summary"].(map[string]any)
	if summary["emails_sent_today"] != float64(1) {
		t.Fatalf("emails_sent_today = %v, want 1", summary["emails_sent_today"])
	}
	if _, ok := dash["safety_status"]; !ok {
		t.Fatalf("missing safety_status in %v", dash)
	}

	resp, health := env.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d, want 200", resp.StatusCode)
	}
	if health["status"] != "healthy" {
		t.Fatalf("health status = %v", health["status"])
	}

	resp, ss := env.get(t, "/safety-status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("safety-status = %d, want 200", resp.StatusCode)
	}
	if _, ok := ss["current_limits"]; !ok {
		t.Fatalf("missing current_limits in %v", ss)
	}
}

func TestEmergencyStopAllEndpoint(t *testing.T) {
	// High-risk content parks the agent at a send approval checkpoint.
	env := newTestEnv(t, []string{"Contoso"}, "We heard about the layoffs at your company.", safety.DefaultLimits())

	_, body := env.post(t, "/start-agent-campaign", map[string]any{
		"sector": "SaaS", "recipient_email": "b@example.com",
	})
	jobID := body["job_id"].(string)
	waitStatus(t, env.store, jobID, domain.StatusWaitingApproval)

	resp, out := env.post(t, "/emergency-stop-all", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("emergency-stop-all = %d, want 200", resp.StatusCode)
	}
	if out["agents_stopped"] != float64(1) {
		t.Fatalf("agents_stopped = %v, want 1", out["agents_stopped"])
	}
	waitStatus(t, env.store, jobID, domain.StatusFailed)
}
