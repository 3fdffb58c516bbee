package workers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zapcrm/models"
)

func TestEnqueueEngineEventUsesWorkspaceOverride(t *testing.T) {
	dbc := newTestDB(t)
	cfg := testConfig()

	ws := models.Workspace{
		Name:              "Acme",
		FlowWebhookURL:    "https://n8n.acme.test/hook",
		FlowWebhookSecret: "ws-secret",
	}
	if err := dbc.Create(&ws).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := EnqueueEngineEvent(dbc, cfg, &ws, map[string]any{"event": "x"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var ev models.OutboxEvent
	if err := dbc.First(&ev).Error; err != nil {
		t.Fatalf("row not created: %v", err)
	}
	if ev.Endpoint != "https://n8n.acme.test/hook" || ev.Secret != "ws-secret" {
		t.Fatalf("workspace override not applied: %+v", ev)
	}
	if ev.Status != models.OUTBOX_STATUS_PENDING || ev.NextAttemptAt == nil {
		t.Fatalf("row not schedulable: %+v", ev)
	}
}

func TestEnqueueEngineEventFallsBackToServiceDefault(t *testing.T) {
	dbc := newTestDB(t)
	cfg := testConfig()

	ws := models.Workspace{Name: "Acme"}
	if err := dbc.Create(&ws).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := EnqueueEngineEvent(dbc, cfg, &ws, map[string]any{"event": "x"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var ev models.OutboxEvent
	if err := dbc.First(&ev).Error; err != nil {
		t.Fatalf("row not created: %v", err)
	}
	if ev.Endpoint != cfg.FlowEngine.WebhookURL {
		t.Fatalf("endpoint = %q", ev.Endpoint)
	}
}

func TestEnqueueEngineEventNoEndpointDrops(t *testing.T) {
	dbc := newTestDB(t)
	cfg := testConfig()
	cfg.FlowEngine.WebhookURL = ""

	if err := EnqueueEngineEvent(dbc, cfg, nil, map[string]any{"event": "x"}); err != nil {
		t.Fatalf("drop should not error: %v", err)
	}
	var count int
	dbc.Model(&models.OutboxEvent{}).Count(&count)
	if count != 0 {
		t.Fatal("event enqueued without any endpoint")
	}
}

func TestDeliverOutboxEventSuccess(t *testing.T) {
	dbc := newTestDB(t)

	var gotAuth string
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(engine.Close)

	now := time.Now()
	ev := models.OutboxEvent{
		ID:            "ev-1",
		Endpoint:      engine.URL,
		Secret:        "tok",
		Payload:       `{"event":"x"}`,
		Status:        models.OUTBOX_STATUS_DELIVERING,
		NextAttemptAt: &now,
	}
	if err := dbc.Create(&ev).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	deliverOutboxEvent(dbc, DefaultBackoffPolicy(5), ev.ID)

	var reloaded models.OutboxEvent
	if err := dbc.First(&reloaded, "id = ?", ev.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.OUTBOX_STATUS_DELIVERED {
		t.Fatalf("status = %q", reloaded.Status)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
}

func TestDeliverOutboxEventTransientFailureReschedules(t *testing.T) {
	dbc := newTestDB(t)

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(engine.Close)

	now := time.Now()
	ev := models.OutboxEvent{
		ID:            "ev-2",
		Endpoint:      engine.URL,
		Payload:       `{"event":"x"}`,
		Status:        models.OUTBOX_STATUS_DELIVERING,
		NextAttemptAt: &now,
	}
	if err := dbc.Create(&ev).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	deliverOutboxEvent(dbc, DefaultBackoffPolicy(5), ev.ID)

	var reloaded models.OutboxEvent
	if err := dbc.First(&reloaded, "id = ?", ev.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.OUTBOX_STATUS_PENDING {
		t.Fatalf("status = %q, want pending for retry", reloaded.Status)
	}
	if reloaded.Attempts != 1 {
		t.Fatalf("attempts = %d", reloaded.Attempts)
	}
	if reloaded.NextAttemptAt == nil || !reloaded.NextAttemptAt.After(time.Now()) {
		t.Fatal("next attempt not pushed into the future")
	}
	if reloaded.LastError == "" {
		t.Fatal("last_error not recorded")
	}
}

func TestDeliverOutboxEventPermanentFailure(t *testing.T) {
	dbc := newTestDB(t)

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(engine.Close)

	now := time.Now()
	ev := models.OutboxEvent{
		ID:            "ev-3",
		Endpoint:      engine.URL,
		Payload:       `{"event":"x"}`,
		Status:        models.OUTBOX_STATUS_DELIVERING,
		NextAttemptAt: &now,
	}
	if err := dbc.Create(&ev).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	deliverOutboxEvent(dbc, DefaultBackoffPolicy(5), ev.ID)

	var reloaded models.OutboxEvent
	if err := dbc.First(&reloaded, "id = ?", ev.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.OUTBOX_STATUS_FAILED {
		t.Fatalf("status = %q, want failed (401 never retries)", reloaded.Status)
	}
}

func TestDeliverOutboxEventExhaustsAttempts(t *testing.T) {
	dbc := newTestDB(t)

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(engine.Close)

	now := time.Now()
	ev := models.OutboxEvent{
		ID:            "ev-4",
		Endpoint:      engine.URL,
		Payload:       `{"event":"x"}`,
		Status:        models.OUTBOX_STATUS_DELIVERING,
		Attempts:      2, // próxima falha estoura o limite
		NextAttemptAt: &now,
	}
	if err := dbc.Create(&ev).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	deliverOutboxEvent(dbc, DefaultBackoffPolicy(3), ev.ID)

	var reloaded models.OutboxEvent
	if err := dbc.First(&reloaded, "id = ?", ev.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.OUTBOX_STATUS_FAILED {
		t.Fatalf("status = %q, want failed after max attempts", reloaded.Status)
	}
	if reloaded.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", reloaded.Attempts)
	}
}

func TestStaleDeliveringClaimRequeued(t *testing.T) {
	dbc := newTestDB(t)

	now := time.Now()
	stale := models.OutboxEvent{ID: "stale-1", Endpoint: "http://engine.test/hook", Payload: `{}`, Status: models.OUTBOX_STATUS_DELIVERING, Attempts: 1, NextAttemptAt: &now}
	fresh := models.OutboxEvent{ID: "fresh-1", Endpoint: "http://engine.test/hook", Payload: `{}`, Status: models.OUTBOX_STATUS_DELIVERING, NextAttemptAt: &now}
	for _, ev := range []models.OutboxEvent{stale, fresh} {
		row := ev
		if err := dbc.Create(&row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// processo morreu no meio da entrega: o claim envelheceu além do TTL
	past := time.Now().Add(-deliveryClaimTTL - time.Minute)
	if err := dbc.Model(&models.OutboxEvent{}).Where("id = ?", "stale-1").
		UpdateColumn("updated_at", past).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	requeueStaleDeliveries(dbc)

	var reloaded models.OutboxEvent
	if err := dbc.First(&reloaded, "id = ?", "stale-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.OUTBOX_STATUS_PENDING {
		t.Fatalf("stale claim status = %q, want pending", reloaded.Status)
	}
	if reloaded.NextAttemptAt == nil || reloaded.NextAttemptAt.After(time.Now()) {
		t.Fatal("requeued event not immediately due")
	}

	var untouched models.OutboxEvent
	if err := dbc.First(&untouched, "id = ?", "fresh-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if untouched.Status != models.OUTBOX_STATUS_DELIVERING {
		t.Fatalf("in-flight claim touched: %q", untouched.Status)
	}
}

func TestDispatchDueOutboxClaimsAndDelivers(t *testing.T) {
	dbc := newTestDB(t)

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(engine.Close)

	due := time.Now().Add(-time.Second)
	future := time.Now().Add(time.Hour)
	for _, ev := range []models.OutboxEvent{
		{ID: "due-1", Endpoint: engine.URL, Payload: `{}`, Status: models.OUTBOX_STATUS_PENDING, NextAttemptAt: &due},
		{ID: "later-1", Endpoint: engine.URL, Payload: `{}`, Status: models.OUTBOX_STATUS_PENDING, NextAttemptAt: &future},
	} {
		row := ev
		if err := dbc.Create(&row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	dispatchDueOutbox(dbc, DefaultBackoffPolicy(5))

	waitFor(t, 2*time.Second, func() bool {
		var ev models.OutboxEvent
		if err := dbc.First(&ev, "id = ?", "due-1").Error; err != nil {
			return false
		}
		return ev.Status == models.OUTBOX_STATUS_DELIVERED
	})

	var later models.OutboxEvent
	if err := dbc.First(&later, "id = ?", "later-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if later.Status != models.OUTBOX_STATUS_PENDING {
		t.Fatalf("future event touched: %q", later.Status)
	}
}
