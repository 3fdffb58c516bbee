package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"zapcrm/config"
	"zapcrm/models"
	"zapcrm/tools"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// EnqueueEngineEvent grava uma notificação pro workflow engine no outbox.
// O endpoint/secret do workspace tem precedência sobre o default do serviço.
// Sem endpoint nenhum configurado, o evento é descartado com log (workspace
// sem engine plugado é estado válido).
func EnqueueEngineEvent(dbc *gorm.DB, cfg config.Configuration, workspace *models.Workspace, payload map[string]any) error {
	endpoint := cfg.FlowEngine.WebhookURL
	secret := cfg.FlowEngine.Secret
	if workspace != nil && workspace.FlowWebhookURL != "" {
		endpoint = workspace.FlowWebhookURL
		secret = workspace.FlowWebhookSecret
	}
	if endpoint == "" {
		log.Printf("outbox: no engine endpoint configured, dropping event")
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	now := time.Now()
	ev := models.OutboxEvent{
		ID:            uuid.NewString(),
		Endpoint:      endpoint,
		Secret:        secret,
		Payload:       string(b),
		Status:        models.OUTBOX_STATUS_PENDING,
		NextAttemptAt: &now,
	}
	return dbc.Create(&ev).Error
}

// StartOutboxDispatcher starts a loop that delivers pending outbox events
// whose NextAttemptAt <= now.
func StartOutboxDispatcher(dbc *gorm.DB, cfg config.Configuration) {
	policy := DefaultBackoffPolicy(cfg.Automation.OutboxMaxAttempts)

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			dispatchDueOutbox(dbc, policy)
		}
	}()
}

// Claims em delivering mais velhos que isso são de um processo que morreu no
// meio da entrega; voltam pra fila.
const deliveryClaimTTL = 5 * time.Minute

func requeueStaleDeliveries(dbc *gorm.DB) {
	now := time.Now()
	res := dbc.Model(&models.OutboxEvent{}).
		Where("status = ? AND updated_at <= ?", models.OUTBOX_STATUS_DELIVERING, now.Add(-deliveryClaimTTL)).
		Updates(map[string]any{
			"status":          models.OUTBOX_STATUS_PENDING,
			"next_attempt_at": &now,
		})
	if res.Error != nil {
		log.Printf("outbox: stale claim requeue failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("outbox: requeued %d stale deliveries", res.RowsAffected)
	}
}

func dispatchDueOutbox(dbc *gorm.DB, policy *BackoffPolicy) {
	requeueStaleDeliveries(dbc)

	now := time.Now()

	var events []models.OutboxEvent
	if err := dbc.
		Where("status = ?", models.OUTBOX_STATUS_PENDING).
		Where("next_attempt_at IS NOT NULL AND next_attempt_at <= ?", now).
		Order("next_attempt_at asc").
		Limit(50).
		Find(&events).Error; err != nil {
		log.Printf("outbox: query error: %v", err)
		return
	}

	for _, ev := range events {
		// lock otimista: só entrega quem conseguir mudar o status
		res := dbc.Model(&models.OutboxEvent{}).
			Where("id = ? AND status = ?", ev.ID, models.OUTBOX_STATUS_PENDING).
			Update("status", models.OUTBOX_STATUS_DELIVERING)
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		go deliverOutboxEvent(dbc, policy, ev.ID)
	}
}

func deliverOutboxEvent(dbc *gorm.DB, policy *BackoffPolicy, eventID string) {
	var ev models.OutboxEvent
	if err := dbc.Where("id = ?", eventID).First(&ev).Error; err != nil {
		return
	}
	if ev.Status != models.OUTBOX_STATUS_DELIVERING {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := tools.PostEngineEvent(ctx, ev.Endpoint, ev.Secret, []byte(ev.Payload))
	if err == nil {
		_ = dbc.Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
			Updates(map[string]any{
				"status":     models.OUTBOX_STATUS_DELIVERED,
				"last_error": "",
			}).Error
		return
	}

	attempts := ev.Attempts + 1
	log.Printf("outbox: delivery attempt %d failed for %s: %v", attempts, ev.ID, err)

	if attempts >= policy.MaxAttempts || !policy.Retryable(err) {
		_ = dbc.Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
			Updates(map[string]any{
				"status":     models.OUTBOX_STATUS_FAILED,
				"attempts":   attempts,
				"last_error": err.Error(),
			}).Error
		return
	}

	next := time.Now().Add(policy.NextDelay(attempts))
	_ = dbc.Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).
		Updates(map[string]any{
			"status":          models.OUTBOX_STATUS_PENDING,
			"attempts":        attempts,
			"next_attempt_at": &next,
			"last_error":      err.Error(),
		}).Error
}
