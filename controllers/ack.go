package controllers

import (
	"log"
	"time"

	"zapcrm/config"
	"zapcrm/models"
	"zapcrm/workers"

	"github.com/jinzhu/gorm"
)

// Nomes de status que o provider usa nos eventos de ack.
var providerStatusMap = map[string]string{
	"PENDING":      models.MESSAGE_STATUS_SENDING,
	"SERVER_ACK":   models.MESSAGE_STATUS_SENT,
	"DELIVERY_ACK": models.MESSAGE_STATUS_DELIVERED,
	"READ":         models.MESSAGE_STATUS_READ,
	// played fica além de read e não tem nível próprio no reticulado gravado
	"PLAYED": models.MESSAGE_STATUS_READ,
}

// Níveis numéricos de ack (escala do provider).
var providerAckMap = map[int]string{
	1: models.MESSAGE_STATUS_SENDING,
	2: models.MESSAGE_STATUS_SENT,
	3: models.MESSAGE_STATUS_DELIVERED,
	4: models.MESSAGE_STATUS_READ,
	5: models.MESSAGE_STATUS_READ,
}

// statusFromAckEvent traduz o evento do provider para o status interno.
// Nome tem precedência sobre o nível numérico.
func statusFromAckEvent(data EvolutionEventData) string {
	if s, ok := providerStatusMap[data.Status]; ok {
		return s
	}
	if data.Ack != nil {
		if s, ok := providerAckMap[*data.Ack]; ok {
			return s
		}
	}
	return ""
}

// ReconcileAck casa um recibo de entrega com a mensagem outbound armazenada e
// avança o status de forma monotônica. Regressões são descartadas; mensagem
// não encontrada é no-op (a redelivery do mesmo ack é o retry implícito).
func ReconcileAck(dbc *gorm.DB, cfg config.Configuration, data EvolutionEventData) (string, error) {
	newStatus := statusFromAckEvent(data)
	if newStatus == "" {
		log.Printf("ack: unknown provider status %q (ack=%v)", data.Status, data.Ack)
		return "unknown_status", nil
	}

	ids := make([]string, 0, 3)
	for _, id := range []string{data.Key.ID, data.MessageID, data.KeyID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		log.Printf("ack: event carries no message identifier")
		return "no_identifier", nil
	}

	var msg models.Message
	err := dbc.
		Where("evolution_key_id IN (?) OR evolution_short_key_id IN (?) OR external_id IN (?)", ids, ids, ids).
		Order("id desc").
		First(&msg).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			log.Printf("ack: no stored message for ids %v", ids)
			return "message_not_found", nil
		}
		return "", err
	}

	currentLevel := models.StatusRank(msg.Status)
	newLevel := models.StatusRank(newStatus)
	if newLevel < currentLevel {
		log.Printf("ack: discarding regression %s(%d) -> %s(%d) for message %d",
			msg.Status, currentLevel, newStatus, newLevel, msg.ID)
		return "status_regression_discarded", nil
	}

	now := time.Now()
	updates := map[string]any{"status": newStatus}

	// backfill dos identificadores que chegaram agora e ainda faltavam
	if msg.EvolutionKeyID == "" && data.MessageID != "" {
		updates["evolution_key_id"] = data.MessageID
	}
	if msg.EvolutionKeyID == "" && data.Key.ID != "" {
		updates["evolution_key_id"] = data.Key.ID
	}
	if msg.EvolutionShortKeyID == "" && data.KeyID != "" {
		updates["evolution_short_key_id"] = data.KeyID
	}

	// carimbos de limiar: gravados uma vez, nunca sobrescritos
	if newLevel >= models.StatusRank(models.MESSAGE_STATUS_DELIVERED) && msg.DeliveredAt == nil {
		updates["delivered_at"] = &now
	}
	if newLevel >= models.StatusRank(models.MESSAGE_STATUS_READ) && msg.ReadAt == nil {
		updates["read_at"] = &now
	}

	if err := dbc.Model(&models.Message{}).Where("id = ?", msg.ID).Updates(updates).Error; err != nil {
		return "", err
	}

	// notifica o engine com o mínimo necessário; entrega via outbox
	var conv models.Conversation
	if err := dbc.First(&conv, msg.ConversationID).Error; err == nil {
		var workspace models.Workspace
		ws := &workspace
		if err := dbc.First(ws, conv.WorkspaceID).Error; err != nil {
			ws = nil
		}
		payload := map[string]any{
			"event":           "messages.update",
			"event_type":      "update",
			"workspace_id":    conv.WorkspaceID,
			"connection_id":   conv.ConnectionID,
			"conversation_id": conv.ID,
			"message_id":      msg.ID,
			"external_id":     msg.ExternalID,
			"status":          newStatus,
		}
		if err := workers.EnqueueEngineEvent(dbc, cfg, ws, payload); err != nil {
			log.Printf("ack: enqueue status event failed: %v", err)
		}
	}

	return "status_updated", nil
}
