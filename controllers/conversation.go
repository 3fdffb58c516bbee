package controllers

import (
	"log"

	"zapcrm/models"

	"github.com/jinzhu/gorm"
)

// resolveConversation encontra ou cria a conversation ativa de um
// (contato, connection). Regras:
//   - o snapshot connection_phone divergente do número atual da connection
//     marca a conversa como de outra identidade do canal: não reusa, cria nova;
//   - snapshot vazio com número atual conhecido é reparado na leitura;
//   - na criação dispara a distribuição de fila em background (melhor esforço).
func resolveConversation(dbc *gorm.DB, contact models.Contact, conn models.Connection) (models.Conversation, bool, error) {
	var conv models.Conversation
	err := dbc.
		Where("contact_id = ? AND connection_id = ? AND workspace_id = ? AND status = ?",
			contact.ID, conn.ID, conn.WorkspaceID, models.CONVERSATION_STATUS_ACTIVE).
		Order("id desc").
		First(&conv).Error

	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return models.Conversation{}, false, err
	}

	found := err == nil

	if found && conv.ConnectionPhone != "" && conn.PhoneNumber != "" && conv.ConnectionPhone != conn.PhoneNumber {
		log.Printf("conversation: connection %d phone changed (%s -> %s), starting fresh thread",
			conn.ID, conv.ConnectionPhone, conn.PhoneNumber)
		found = false
	}

	if found {
		if conv.ConnectionPhone == "" && conn.PhoneNumber != "" {
			if err := dbc.Model(&models.Conversation{}).
				Where("id = ?", conv.ID).
				Update("connection_phone", conn.PhoneNumber).Error; err != nil {
				log.Printf("conversation: backfill connection_phone failed: %v", err)
			} else {
				conv.ConnectionPhone = conn.PhoneNumber
			}
		}
		if err := activateQueueAgent(dbc, &conv, conn); err != nil {
			log.Printf("conversation: agent activation failed: %v", err)
		}
		return conv, false, nil
	}

	conv = models.Conversation{
		ContactID:       contact.ID,
		ConnectionID:    conn.ID,
		WorkspaceID:     conn.WorkspaceID,
		ConnectionPhone: conn.PhoneNumber,
		Status:          models.CONVERSATION_STATUS_ACTIVE,
		QueueID:         conn.QueueID,
	}
	if err := dbc.Create(&conv).Error; err != nil {
		return models.Conversation{}, false, err
	}

	if err := activateQueueAgent(dbc, &conv, conn); err != nil {
		log.Printf("conversation: agent activation failed: %v", err)
	}

	// Distribuição é fire-and-forget: falha é logada, nunca propaga.
	go distributeConversation(dbc, conv.ID, conn.QueueID)

	return conv, true, nil
}

// activateQueueAgent liga o agente de IA da fila da connection quando a
// conversation ainda está com o agente desligado.
func activateQueueAgent(dbc *gorm.DB, conv *models.Conversation, conn models.Connection) error {
	if conv.AgenteAtivo || conn.QueueID == nil {
		return nil
	}

	var queue models.Queue
	if err := dbc.First(&queue, *conn.QueueID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil
		}
		return err
	}
	if queue.AgentID == nil {
		return nil
	}

	if err := dbc.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]any{
			"agente_ativo":    true,
			"agent_active_id": *queue.AgentID,
		}).Error; err != nil {
		return err
	}
	conv.AgenteAtivo = true
	conv.AgentActiveID = queue.AgentID
	return nil
}

// distributeConversation atribui a conversa ao membro da fila com menos
// conversas ativas.
func distributeConversation(dbc *gorm.DB, conversationID int64, queueID *int64) {
	if queueID == nil {
		return
	}

	var members []models.QueueMember
	if err := dbc.Where("queue_id = ?", *queueID).Find(&members).Error; err != nil {
		log.Printf("conversation: queue distribution query failed: %v", err)
		return
	}
	if len(members) == 0 {
		return
	}

	var chosen *models.QueueMember
	best := -1
	for i := range members {
		var count int
		if err := dbc.Model(&models.Conversation{}).
			Where("assigned_user_id = ? AND status = ?", members[i].UserID, models.CONVERSATION_STATUS_ACTIVE).
			Count(&count).Error; err != nil {
			log.Printf("conversation: queue distribution count failed: %v", err)
			continue
		}
		if best == -1 || count < best {
			best = count
			chosen = &members[i]
		}
	}
	if chosen == nil {
		return
	}

	if err := dbc.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"assigned_user_id": chosen.UserID,
			"queue_id":         chosen.QueueID,
		}).Error; err != nil {
		log.Printf("conversation: queue distribution update failed: %v", err)
	}
}
