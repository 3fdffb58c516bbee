package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"zapcrm/config"
	dbpkg "zapcrm/db"
	"zapcrm/models"
	"zapcrm/tools"
	"zapcrm/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// Eventos de ack de entrega.
func isAckEvent(event string) bool {
	return event == "messages.update" || event == "message.ack"
}

// Eventos que carregam mensagem nova (inbound ou eco de envio próprio).
func isMessageEvent(event string) bool {
	return event == "messages.upsert" || event == "send.message"
}

func isContactEvent(event string) bool {
	return event == "contacts.update" || event == "contacts.upsert"
}

// EvolutionWebhook é o ponto de entrada dos eventos do provider.
// POST /api/webhook/evolution
func EvolutionWebhook(cfg config.Configuration) gin.HandlerFunc {
	ttl := time.Duration(cfg.Automation.DedupTTLSeconds) * time.Second
	deduper := newEventDeduper(ttl)

	return func(c *gin.Context) {
		dbc := dbpkg.DBInstance(c)
		if dbc == nil {
			RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
			return
		}

		if cfg.Webhook.Secret != "" {
			got := strings.TrimSpace(c.GetHeader("apikey"))
			if got != cfg.Webhook.Secret {
				if cfg.Webhook.Strict {
					RespondError(c, "unauthorized", http.StatusUnauthorized)
					return
				}
				log.Printf("webhook: apikey mismatch (lax mode, continuing)")
			}
		}

		raw, err := c.GetRawData()
		if err != nil {
			RespondError(c, "failed to read body", http.StatusBadRequest)
			return
		}

		var payload EvolutionWebhookPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			RespondError(c, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(payload.Event) == "" {
			RespondError(c, "missing event", http.StatusBadRequest)
			return
		}

		// dedup: set local (fast path) + linha durável (vale entre instâncias)
		fingerprint := EventFingerprint(payload)
		if deduper.Check(fingerprint) {
			RespondSuccess(c, gin.H{"success": true, "action": "duplicate_skipped"})
			return
		}
		fresh, err := ClaimProcessedEvent(dbc, fingerprint, ttl)
		if err != nil {
			RespondError(c, "dedup store failure: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if !fresh {
			RespondSuccess(c, gin.H{"success": true, "action": "duplicate_skipped"})
			return
		}

		switch {
		case payload.Event == "connection.update":
			RespondSuccess(c, gin.H{"success": true, "action": "ignored"})

		case isAckEvent(payload.Event):
			// acks são tratados por inteiro aqui e NÃO passam pelo forward genérico
			action, err := ReconcileAck(dbc, cfg, payload.Data)
			if err != nil {
				RespondError(c, "ack reconcile failure: "+err.Error(), http.StatusInternalServerError)
				return
			}
			RespondSuccess(c, gin.H{"success": true, "action": action})

		case isContactEvent(payload.Event):
			handleContactSync(c, dbc, payload)

		case isMessageEvent(payload.Event):
			handleMessageEvent(c, dbc, cfg, payload, raw)

		default:
			log.Printf("webhook: unhandled event %q ignored", payload.Event)
			RespondSuccess(c, gin.H{"success": true, "action": "ignored"})
		}
	}
}

// handleContactSync atualiza nome/avatar de contato existente a partir de
// eventos de sincronização do provider.
func handleContactSync(c *gin.Context, dbc *gorm.DB, payload EvolutionWebhookPayload) {
	var conn models.Connection
	if err := dbc.Where("instance_name = ?", payload.Instance).First(&conn).Error; err != nil {
		log.Printf("webhook: contact sync for unknown instance %q", payload.Instance)
		RespondSuccess(c, gin.H{"success": true, "action": "unknown_instance"})
		return
	}

	phone := tools.CanonicalPhone(payload.Data.ChatJid())
	if phone == "" {
		RespondSuccess(c, gin.H{"success": true, "action": "invalid_phone"})
		return
	}

	updates := map[string]any{}
	if payload.Data.PushName != "" {
		updates["name"] = payload.Data.PushName
	}
	if payload.Data.ProfilePicURL != "" {
		updates["profile_image_url"] = payload.Data.ProfilePicURL
	}
	if len(updates) == 0 {
		RespondSuccess(c, gin.H{"success": true, "action": "nothing_to_sync"})
		return
	}

	if err := dbc.Model(&models.Contact{}).
		Where("phone = ? AND workspace_id = ?", phone, conn.WorkspaceID).
		Updates(updates).Error; err != nil {
		RespondError(c, "contact sync failure: "+err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, gin.H{"success": true, "action": "contact_synced"})
}

// handleMessageEvent é o coração do pipeline inbound: normaliza o telefone,
// resolve contato e conversation, grava a mensagem, cria card quando
// configurado, empilha o forward pro engine e dispara a avaliação do trigger
// por contagem de mensagens.
func handleMessageEvent(c *gin.Context, dbc *gorm.DB, cfg config.Configuration, payload EvolutionWebhookPayload, raw []byte) {
	jid := payload.Data.ChatJid()

	// grupos e broadcast nunca são processados nem encaminhados
	if tools.IsGroupJid(jid) || tools.IsBroadcastJid(jid) {
		RespondSuccess(c, gin.H{"success": true, "action": "filtered"})
		return
	}

	var conn models.Connection
	if err := dbc.Where("instance_name = ?", payload.Instance).First(&conn).Error; err != nil {
		log.Printf("webhook: message event for unknown instance %q", payload.Instance)
		RespondSuccess(c, gin.H{"success": true, "action": "unknown_instance"})
		return
	}

	phone := tools.CanonicalPhone(jid)
	if phone == "" {
		log.Printf("webhook: could not extract phone from jid %q", jid)
		RespondSuccess(c, gin.H{"success": true, "action": "invalid_phone"})
		return
	}

	fromMe := payload.Data.IsFromMe()

	contact, err := upsertContact(dbc, conn, phone, payload.Data, fromMe)
	if err != nil {
		RespondError(c, "contact upsert failure: "+err.Error(), http.StatusInternalServerError)
		return
	}

	conv, _, err := resolveConversation(dbc, contact, conn)
	if err != nil {
		RespondError(c, "conversation resolve failure: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// mesmo id de mensagem já gravado nessa conversation = redelivery
	externalID := payload.Data.BestMessageIdentifier()
	if externalID != "" {
		var count int
		if err := dbc.Model(&models.Message{}).
			Where("conversation_id = ? AND (external_id = ? OR evolution_key_id = ?)", conv.ID, externalID, externalID).
			Count(&count).Error; err != nil {
			RespondError(c, "duplicate check failure: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if count > 0 {
			RespondSuccess(c, gin.H{"success": true, "action": "duplicate_message"})
			return
		}
	}

	content, fileURL, msgType := extractMessageContent(payload.Data.Message)

	senderType := models.MESSAGE_SENDER_CONTACT
	status := models.MESSAGE_STATUS_DELIVERED
	if fromMe {
		senderType = models.MESSAGE_SENDER_AGENT
		status = models.MESSAGE_STATUS_SENT
	}

	var providerMoment *time.Time
	if payload.Data.MessageTimestamp > 0 {
		t := time.Unix(payload.Data.MessageTimestamp, 0)
		providerMoment = &t
	}

	msg := models.Message{
		ConversationID:      conv.ID,
		ExternalID:          externalID,
		EvolutionKeyID:      payload.Data.Key.ID,
		EvolutionShortKeyID: payload.Data.KeyID,
		SenderType:          senderType,
		Status:              status,
		Content:             content,
		MessageType:         msgType,
		FileURL:             fileURL,
		ProviderMoment:      providerMoment,
	}
	if err := dbc.Create(&msg).Error; err != nil {
		RespondError(c, "message store failure: "+err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	convUpdates := map[string]any{"last_activity_at": &now}
	if fromMe {
		convUpdates["unread_count"] = 0
	} else {
		convUpdates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	if err := dbc.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(convUpdates).Error; err != nil {
		log.Printf("webhook: conversation counters update failed: %v", err)
	}

	if !fromMe {
		if err := autoCreateCard(dbc, conn, contact, conv); err != nil {
			log.Printf("webhook: card auto-create failed: %v", err)
		}
	}

	forwardMessageEvent(dbc, cfg, payload, conn, conv, phone, fromMe, raw)

	if !fromMe {
		go workers.EvaluateMessageCountTriggers(dbc, cfg, conv.ID)
	}

	RespondWith(c, http.StatusCreated, gin.H{
		"success":         true,
		"action":          "message_created",
		"message_id":      msg.ID,
		"conversation_id": conv.ID,
	})
}

func upsertContact(dbc *gorm.DB, conn models.Connection, phone string, data EvolutionEventData, fromMe bool) (models.Contact, error) {
	var contact models.Contact
	err := dbc.Where("phone = ? AND workspace_id = ?", phone, conn.WorkspaceID).First(&contact).Error
	if err == nil {
		updates := map[string]any{}
		if !fromMe && data.PushName != "" && contact.Name == "" {
			updates["name"] = data.PushName
		}
		if data.ProfilePicURL != "" && contact.ProfileImageURL == "" {
			updates["profile_image_url"] = data.ProfilePicURL
		}
		if len(updates) > 0 {
			if err := dbc.Model(&models.Contact{}).Where("id = ?", contact.ID).Updates(updates).Error; err != nil {
				log.Printf("webhook: contact update failed: %v", err)
			}
		}
		return contact, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return models.Contact{}, err
	}

	contact = models.Contact{
		Phone:           phone,
		WorkspaceID:     conn.WorkspaceID,
		ProfileImageURL: data.ProfilePicURL,
	}
	if !fromMe {
		contact.Name = data.PushName
	}
	if err := dbc.Create(&contact).Error; err != nil {
		if models.IsUniqueViolation(err) {
			// corrida com outro evento do mesmo número; lê o vencedor
			if err2 := dbc.Where("phone = ? AND workspace_id = ?", phone, conn.WorkspaceID).First(&contact).Error; err2 == nil {
				return contact, nil
			}
		}
		return models.Contact{}, err
	}
	return contact, nil
}

// autoCreateCard abre um card no pipeline/coluna default da connection quando
// o contato ainda não tem card aberto ali.
func autoCreateCard(dbc *gorm.DB, conn models.Connection, contact models.Contact, conv models.Conversation) error {
	if !conn.AutoCreateCRMCard || conn.DefaultPipelineID == nil || conn.DefaultColumnID == nil {
		return nil
	}

	var count int
	if err := dbc.Model(&models.Card{}).
		Where("contact_id = ? AND pipeline_id = ?", contact.ID, *conn.DefaultPipelineID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	card := models.Card{
		Title:           contact.Name,
		PipelineID:      *conn.DefaultPipelineID,
		ColumnID:        *conn.DefaultColumnID,
		ContactID:       contact.ID,
		ConversationID:  conv.ID,
		WorkspaceID:     conn.WorkspaceID,
		MovedToColumnAt: &now,
	}
	if card.Title == "" {
		card.Title = contact.Phone
	}
	return dbc.Create(&card).Error
}

// forwardMessageEvent empilha no outbox o evento normalizado para o workflow
// engine. Falha aqui nunca derruba a resposta ao provider.
func forwardMessageEvent(dbc *gorm.DB, cfg config.Configuration, payload EvolutionWebhookPayload, conn models.Connection, conv models.Conversation, phone string, fromMe bool, raw []byte) {
	direction := "inbound"
	if fromMe {
		direction = "outbound"
	}

	var original map[string]any
	_ = json.Unmarshal(raw, &original)

	enginePayload := map[string]any{
		"event":           payload.Event,
		"event_type":      tools.EngineEventType(payload.Event),
		"direction":       direction,
		"phone_number":    phone,
		"workspace_id":    conn.WorkspaceID,
		"connection_id":   conn.ID,
		"conversation_id": conv.ID,
		"agente_ativo":    conv.AgenteAtivo,
		"original":        original,
	}

	var workspace models.Workspace
	ws := &workspace
	if err := dbc.First(ws, conn.WorkspaceID).Error; err != nil {
		ws = nil
	}
	if err := workers.EnqueueEngineEvent(dbc, cfg, ws, enginePayload); err != nil {
		log.Printf("webhook: enqueue engine forward failed: %v", err)
	}
}
