package controllers

import (
	"context"
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

// EngineWebhook é o caminho de volta do workflow engine: o n8n responde a
// conversa por aqui (outbound) ou injeta mensagens normalizadas (inbound).
// POST /api/webhook/engine
func EngineWebhook(cfg config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbc := dbpkg.DBInstance(c)
		if dbc == nil {
			RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
			return
		}

		var input EngineMessageInput
		if err := c.ShouldBindJSON(&input); err != nil {
			RespondError(c, "invalid json", http.StatusBadRequest)
			return
		}

		input.Direction = strings.TrimSpace(strings.ToLower(input.Direction))
		if input.Direction == "" {
			RespondError(c, "missing direction", http.StatusBadRequest)
			return
		}
		if input.Direction != "inbound" && input.Direction != "outbound" {
			RespondError(c, "invalid direction", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(input.PhoneNumber) == "" {
			RespondError(c, "missing phone_number", http.StatusBadRequest)
			return
		}

		phone := tools.CanonicalPhone(input.PhoneNumber)
		if phone == "" {
			RespondError(c, "invalid phone_number", http.StatusBadRequest)
			return
		}

		// external_id repetido = redelivery do engine, não duplica. Vem antes
		// das exigências de criação (content/workspace_id): um reenvio que só
		// referencia a mensagem já gravada responde 200 e pronto.
		if input.ExternalID != "" {
			var count int
			if err := dbc.Model(&models.Message{}).
				Where("external_id = ?", input.ExternalID).
				Count(&count).Error; err != nil {
				RespondError(c, "duplicate check failure: "+err.Error(), http.StatusInternalServerError)
				return
			}
			if count > 0 {
				RespondSuccess(c, gin.H{"success": true, "action": "duplicate_external_id"})
				return
			}
		}

		if strings.TrimSpace(input.Content) == "" && input.FileURL == "" && input.ExternalID == "" {
			RespondError(c, "missing content", http.StatusBadRequest)
			return
		}
		if input.WorkspaceID == 0 {
			RespondError(c, "missing workspace_id", http.StatusBadRequest)
			return
		}

		conn, err := resolveEngineConnection(dbc, input)
		if err != nil {
			RespondError(c, err.Error(), http.StatusBadRequest)
			return
		}

		var contact models.Contact
		err = dbc.Where("phone = ? AND workspace_id = ?", phone, input.WorkspaceID).First(&contact).Error
		if err != nil {
			if !gorm.IsRecordNotFoundError(err) {
				RespondError(c, "contact lookup failure: "+err.Error(), http.StatusInternalServerError)
				return
			}
			contact = models.Contact{Phone: phone, WorkspaceID: input.WorkspaceID}
			if err := dbc.Create(&contact).Error; err != nil {
				RespondError(c, "contact create failure: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}

		conv, _, err := resolveConversation(dbc, contact, conn)
		if err != nil {
			RespondError(c, "conversation resolve failure: "+err.Error(), http.StatusInternalServerError)
			return
		}

		if input.Direction == "outbound" {
			engineOutbound(c, dbc, cfg, input, conn, conv, phone)
			return
		}
		engineInbound(c, dbc, cfg, input, conv)
	}
}

// resolveEngineConnection escolhe a connection do envio: a pedida no corpo ou
// a primeira conectada do workspace.
func resolveEngineConnection(dbc *gorm.DB, input EngineMessageInput) (models.Connection, error) {
	var conn models.Connection

	if input.ConnectionID != nil {
		if err := dbc.Where("id = ? AND workspace_id = ?", *input.ConnectionID, input.WorkspaceID).
			First(&conn).Error; err != nil {
			return models.Connection{}, errConnectionNotFound
		}
		return conn, nil
	}

	err := dbc.Where("workspace_id = ? AND status = ?", input.WorkspaceID, models.CONNECTION_STATUS_CONNECTED).
		Order("id asc").
		First(&conn).Error
	if err != nil {
		return models.Connection{}, errNoConnectedConnection
	}
	return conn, nil
}

// engineOutbound envia pelo provider e grava a mensagem como do agente.
func engineOutbound(c *gin.Context, dbc *gorm.DB, cfg config.Configuration, input EngineMessageInput, conn models.Connection, conv models.Conversation, phone string) {
	client := tools.EvolutionClient{BaseURL: cfg.Evolution.BaseURL, ApiKey: cfg.Evolution.ApiKey}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		res     tools.SendResult
		err     error
		msgType = strings.TrimSpace(input.MessageType)
	)
	if msgType == "" {
		msgType = models.MESSAGE_TYPE_TEXT
	}

	switch {
	case input.FileURL != "" && msgType == models.MESSAGE_TYPE_AUDIO:
		res, err = client.SendAudio(ctx, conn.InstanceName, phone, input.FileURL)
	case input.FileURL != "":
		res, err = client.SendMedia(ctx, conn.InstanceName, phone, msgType, input.FileURL, input.Content)
	default:
		res, err = client.SendText(ctx, conn.InstanceName, phone, input.Content)
	}
	if err != nil {
		RespondError(c, "provider send failure: "+err.Error(), http.StatusInternalServerError)
		return
	}

	senderType := input.SenderType
	if senderType == "" {
		senderType = models.MESSAGE_SENDER_AGENT
	}

	msg := models.Message{
		ConversationID:   conv.ID,
		ExternalID:       input.ExternalID,
		EvolutionKeyID:   res.KeyID,
		SenderType:       senderType,
		Status:           models.MESSAGE_STATUS_SENT,
		Content:          input.Content,
		MessageType:      msgType,
		FileURL:          input.FileURL,
		ReplyToMessageID: input.ReplyToMessageID,
		QuotedMessage:    input.QuotedMessage,
		ProviderMoment:   input.ProviderMoment,
	}
	if err := dbc.Create(&msg).Error; err != nil {
		RespondError(c, "message store failure: "+err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	if err := dbc.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]any{"unread_count": 0, "last_activity_at": &now}).Error; err != nil {
		log.Printf("engine: conversation counters update failed: %v", err)
	}

	RespondWith(c, http.StatusCreated, gin.H{
		"success":         true,
		"action":          "message_sent",
		"message_id":      msg.ID,
		"conversation_id": conv.ID,
	})
}

// engineInbound injeta uma mensagem do contato vinda já normalizada do engine.
func engineInbound(c *gin.Context, dbc *gorm.DB, cfg config.Configuration, input EngineMessageInput, conv models.Conversation) {
	senderType := input.SenderType
	if senderType == "" {
		senderType = models.MESSAGE_SENDER_CONTACT
	}

	msgType := strings.TrimSpace(input.MessageType)
	if msgType == "" {
		msgType = models.MESSAGE_TYPE_TEXT
	}

	msg := models.Message{
		ConversationID:   conv.ID,
		ExternalID:       input.ExternalID,
		SenderType:       senderType,
		Status:           models.MESSAGE_STATUS_DELIVERED,
		Content:          input.Content,
		MessageType:      msgType,
		FileURL:          input.FileURL,
		ReplyToMessageID: input.ReplyToMessageID,
		QuotedMessage:    input.QuotedMessage,
		ProviderMoment:   input.ProviderMoment,
	}
	if err := dbc.Create(&msg).Error; err != nil {
		RespondError(c, "message store failure: "+err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	if err := dbc.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]any{
			"unread_count":     gorm.Expr("unread_count + 1"),
			"last_activity_at": &now,
		}).Error; err != nil {
		log.Printf("engine: conversation counters update failed: %v", err)
	}

	if senderType == models.MESSAGE_SENDER_CONTACT {
		go workers.EvaluateMessageCountTriggers(dbc, cfg, conv.ID)
	}

	RespondWith(c, http.StatusCreated, gin.H{
		"success":         true,
		"action":          "message_created",
		"message_id":      msg.ID,
		"conversation_id": conv.ID,
	})
}
