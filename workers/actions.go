package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"zapcrm/config"
	"zapcrm/models"
	"zapcrm/tools"

	"github.com/jinzhu/gorm"
)

// RunActions executa a lista ordenada de ações de uma automação sobre um
// card. Devolve se algum envio de mensagem aconteceu (entra no pacing entre
// automações) e o primeiro erro duro encontrado.
//
// Tolerâncias (não derrubam a execução):
//   - connection irresolvível aborta só aquela ação;
//   - fora do horário comercial aborta o envio em silêncio (compliance, não falha);
//   - passo de funil com item sumido é pulado;
//   - tag já presente conta como sucesso.
//
// Erros de escrita no banco e falha de envio no provider propagam: o caller
// solta o claim do ledger e a próxima avaliação tenta de novo.
func RunActions(dbc *gorm.DB, cfg config.Configuration, card *models.Card, conv models.Conversation, actions []models.AutomationAction) (bool, error) {
	sorted := make([]models.AutomationAction, len(actions))
	copy(sorted, actions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ActionOrder < sorted[j].ActionOrder })

	var contact models.Contact
	if err := dbc.First(&contact, conv.ContactID).Error; err != nil {
		return false, fmt.Errorf("load contact: %w", err)
	}

	client := tools.EvolutionClient{BaseURL: cfg.Evolution.BaseURL, ApiKey: cfg.Evolution.ApiKey}
	gap := time.Duration(cfg.Automation.ActionGapSeconds) * time.Second

	sentAny := false
	var lastSend time.Time

	for _, action := range sorted {
		switch action.ActionType {
		case models.ACTION_SEND_MESSAGE, models.ACTION_SEND_FUNNEL:
			conn, err := resolveActionConnection(dbc, conv, action)
			if err != nil {
				log.Printf("automations: action %d skipped, connection unresolved: %v", action.ID, err)
				continue
			}
			if !BusinessHoursOpen(dbc, card.WorkspaceID, time.Now()) {
				log.Printf("automations: action %d suppressed, outside business hours (workspace %d)",
					action.ID, card.WorkspaceID)
				continue
			}

			// espaçamento mínimo entre envios consecutivos
			if !lastSend.IsZero() {
				if wait := gap - time.Since(lastSend); wait > 0 {
					time.Sleep(wait)
				}
			}

			if action.ActionType == models.ACTION_SEND_MESSAGE {
				if err := sendActionMessage(dbc, cfg, client, conn, conv, contact.Phone, action.Content); err != nil {
					return sentAny, err
				}
			} else {
				if err := runFunnel(dbc, cfg, client, conn, conv, contact.Phone, action); err != nil {
					return sentAny, err
				}
			}
			sentAny = true
			lastSend = time.Now()

		case models.ACTION_MOVE_TO_COLUMN, models.ACTION_CHANGE_COLUMN:
			if action.TargetColumnID == nil {
				log.Printf("automations: action %d has no target column", action.ID)
				continue
			}
			now := time.Now()
			if err := dbc.Model(&models.Card{}).Where("id = ?", card.ID).
				Updates(map[string]any{
					"column_id":          *action.TargetColumnID,
					"moved_to_column_at": &now,
				}).Error; err != nil {
				return sentAny, fmt.Errorf("move card: %w", err)
			}
			card.ColumnID = *action.TargetColumnID
			card.MovedToColumnAt = &now

		case models.ACTION_ADD_TAG:
			if action.TagID == nil {
				continue
			}
			err := dbc.Create(&models.CardTag{CardID: card.ID, TagID: *action.TagID}).Error
			if err != nil && !models.IsUniqueViolation(err) {
				return sentAny, fmt.Errorf("add tag: %w", err)
			}

		case models.ACTION_REMOVE_TAG:
			if action.TagID == nil {
				continue
			}
			if err := dbc.Where("card_id = ? AND tag_id = ?", card.ID, *action.TagID).
				Delete(&models.CardTag{}).Error; err != nil {
				return sentAny, fmt.Errorf("remove tag: %w", err)
			}

		case models.ACTION_ADD_AGENT:
			updates := map[string]any{"agente_ativo": true}
			if action.AgentID != nil {
				updates["agent_active_id"] = *action.AgentID
			}
			if err := dbc.Model(&models.Conversation{}).Where("id = ?", conv.ID).
				Updates(updates).Error; err != nil {
				return sentAny, fmt.Errorf("activate agent: %w", err)
			}

		case models.ACTION_REMOVE_AGENT:
			if err := dbc.Model(&models.Conversation{}).Where("id = ?", conv.ID).
				Updates(map[string]any{"agente_ativo": false, "agent_active_id": nil}).Error; err != nil {
				return sentAny, fmt.Errorf("deactivate agent: %w", err)
			}

		case models.ACTION_ASSIGN_RESPONSIBLE:
			if action.ResponsibleID == nil {
				continue
			}
			if err := dbc.Model(&models.Card{}).Where("id = ?", card.ID).
				Update("responsible_id", *action.ResponsibleID).Error; err != nil {
				return sentAny, fmt.Errorf("assign responsible: %w", err)
			}

		default:
			log.Printf("automations: unknown action type %q ignored", action.ActionType)
		}
	}

	return sentAny, nil
}

// resolveActionConnection escolhe o canal de envio conforme o modo da ação.
func resolveActionConnection(dbc *gorm.DB, conv models.Conversation, action models.AutomationAction) (models.Connection, error) {
	mode := action.ConnectionMode
	if mode == "" {
		mode = models.CONNECTION_MODE_LAST_USED
	}

	switch mode {
	case models.CONNECTION_MODE_SPECIFIC:
		if action.ConnectionID == nil {
			return models.Connection{}, errors.New("specific mode without connection_id")
		}
		var conn models.Connection
		if err := dbc.First(&conn, *action.ConnectionID).Error; err != nil {
			return models.Connection{}, fmt.Errorf("connection %d not found", *action.ConnectionID)
		}
		if conn.Status != models.CONNECTION_STATUS_CONNECTED {
			return models.Connection{}, fmt.Errorf("connection %d not connected", conn.ID)
		}
		return conn, nil

	case models.CONNECTION_MODE_WORKSPACE_DEFAULT:
		return firstConnectedConnection(dbc, conv.WorkspaceID)

	default: // last_used
		var conn models.Connection
		if err := dbc.First(&conn, conv.ConnectionID).Error; err == nil &&
			conn.Status == models.CONNECTION_STATUS_CONNECTED {
			return conn, nil
		}
		return firstConnectedConnection(dbc, conv.WorkspaceID)
	}
}

func firstConnectedConnection(dbc *gorm.DB, workspaceID int64) (models.Connection, error) {
	var conn models.Connection
	err := dbc.Where("workspace_id = ? AND status = ?", workspaceID, models.CONNECTION_STATUS_CONNECTED).
		Order("id asc").
		First(&conn).Error
	if err != nil {
		return models.Connection{}, errors.New("no connected connection in workspace")
	}
	return conn, nil
}

// sendActionMessage envia texto, grava a mensagem outbound e empilha o evento
// pro engine.
func sendActionMessage(dbc *gorm.DB, cfg config.Configuration, client tools.EvolutionClient, conn models.Connection, conv models.Conversation, phone, content string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := client.SendText(ctx, conn.InstanceName, phone, content)
	if err != nil {
		return fmt.Errorf("provider send: %w", err)
	}

	return recordAutomationSend(dbc, cfg, conn, conv, phone, models.Message{
		ConversationID: conv.ID,
		EvolutionKeyID: res.KeyID,
		SenderType:     models.MESSAGE_SENDER_SYSTEM,
		Status:         models.MESSAGE_STATUS_SENT,
		Content:        content,
		MessageType:    models.MESSAGE_TYPE_TEXT,
	})
}

// runFunnel percorre os passos em ordem crescente, com o delay por passo
// aguardado ENTRE envios consecutivos. Item referenciado inexistente é pulado
// e o funil segue (tolerante a falha parcial, não tudo-ou-nada).
func runFunnel(dbc *gorm.DB, cfg config.Configuration, client tools.EvolutionClient, conn models.Connection, conv models.Conversation, phone string, action models.AutomationAction) error {
	if action.FunnelID == nil {
		log.Printf("automations: action %d is send_funnel without funnel_id", action.ID)
		return nil
	}

	var steps []models.FunnelStep
	if err := dbc.Where("funnel_id = ?", *action.FunnelID).
		Order("step_order asc, id asc").
		Find(&steps).Error; err != nil {
		return fmt.Errorf("load funnel steps: %w", err)
	}

	sentAny := false
	for _, step := range steps {
		var item models.FunnelItem
		if err := dbc.First(&item, step.ItemID).Error; err != nil {
			log.Printf("automations: funnel %d step %d references missing item %d, skipping",
				*action.FunnelID, step.ID, step.ItemID)
			continue
		}

		if sentAny && step.DelaySeconds > 0 {
			time.Sleep(time.Duration(step.DelaySeconds) * time.Second)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var (
			res tools.SendResult
			err error
		)
		msgType := models.MESSAGE_TYPE_TEXT
		switch item.ItemType {
		case models.FUNNEL_ITEM_AUDIO:
			res, err = client.SendAudio(ctx, conn.InstanceName, phone, item.FileURL)
			msgType = models.MESSAGE_TYPE_AUDIO
		case models.FUNNEL_ITEM_MEDIA:
			res, err = client.SendMedia(ctx, conn.InstanceName, phone, "image", item.FileURL, item.Content)
			msgType = models.MESSAGE_TYPE_IMAGE
		case models.FUNNEL_ITEM_DOCUMENT:
			res, err = client.SendMedia(ctx, conn.InstanceName, phone, "document", item.FileURL, item.Content)
			msgType = models.MESSAGE_TYPE_DOCUMENT
		default:
			res, err = client.SendText(ctx, conn.InstanceName, phone, item.Content)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("funnel step %d send: %w", step.ID, err)
		}

		if err := recordAutomationSend(dbc, cfg, conn, conv, phone, models.Message{
			ConversationID: conv.ID,
			EvolutionKeyID: res.KeyID,
			SenderType:     models.MESSAGE_SENDER_SYSTEM,
			Status:         models.MESSAGE_STATUS_SENT,
			Content:        item.Content,
			MessageType:    msgType,
			FileURL:        item.FileURL,
		}); err != nil {
			return err
		}
		sentAny = true
	}
	return nil
}

func recordAutomationSend(dbc *gorm.DB, cfg config.Configuration, conn models.Connection, conv models.Conversation, phone string, msg models.Message) error {
	if err := dbc.Create(&msg).Error; err != nil {
		return fmt.Errorf("store outbound message: %w", err)
	}

	now := time.Now()
	if err := dbc.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]any{"unread_count": 0, "last_activity_at": &now}).Error; err != nil {
		log.Printf("automations: conversation counters update failed: %v", err)
	}

	var workspace models.Workspace
	ws := &workspace
	if err := dbc.First(ws, conn.WorkspaceID).Error; err != nil {
		ws = nil
	}
	payload := map[string]any{
		"event":           "send.message",
		"event_type":      "upsert",
		"direction":       "outbound",
		"phone_number":    phone,
		"workspace_id":    conn.WorkspaceID,
		"connection_id":   conn.ID,
		"conversation_id": conv.ID,
		"content":         msg.Content,
		"message_type":    msg.MessageType,
	}
	if err := EnqueueEngineEvent(dbc, cfg, ws, payload); err != nil {
		log.Printf("automations: enqueue engine event failed: %v", err)
	}
	return nil
}

// BusinessHoursOpen consulta o gate de horário comercial do workspace.
// Workspace sem janela habilitada é sempre aberto; com janelas, fechado fora
// delas. Se a consulta falha, o gate fecha: sem conseguir provar que está
// aberto, nenhum envio automático sai. Formato dos horários: "15:04" no fuso
// do workspace.
func BusinessHoursOpen(dbc *gorm.DB, workspaceID int64, now time.Time) bool {
	var rows []models.BusinessHours
	if err := dbc.Where("workspace_id = ? AND enabled = ?", workspaceID, true).Find(&rows).Error; err != nil {
		log.Printf("automations: business hours query failed, suppressing sends: %v", err)
		return false
	}
	if len(rows) == 0 {
		return true
	}

	loc := time.Local
	var workspace models.Workspace
	if err := dbc.First(&workspace, workspaceID).Error; err == nil && workspace.Timezone != "" {
		if l, err := time.LoadLocation(workspace.Timezone); err == nil {
			loc = l
		}
	}

	local := now.In(loc)
	weekday := int(local.Weekday())
	minutes := local.Hour()*60 + local.Minute()

	for _, row := range rows {
		if row.Weekday != weekday {
			continue
		}
		open, err1 := parseClock(row.OpensAt)
		closeAt, err2 := parseClock(row.ClosesAt)
		if err1 != nil || err2 != nil {
			continue
		}
		if minutes >= open && minutes < closeAt {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
