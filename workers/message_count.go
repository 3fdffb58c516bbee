package workers

import (
	"log"
	"time"

	"zapcrm/config"
	"zapcrm/models"

	"github.com/jinzhu/gorm"
)

// EvaluateMessageCountTriggers roda depois de cada mensagem inbound de
// contato gravada. Para cada card da conversation, avalia as automações
// ativas da coluna atual com trigger message_received:
//
//	armado  -> contagem de mensagens do contato desde moved_to_column_at >= N
//	claim   -> linha no ledger ANTES das ações (unique index é o árbitro)
//	executa -> lista ordenada de ações, com pacing anti-spam entre automações
//
// Chamada em goroutine pelo webhook; nunca propaga erro pra resposta HTTP.
func EvaluateMessageCountTriggers(dbc *gorm.DB, cfg config.Configuration, conversationID int64) {
	var conv models.Conversation
	if err := dbc.First(&conv, conversationID).Error; err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			log.Printf("automations: conversation %d load failed: %v", conversationID, err)
		}
		return
	}

	var cards []models.Card
	if err := dbc.Where("conversation_id = ?", conversationID).Find(&cards).Error; err != nil {
		log.Printf("automations: cards load failed: %v", err)
		return
	}

	pacing := time.Duration(cfg.Automation.PacingSeconds) * time.Second

	for i := range cards {
		evaluateCardMessageTriggers(dbc, cfg, &cards[i], conv, pacing)
	}
}

func evaluateCardMessageTriggers(dbc *gorm.DB, cfg config.Configuration, card *models.Card, conv models.Conversation, pacing time.Duration) {
	if card.MovedToColumnAt == nil {
		log.Printf("automations: card %d has no column-entry timestamp, skipping", card.ID)
		return
	}
	anchor := *card.MovedToColumnAt

	var automations []models.Automation
	if err := dbc.
		Where("column_id = ? AND is_active = ?", card.ColumnID, true).
		Preload("Triggers").
		Preload("Actions").
		Order("id asc").
		Find(&automations).Error; err != nil {
		log.Printf("automations: load for column %d failed: %v", card.ColumnID, err)
		return
	}

	var lastSendDone time.Time

	for _, automation := range automations {
		trigger := findTrigger(automation, models.TRIGGER_MESSAGE_RECEIVED)
		if trigger == nil {
			continue
		}

		required := trigger.MessageCount
		if required <= 0 {
			required = 1
		}

		var count int
		if err := dbc.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_type = ?", conv.ID, models.MESSAGE_SENDER_CONTACT).
			Where("created_at >= ?", anchor).
			Count(&count).Error; err != nil {
			log.Printf("automations: message count failed: %v", err)
			continue
		}
		if count < required {
			continue
		}

		key := models.ExecutionKey(card.ID, card.ColumnID, automation.ID, anchor)
		claimed, err := claimExecution(dbc, key, automation.ID, card.ID, card.ColumnID, anchor)
		if err != nil {
			log.Printf("automations: claim failed for automation %d card %d: %v", automation.ID, card.ID, err)
			continue
		}
		if !claimed {
			// já disparou para essa entrada na coluna (ou outra avaliação
			// concorrente ganhou a corrida)
			continue
		}

		// pacing anti-spam: automações com envio além da primeira esperam o
		// intervalo mínimo contado do fim do envio anterior
		if hasSendAction(automation) && !lastSendDone.IsZero() {
			if wait := pacing - time.Since(lastSendDone); wait > 0 {
				time.Sleep(wait)
			}
		}

		sent, err := RunActions(dbc, cfg, card, conv, automation.Actions)
		if err != nil {
			log.Printf("automations: automation %d failed on card %d, releasing claim: %v",
				automation.ID, card.ID, err)
			releaseExecution(dbc, key)
			continue
		}
		if sent {
			lastSendDone = time.Now()
		}
	}
}

func findTrigger(automation models.Automation, triggerType string) *models.AutomationTrigger {
	for i := range automation.Triggers {
		if automation.Triggers[i].TriggerType == triggerType {
			return &automation.Triggers[i]
		}
	}
	return nil
}

func hasSendAction(automation models.Automation) bool {
	for _, action := range automation.Actions {
		if action.IsSendAction() {
			return true
		}
	}
	return false
}
