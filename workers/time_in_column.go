package workers

import (
	"context"
	"log"
	"time"

	"zapcrm/config"
	"zapcrm/models"

	"github.com/jinzhu/gorm"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

// StartAutomationScheduler registra a varredura do trigger de tempo-em-coluna
// e o janitor de dedup no cron. Devolve o cron já iniciado.
func StartAutomationScheduler(dbc *gorm.DB, cfg config.Configuration) *cron.Cron {
	c := cron.New()

	if _, err := c.AddFunc(cfg.Automation.SweepSchedule, func() {
		SweepTimeTriggers(dbc, cfg)
	}); err != nil {
		log.Fatalf("automations: invalid sweep schedule %q: %v", cfg.Automation.SweepSchedule, err)
	}

	if _, err := c.AddFunc("@every 5m", func() {
		if err := purgeExpiredDedup(dbc); err != nil {
			log.Printf("automations: dedup janitor failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("automations: janitor schedule: %v", err)
	}

	c.Start()
	return c
}

func purgeExpiredDedup(dbc *gorm.DB) error {
	return dbc.Where("expires_at <= ?", time.Now()).Delete(&models.ProcessedEvent{}).Error
}

// TriggerDuration normaliza a duração configurada num trigger time_in_column.
// Aceita seconds/minutes/hours/days; configs legadas sem unidade valem
// minutos.
func TriggerDuration(value int, unit string) time.Duration {
	if value <= 0 {
		return 0
	}
	switch unit {
	case "seconds", "second":
		return time.Duration(value) * time.Second
	case "hours", "hour":
		return time.Duration(value) * time.Hour
	case "days", "day":
		return time.Duration(value) * 24 * time.Hour
	case "minutes", "minute", "":
		return time.Duration(value) * time.Minute
	default:
		log.Printf("automations: unknown duration unit %q, treating as minutes", unit)
		return time.Duration(value) * time.Minute
	}
}

// SweepTimeTriggers varre as automações ativas com trigger de tempo e executa
// as que têm cards parados na coluna além do limiar. O claim no ledger vem
// antes das ações e é solto em falha, então um card que falhou volta na
// próxima varredura.
func SweepTimeTriggers(dbc *gorm.DB, cfg config.Configuration) {
	var automations []models.Automation
	if err := dbc.
		Where("is_active = ?", true).
		Preload("Triggers").
		Preload("Actions").
		Find(&automations).Error; err != nil {
		log.Printf("automations: sweep load failed: %v", err)
		return
	}

	now := time.Now()
	sem := semaphore.NewWeighted(cfg.Automation.SweepConcurrency)
	ctx := context.Background()

	for _, automation := range automations {
		trigger := findTrigger(automation, models.TRIGGER_TIME_IN_COLUMN)
		if trigger == nil {
			continue
		}

		duration := TriggerDuration(trigger.Duration, trigger.DurationUnit)
		if duration <= 0 {
			continue
		}
		threshold := now.Add(-duration)

		var cards []models.Card
		if err := dbc.
			Where("column_id = ?", automation.ColumnID).
			Where("moved_to_column_at IS NOT NULL AND moved_to_column_at < ?", threshold).
			Find(&cards).Error; err != nil {
			log.Printf("automations: sweep candidates for automation %d failed: %v", automation.ID, err)
			continue
		}

		for i := range cards {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			automation := automation
			card := cards[i]
			go func() {
				defer sem.Release(1)
				processTimeTriggerCard(dbc, cfg, automation, card)
			}()
		}
	}

	// espera os cards em voo antes de devolver a varredura
	if err := sem.Acquire(ctx, cfg.Automation.SweepConcurrency); err == nil {
		sem.Release(cfg.Automation.SweepConcurrency)
	}
}

func processTimeTriggerCard(dbc *gorm.DB, cfg config.Configuration, automation models.Automation, card models.Card) {
	if card.MovedToColumnAt == nil {
		return
	}
	anchor := *card.MovedToColumnAt

	// já rodou para essa estadia?
	done, err := hasExecutionForStay(dbc, automation.ID, card.ID, card.ColumnID, anchor)
	if err != nil {
		log.Printf("automations: stay check failed for card %d: %v", card.ID, err)
		return
	}
	if done {
		return
	}

	var conv models.Conversation
	if err := dbc.First(&conv, card.ConversationID).Error; err != nil {
		log.Printf("automations: card %d conversation load failed: %v", card.ID, err)
		return
	}

	key := models.ExecutionKey(card.ID, card.ColumnID, automation.ID, anchor)
	claimed, err := claimExecution(dbc, key, automation.ID, card.ID, card.ColumnID, anchor)
	if err != nil {
		log.Printf("automations: claim failed for card %d: %v", card.ID, err)
		return
	}
	if !claimed {
		return
	}

	if _, err := RunActions(dbc, cfg, &card, conv, automation.Actions); err != nil {
		log.Printf("automations: time trigger %d failed on card %d, releasing claim: %v",
			automation.ID, card.ID, err)
		releaseExecution(dbc, key)
	}
}
