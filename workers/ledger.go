package workers

import (
	"log"
	"time"

	"zapcrm/models"

	"github.com/jinzhu/gorm"
)

// claimExecution insere a linha do ledger ANTES das ações rodarem. A violação
// do índice único significa que outra avaliação concorrente chegou primeiro:
// devolve false sem erro e o caller pula a automação.
func claimExecution(dbc *gorm.DB, key string, automationID, cardID, columnID int64, anchor time.Time) (bool, error) {
	now := time.Now()
	row := models.AutomationExecution{
		ExecutionKey: key,
		AutomationID: automationID,
		CardID:       cardID,
		ColumnID:     columnID,
		AnchorAt:     &anchor,
		ExecutedAt:   &now,
	}
	if err := dbc.Create(&row).Error; err != nil {
		if models.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// releaseExecution desfaz o claim quando as ações falharam, devolvendo a
// elegibilidade: a próxima varredura (ou a próxima mensagem que armar o
// trigger) tenta de novo do zero.
func releaseExecution(dbc *gorm.DB, key string) {
	if err := dbc.Where("execution_key = ?", key).Delete(&models.AutomationExecution{}).Error; err != nil {
		log.Printf("automations: release claim %s failed: %v", key, err)
	}
}

// hasExecutionForStay verifica se a automação já rodou para a estadia atual
// do card na coluna (executed_at >= moved_to_column_at).
func hasExecutionForStay(dbc *gorm.DB, automationID, cardID, columnID int64, anchor time.Time) (bool, error) {
	var count int
	err := dbc.Model(&models.AutomationExecution{}).
		Where("automation_id = ? AND card_id = ? AND column_id = ?", automationID, cardID, columnID).
		Where("executed_at >= ?", anchor).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
