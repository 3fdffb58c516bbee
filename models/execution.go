package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AutomationExecution é o ledger de idempotência: uma linha por
// (card, column, automation, timestamp de entrada na coluna). A linha é
// inserida ANTES das ações rodarem (claim-then-act); a violação do índice
// único é o árbitro entre avaliações concorrentes. Se as ações falham, a
// linha é removida para que a próxima avaliação tente de novo.
type AutomationExecution struct {
	ID           int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ExecutionKey string `gorm:"column:execution_key;not null;unique_index" json:"execution_key"`

	AutomationID int64 `gorm:"not null;index" json:"automation_id"`
	CardID       int64 `gorm:"not null;index" json:"card_id"`
	ColumnID     int64 `gorm:"not null" json:"column_id"`

	// AnchorAt é o moved_to_column_at da estadia que disparou a execução.
	AnchorAt   *time.Time `gorm:"column:anchor_at" json:"anchor_at"`
	ExecutedAt *time.Time `gorm:"column:executed_at" json:"executed_at"`
}

// ExecutionKey derives the stable idempotency key for one automation firing.
// The column-entry timestamp participates so re-entering the same column later
// opens a new eligible window.
func ExecutionKey(cardID, columnID, automationID int64, anchor time.Time) string {
	raw := fmt.Sprintf("%d|%d|%d|%d", cardID, columnID, automationID, anchor.UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
