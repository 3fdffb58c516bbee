package models

import "time"

// ProcessedEvent é o registro durável de dedup de eventos do provider.
// O fingerprint tem índice único, então a proteção vale entre instâncias e
// sobrevive a restart, diferente do set em memória que só cobre o fast path.
// Linhas expiradas são recicladas na hora do claim e varridas por um janitor.
type ProcessedEvent struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Fingerprint string     `gorm:"not null;unique_index" json:"fingerprint"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at"`

	CreatedAt *time.Time `json:"created_at"`
}
