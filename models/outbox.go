package models

import "time"

/************************************************
/**** MARK: OUTBOX STATUS ****/
/************************************************/
const OUTBOX_STATUS_PENDING = "pending"
const OUTBOX_STATUS_DELIVERING = "delivering"
const OUTBOX_STATUS_DELIVERED = "delivered"
const OUTBOX_STATUS_FAILED = "failed"

// OutboxEvent é uma notificação pendente para o workflow engine. O webhook
// grava a linha e responde; um worker entrega em background com backoff
// exponencial, então falha transitória do engine não derruba nem atrasa a
// resposta ao provider.
type OutboxEvent struct {
	ID       string `gorm:"primary_key" json:"id"` // uuid
	Endpoint string `gorm:"not null" json:"endpoint"`
	Secret   string `gorm:"default:''" json:"-"`
	Payload  string `gorm:"type:text;not null" json:"payload"`

	Status        string     `gorm:"not null;default:'pending';index" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LastError     string     `gorm:"type:text" json:"last_error"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
