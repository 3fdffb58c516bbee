package models

import "time"

const (
	CONVERSATION_STATUS_ACTIVE = "active"
	CONVERSATION_STATUS_CLOSED = "closed"
)

// Conversation é o fio de mensagens entre um contato e uma connection.
// Invariante: no máximo uma conversation ativa por (contact_id, connection_id);
// se o número da connection mudou desde a criação (re-pareamento), uma nova
// conversation é aberta em vez de reaproveitar a antiga.
type Conversation struct {
	ID           int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ContactID    int64 `gorm:"not null;index:ix_conversations_pair" json:"contact_id"`
	ConnectionID int64 `gorm:"not null;index:ix_conversations_pair" json:"connection_id"`
	WorkspaceID  int64 `gorm:"not null;index" json:"workspace_id"`

	// Snapshot do número da connection no momento da criação.
	ConnectionPhone string `gorm:"column:connection_phone;default:''" json:"connection_phone"`

	Status string `gorm:"not null;default:'active';index" json:"status"`

	AgenteAtivo   bool   `gorm:"column:agente_ativo;not null;default:false" json:"agente_ativo"`
	AgentActiveID *int64 `gorm:"column:agent_active_id" json:"agent_active_id"`

	QueueID        *int64 `gorm:"column:queue_id" json:"queue_id"`
	AssignedUserID *int64 `gorm:"column:assigned_user_id" json:"assigned_user_id"`

	UnreadCount    int        `gorm:"not null;default:0" json:"unread_count"`
	LastActivityAt *time.Time `json:"last_activity_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
