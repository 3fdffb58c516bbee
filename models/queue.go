package models

import "time"

// Agent é um agente de IA configurado no workspace. A ativação numa
// conversation é feita pelos campos agente_ativo/agent_active_id.
type Agent struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Queue é uma fila de atendimento. AgentID, quando presente, é o agente de IA
// ativado automaticamente nas conversations que entram por essa fila.
type Queue struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`
	AgentID     *int64 `gorm:"column:agent_id" json:"agent_id"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type QueueMember struct {
	ID      int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	QueueID int64 `gorm:"not null;index" json:"queue_id"`
	UserID  int64 `gorm:"not null;index" json:"user_id"`

	CreatedAt *time.Time `json:"created_at"`
}
