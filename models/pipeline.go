package models

import "time"

type Pipeline struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type Column struct {
	ID         int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	PipelineID int64  `gorm:"not null;index" json:"pipeline_id"`
	Name       string `gorm:"not null" json:"name"`
	Position   int    `gorm:"not null;default:0" json:"position"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Card é um item do kanban. MovedToColumnAt é a âncora dos dois tipos de
// trigger de automação e TEM que ser atualizado em toda mudança de column_id.
type Card struct {
	ID             int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Title          string `gorm:"default:''" json:"title"`
	PipelineID     int64  `gorm:"not null;index" json:"pipeline_id"`
	ColumnID       int64  `gorm:"not null;index:ix_cards_column_moved" json:"column_id"`
	ContactID      int64  `gorm:"not null;index" json:"contact_id"`
	ConversationID int64  `gorm:"not null;index" json:"conversation_id"`
	WorkspaceID    int64  `gorm:"not null;index" json:"workspace_id"`

	ResponsibleID *int64 `gorm:"column:responsible_id" json:"responsible_id"`

	MovedToColumnAt *time.Time `gorm:"column:moved_to_column_at;index:ix_cards_column_moved" json:"moved_to_column_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
