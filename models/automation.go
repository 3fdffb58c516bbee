package models

import "time"

/************************************************
/**** MARK: TRIGGER / ACTION TYPES ****/
/************************************************/
const TRIGGER_MESSAGE_RECEIVED = "message_received"
const TRIGGER_TIME_IN_COLUMN = "time_in_column"

const ACTION_SEND_MESSAGE = "send_message"
const ACTION_SEND_FUNNEL = "send_funnel"
const ACTION_MOVE_TO_COLUMN = "move_to_column"
const ACTION_CHANGE_COLUMN = "change_column" // legado, mesmo efeito de move_to_column
const ACTION_ADD_TAG = "add_tag"
const ACTION_REMOVE_TAG = "remove_tag"
const ACTION_ADD_AGENT = "add_agent"
const ACTION_REMOVE_AGENT = "remove_agent"
const ACTION_ASSIGN_RESPONSIBLE = "assign_responsible"

// Modos de resolução de connection para ações que enviam mensagem.
const CONNECTION_MODE_LAST_USED = "last_used"
const CONNECTION_MODE_WORKSPACE_DEFAULT = "workspace_default"
const CONNECTION_MODE_SPECIFIC = "specific"

// Automation é um conjunto de triggers e ações preso a uma column do pipeline.
type Automation struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"default:''" json:"name"`
	ColumnID    int64  `gorm:"not null;index" json:"column_id"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`

	Triggers []AutomationTrigger `gorm:"foreignkey:AutomationID" json:"triggers"`
	Actions  []AutomationAction  `gorm:"foreignkey:AutomationID" json:"actions"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type AutomationTrigger struct {
	ID           int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AutomationID int64  `gorm:"not null;index" json:"automation_id"`
	TriggerType  string `gorm:"not null" json:"trigger_type"`

	// message_received: quantas mensagens do contato armam o trigger (default 1).
	MessageCount int `gorm:"not null;default:0" json:"message_count"`

	// time_in_column: duração + unidade (seconds/minutes/hours/days).
	// Configs legadas têm unidade vazia e valem minutos.
	Duration     int    `gorm:"not null;default:0" json:"duration"`
	DurationUnit string `gorm:"default:''" json:"duration_unit"`

	CreatedAt *time.Time `json:"created_at"`
}

// AutomationAction é um passo da lista ordenada de ações. Os campos opcionais
// valem conforme o ActionType (ex: FunnelID para send_funnel, TagID para
// add_tag/remove_tag).
type AutomationAction struct {
	ID           int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AutomationID int64  `gorm:"not null;index" json:"automation_id"`
	ActionOrder  int    `gorm:"not null;default:0" json:"action_order"`
	ActionType   string `gorm:"not null" json:"action_type"`

	Content string `gorm:"type:text" json:"content"` // send_message

	FunnelID       *int64 `gorm:"column:funnel_id" json:"funnel_id"`
	TargetColumnID *int64 `gorm:"column:target_column_id" json:"target_column_id"`
	TagID          *int64 `gorm:"column:tag_id" json:"tag_id"`
	AgentID        *int64 `gorm:"column:agent_id" json:"agent_id"`
	ResponsibleID  *int64 `gorm:"column:responsible_id" json:"responsible_id"`

	// Resolução de connection para ações de envio.
	ConnectionMode string `gorm:"default:''" json:"connection_mode"`
	ConnectionID   *int64 `gorm:"column:connection_id" json:"connection_id"`

	CreatedAt *time.Time `json:"created_at"`
}

// IsSendAction reports whether the action results in an outbound provider send
// (and therefore passes the business-hours gate and counts for pacing).
func (a AutomationAction) IsSendAction() bool {
	return a.ActionType == ACTION_SEND_MESSAGE || a.ActionType == ACTION_SEND_FUNNEL
}
