package models

import "time"

const (
	CONNECTION_STATUS_CONNECTED    = "connected"
	CONNECTION_STATUS_DISCONNECTED = "disconnected"
)

// Connection is one provider channel instance (an Evolution API "instance").
// PhoneNumber is a mutable fact: re-pairing the channel can change it, which
// is why conversations snapshot it at creation time.
type Connection struct {
	ID           int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	InstanceName string `gorm:"not null;unique_index" json:"instance_name"`
	PhoneNumber  string `gorm:"default:''" json:"phone_number"`
	WorkspaceID  int64  `gorm:"not null;index" json:"workspace_id"`
	Status       string `gorm:"not null;default:'disconnected'" json:"status"`

	DefaultPipelineID *int64 `gorm:"column:default_pipeline_id" json:"default_pipeline_id"`
	DefaultColumnID   *int64 `gorm:"column:default_column_id" json:"default_column_id"`
	QueueID           *int64 `gorm:"column:queue_id" json:"queue_id"`

	AutoCreateCRMCard bool `gorm:"column:auto_create_crm_card;not null;default:false" json:"auto_create_crm_card"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
