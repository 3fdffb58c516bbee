package models

import "time"

// Workspace is the tenant root. Every contact, connection, pipeline and
// automation hangs off one workspace.
type Workspace struct {
	ID   int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name string `gorm:"not null" json:"name"`

	// Timezone used by the business-hours gate (IANA name, ex: America/Sao_Paulo).
	Timezone string `gorm:"default:''" json:"timezone"`

	// Per-workspace workflow-engine endpoint. When empty the service-level
	// default from the configuration file is used.
	FlowWebhookURL    string `gorm:"column:flow_webhook_url;default:''" json:"flow_webhook_url"`
	FlowWebhookSecret string `gorm:"column:flow_webhook_secret;default:''" json:"-"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// BusinessHours is one open window for one weekday. A workspace with no
// enabled rows is treated as always open; a workspace with rows is closed
// outside them.
type BusinessHours struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`
	Weekday     int    `gorm:"not null" json:"weekday"` // 0 = Sunday ... 6 = Saturday
	OpensAt     string `gorm:"not null" json:"opens_at"`  // "09:00"
	ClosesAt    string `gorm:"not null" json:"closes_at"` // "18:00"
	Enabled     bool   `gorm:"not null;default:true" json:"enabled"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
