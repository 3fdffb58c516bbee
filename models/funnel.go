package models

import "time"

const FUNNEL_ITEM_MESSAGE = "message"
const FUNNEL_ITEM_AUDIO = "audio"
const FUNNEL_ITEM_MEDIA = "media"
const FUNNEL_ITEM_DOCUMENT = "document"

// Funnel é uma sequência pré-autorada de envios usada pela ação send_funnel.
type Funnel struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// FunnelStep aponta para um FunnelItem; se o item referenciado não existir
// mais, o passo é pulado e o funil continua.
type FunnelStep struct {
	ID           int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	FunnelID     int64 `gorm:"not null;index" json:"funnel_id"`
	StepOrder    int   `gorm:"not null;default:0" json:"step_order"`
	ItemID       int64 `gorm:"not null" json:"item_id"`
	DelaySeconds int   `gorm:"not null;default:0" json:"delay_seconds"`

	CreatedAt *time.Time `json:"created_at"`
}

type FunnelItem struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`
	ItemType    string `gorm:"not null;default:'message'" json:"item_type"`
	Content     string `gorm:"type:text" json:"content"`
	FileURL     string `gorm:"column:file_url;default:''" json:"file_url"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
