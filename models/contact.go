package models

import "time"

// Contact é um número de WhatsApp conhecido dentro de um workspace.
// Criado automaticamente no primeiro evento inbound de um número desconhecido.
type Contact struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Phone       string `gorm:"not null;unique_index:ux_contacts_phone_workspace" json:"phone"` // somente dígitos
	WorkspaceID int64  `gorm:"not null;unique_index:ux_contacts_phone_workspace" json:"workspace_id"`
	Name        string `gorm:"default:''" json:"name"`

	ProfileImageURL string `gorm:"column:profile_image_url;default:''" json:"profile_image_url"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
