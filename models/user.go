package models

import "time"

/************************************************
/**** MARK: USER STATUS ****/
/************************************************/
const USER_STATUS_AVAILABLE = 0
const USER_STATUS_PENDING = 1
const USER_STATUS_BLOCKED = 2

// User representa um atendente do workspace. Entra como membro de filas e
// como responsável por cards (assign_responsible / distribuição de fila).
type User struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Email       string `gorm:"not null;unique" json:"email"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`
	Status      int    `gorm:"default:0" json:"status"`

	ProfileImageURL string `gorm:"column:profile_image_url;default:''" json:"profile_image_url"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
