package models

import "time"

type Tag struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	WorkspaceID int64  `gorm:"not null;index" json:"workspace_id"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// CardTag liga um card a uma tag. O índice único faz "tag já presente"
// aparecer como violação de unicidade, que o executor de ações trata
// como sucesso.
type CardTag struct {
	ID     int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CardID int64 `gorm:"not null;unique_index:ux_card_tags" json:"card_id"`
	TagID  int64 `gorm:"not null;unique_index:ux_card_tags" json:"tag_id"`

	CreatedAt *time.Time `json:"created_at"`
}
