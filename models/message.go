package models

import "time"

/************************************************
/**** MARK: MESSAGE STATUS ****/
/************************************************/
const MESSAGE_STATUS_SENDING = "sending"
const MESSAGE_STATUS_SENT = "sent"
const MESSAGE_STATUS_DELIVERED = "delivered"
const MESSAGE_STATUS_READ = "read"

const MESSAGE_SENDER_CONTACT = "contact"
const MESSAGE_SENDER_AGENT = "agent"
const MESSAGE_SENDER_SYSTEM = "system"

const MESSAGE_TYPE_TEXT = "text"
const MESSAGE_TYPE_IMAGE = "image"
const MESSAGE_TYPE_AUDIO = "audio"
const MESSAGE_TYPE_DOCUMENT = "document"

// statusRanks define a reticulado monotônico de entrega. Updates que
// rebaixariam o rank são descartados pelo reconciliador de acks.
var statusRanks = map[string]int{
	MESSAGE_STATUS_SENDING:   0,
	MESSAGE_STATUS_SENT:      1,
	MESSAGE_STATUS_DELIVERED: 2,
	MESSAGE_STATUS_READ:      3,
}

// StatusRank returns the numeric rank of a delivery status, or -1 for an
// unknown status (unknown never outranks anything).
func StatusRank(status string) int {
	if r, ok := statusRanks[status]; ok {
		return r
	}
	return -1
}

// Message é uma mensagem armazenada de uma conversation. Os três campos de
// identificador existem porque o provider referencia a mesma mensagem por
// chaves diferentes dependendo do evento; o reconciliador de acks procura
// por qualquer um deles e faz backfill dos que faltam.
type Message struct {
	ID             int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ConversationID int64  `gorm:"not null;index" json:"conversation_id"`
	ExternalID     string `gorm:"column:external_id;default:'';index" json:"external_id"`

	EvolutionKeyID      string `gorm:"column:evolution_key_id;default:'';index" json:"evolution_key_id"`
	EvolutionShortKeyID string `gorm:"column:evolution_short_key_id;default:'';index" json:"evolution_short_key_id"`

	SenderType  string `gorm:"not null;default:'contact'" json:"sender_type"`
	Status      string `gorm:"not null;default:'sent'" json:"status"`
	Content     string `gorm:"type:text" json:"content"`
	MessageType string `gorm:"not null;default:'text'" json:"message_type"`
	FileURL     string `gorm:"column:file_url;default:''" json:"file_url"`

	// Citação: resposta a outra mensagem do fio, com o trecho citado congelado
	// no momento do envio.
	ReplyToMessageID *int64 `gorm:"column:reply_to_message_id" json:"reply_to_message_id"`
	QuotedMessage    string `gorm:"type:text" json:"quoted_message"`

	// Carimbados na primeira vez que cada limiar é cruzado; nunca sobrescritos.
	DeliveredAt *time.Time `json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at"`

	// Momento reportado pelo provider (messageTimestamp).
	ProviderMoment *time.Time `gorm:"column:provider_moment" json:"provider_moment"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
