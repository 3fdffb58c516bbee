package controllers

import (
	"encoding/json"
	"strings"
	"time"

	"zapcrm/models"
)

// EvolutionKey identifica uma mensagem dentro de um chat do provider.
type EvolutionKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// EvolutionEventData é o "data" dos eventos do provider. Os campos soltos
// (MessageID/KeyID/RemoteJid/FromMe) aparecem nos eventos de update, que não
// repetem o bloco key completo.
type EvolutionEventData struct {
	Key              EvolutionKey    `json:"key"`
	PushName         string          `json:"pushName"`
	Message          json.RawMessage `json:"message"`
	MessageType      string          `json:"messageType"`
	MessageTimestamp int64           `json:"messageTimestamp"`

	// Campos de ack (messages.update).
	Status    string `json:"status"`
	Ack       *int   `json:"ack"`
	MessageID string `json:"messageId"`
	KeyID     string `json:"keyId"`
	RemoteJid string `json:"remoteJid"`
	FromMe    *bool  `json:"fromMe"`

	ProfilePicURL string `json:"profilePicUrl"`
}

type EvolutionWebhookPayload struct {
	Event    string             `json:"event"`
	Instance string             `json:"instance"`
	Data     EvolutionEventData `json:"data"`
}

// ChatJid devolve o identificador do chat, venha ele no key ou solto no data.
func (d EvolutionEventData) ChatJid() string {
	if d.Key.RemoteJid != "" {
		return d.Key.RemoteJid
	}
	return d.RemoteJid
}

// IsFromMe cobre as duas formas que o provider usa para sinalizar eco de
// mensagem própria.
func (d EvolutionEventData) IsFromMe() bool {
	if d.FromMe != nil {
		return *d.FromMe
	}
	return d.Key.FromMe
}

// BestMessageIdentifier escolhe o identificador mais forte disponível, na
// ordem key.id > messageId > keyId. Vazio quando o evento não referencia
// mensagem nenhuma.
func (d EvolutionEventData) BestMessageIdentifier() string {
	if d.Key.ID != "" {
		return d.Key.ID
	}
	if d.MessageID != "" {
		return d.MessageID
	}
	return d.KeyID
}

// evolutionMessageBody cobre os formatos de conteúdo que o core entende.
type evolutionMessageBody struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage struct {
		URL     string `json:"url"`
		Caption string `json:"caption"`
	} `json:"imageMessage"`
	AudioMessage struct {
		URL string `json:"url"`
	} `json:"audioMessage"`
	DocumentMessage struct {
		URL      string `json:"url"`
		FileName string `json:"fileName"`
		Caption  string `json:"caption"`
	} `json:"documentMessage"`
}

// extractMessageContent normaliza o corpo da mensagem do provider para
// (content, file_url, message_type).
func extractMessageContent(raw json.RawMessage) (string, string, string) {
	if len(raw) == 0 {
		return "", "", models.MESSAGE_TYPE_TEXT
	}

	var body evolutionMessageBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", "", models.MESSAGE_TYPE_TEXT
	}

	switch {
	case strings.TrimSpace(body.Conversation) != "":
		return strings.TrimSpace(body.Conversation), "", models.MESSAGE_TYPE_TEXT
	case strings.TrimSpace(body.ExtendedTextMessage.Text) != "":
		return strings.TrimSpace(body.ExtendedTextMessage.Text), "", models.MESSAGE_TYPE_TEXT
	case body.ImageMessage.URL != "":
		return strings.TrimSpace(body.ImageMessage.Caption), body.ImageMessage.URL, models.MESSAGE_TYPE_IMAGE
	case body.AudioMessage.URL != "":
		return "", body.AudioMessage.URL, models.MESSAGE_TYPE_AUDIO
	case body.DocumentMessage.URL != "":
		name := strings.TrimSpace(body.DocumentMessage.Caption)
		if name == "" {
			name = strings.TrimSpace(body.DocumentMessage.FileName)
		}
		return name, body.DocumentMessage.URL, models.MESSAGE_TYPE_DOCUMENT
	}
	return "", "", models.MESSAGE_TYPE_TEXT
}

// EngineMessageInput é o corpo aceito no caminho de resposta do workflow
// engine (POST /api/webhook/engine).
type EngineMessageInput struct {
	Direction        string     `json:"direction"`
	ExternalID       string     `json:"external_id"`
	PhoneNumber      string     `json:"phone_number"`
	Content          string     `json:"content"`
	FileURL          string     `json:"file_url"`
	MessageType      string     `json:"message_type"`
	WorkspaceID      int64      `json:"workspace_id"`
	ConnectionID     *int64     `json:"connection_id"`
	SenderType       string     `json:"sender_type"`
	ReplyToMessageID *int64     `json:"reply_to_message_id"`
	QuotedMessage    string     `json:"quoted_message"`
	ProviderMoment   *time.Time `json:"provider_moment"`
}
