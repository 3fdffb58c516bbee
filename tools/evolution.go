package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EvolutionClient fala com a Evolution API (provider de WhatsApp). Uma
// instância ("instance") corresponde a uma Connection do CRM.
type EvolutionClient struct {
	BaseURL string
	ApiKey  string
}

// SendResult carrega os identificadores que o provider devolve num envio e
// que o reconciliador de acks usa depois para casar os recibos.
type SendResult struct {
	KeyID string
}

type evolutionSendResponse struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
}

// SendText envia uma mensagem de texto pela instância dada.
func (e EvolutionClient) SendText(ctx context.Context, instance, number, text string) (SendResult, error) {
	body := map[string]any{
		"number": number,
		"text":   text,
	}
	return e.post(ctx, "/message/sendText/"+instance, body)
}

// SendMedia envia imagem/vídeo/documento por URL.
func (e EvolutionClient) SendMedia(ctx context.Context, instance, number, mediaType, mediaURL, caption string) (SendResult, error) {
	body := map[string]any{
		"number":    number,
		"mediatype": mediaType,
		"media":     mediaURL,
		"caption":   caption,
	}
	return e.post(ctx, "/message/sendMedia/"+instance, body)
}

// SendAudio envia áudio narrado (ptt) por URL.
func (e EvolutionClient) SendAudio(ctx context.Context, instance, number, audioURL string) (SendResult, error) {
	body := map[string]any{
		"number": number,
		"audio":  audioURL,
	}
	return e.post(ctx, "/message/sendWhatsAppAudio/"+instance, body)
}

func (e EvolutionClient) post(ctx context.Context, path string, payload map[string]any) (SendResult, error) {
	if e.BaseURL == "" {
		return SendResult{}, fmt.Errorf("evolution base url not configured")
	}

	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.ApiKey != "" {
		req.Header.Set("apikey", e.ApiKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return SendResult{}, fmt.Errorf("evolution api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed evolutionSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// envio aconteceu; só não conseguimos o key id para o reconciliador
		return SendResult{}, nil
	}
	return SendResult{KeyID: parsed.Key.ID}, nil
}
