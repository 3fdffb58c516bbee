package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PostEngineEvent entrega um payload JSON já serializado ao workflow engine.
// Bearer token só entra quando há secret configurado. Quem chama é o
// despachante do outbox, nunca o handler do webhook diretamente.
func PostEngineEvent(ctx context.Context, endpoint, secret string, payload []byte) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("engine endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("engine webhook error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

// EngineEventType deriva o event_type enviado ao engine a partir do nome do
// evento do provider: qualquer *.update vira "update", o resto "upsert".
func EngineEventType(providerEvent string) string {
	if strings.Contains(strings.ToLower(providerEvent), "update") {
		return "update"
	}
	return "upsert"
}
