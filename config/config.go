package config

import (
	"encoding/json"
	"log"
	"os"
)

type Configuration struct {
	ApiPort string `json:"api_port"`
	LogPath string `json:"log_path"`

	Database string `json:"database"` // "sqlite3" ou "postgres"
	DbHost   string `json:"db_host"`
	DbPort   string `json:"db_port"`
	DbUser   string `json:"db_user"`
	DbName   string `json:"db_name"`
	DbPass   string `json:"db_pass"`

	Evolution struct {
		BaseURL string `json:"base_url"`
		ApiKey  string `json:"api_key"`
	} `json:"evolution"`

	// Endpoint default do workflow engine (n8n). Workspaces podem ter
	// override próprio (flow_webhook_url/flow_webhook_secret).
	FlowEngine struct {
		WebhookURL string `json:"webhook_url"`
		Secret     string `json:"secret"`
	} `json:"flow_engine"`

	Webhook struct {
		Secret string `json:"secret"`
		// Strict=true responde 401 quando o secret não bate; senão só loga.
		Strict bool `json:"strict"`
	} `json:"webhook"`

	Automation struct {
		DedupTTLSeconds int `json:"dedup_ttl_seconds"`

		// Pacing anti-spam entre automações que enviam mensagem, medido do
		// fim do envio anterior.
		PacingSeconds int `json:"pacing_seconds"`
		// Intervalo mínimo entre envios consecutivos dentro da mesma automação.
		ActionGapSeconds int `json:"action_gap_seconds"`

		SweepSchedule    string `json:"sweep_schedule"`
		SweepConcurrency int64  `json:"sweep_concurrency"`

		OutboxMaxAttempts int `json:"outbox_max_attempts"`
	} `json:"automation"`
}

func Get(path string) Configuration {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	var c Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		log.Fatal(err)
	}
	return ApplyDefaults(c)
}

// ApplyDefaults preenche zeros com os defaults operacionais. Exportado para os
// testes montarem Configuration sem arquivo.
func ApplyDefaults(c Configuration) Configuration {
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.Automation.DedupTTLSeconds <= 0 {
		c.Automation.DedupTTLSeconds = 10
	}
	if c.Automation.PacingSeconds <= 0 {
		c.Automation.PacingSeconds = 3
	}
	if c.Automation.ActionGapSeconds <= 0 {
		c.Automation.ActionGapSeconds = 2
	}
	if c.Automation.SweepSchedule == "" {
		c.Automation.SweepSchedule = "@every 1m"
	}
	if c.Automation.SweepConcurrency <= 0 {
		c.Automation.SweepConcurrency = 4
	}
	if c.Automation.OutboxMaxAttempts <= 0 {
		c.Automation.OutboxMaxAttempts = 5
	}
	return c
}
