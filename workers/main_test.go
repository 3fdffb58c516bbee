package workers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zapcrm/config"
	dbpkg "zapcrm/db"
	"zapcrm/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbc, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbc.DB().SetMaxOpenConns(1)
	dbc.LogMode(false)
	dbpkg.AutoMigrate(dbc)
	t.Cleanup(func() { dbc.Close() })
	return dbc
}

// testConfig monta a configuração com pacing/gap zerados: os testes exercitam
// a ordem e a idempotência, não os sleeps.
func testConfig() config.Configuration {
	var c config.Configuration
	c.FlowEngine.WebhookURL = "http://engine.test/hook"
	c.Automation.SweepConcurrency = 4
	c.Automation.OutboxMaxAttempts = 5
	return c
}

// fakeProvider sobe um provider falso que registra os envios na ordem em que
// chegam (rota + conteúdo de texto).
type fakeProvider struct {
	srv   *httptest.Server
	calls []string
}

func newFakeProvider(t *testing.T, fail bool) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "instance disconnected", http.StatusBadGateway)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		route := strings.Split(strings.TrimPrefix(r.URL.Path, "/message/"), "/")[0]
		if text, ok := body["text"].(string); ok {
			route += ":" + text
		}
		p.calls = append(p.calls, route)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"key": map[string]any{"id": "PK1"}})
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func seedWorkspace(t *testing.T, dbc *gorm.DB) models.Workspace {
	t.Helper()
	ws := models.Workspace{Name: "Acme"}
	if err := dbc.Create(&ws).Error; err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	return ws
}

func seedConnection(t *testing.T, dbc *gorm.DB, ws models.Workspace) models.Connection {
	t.Helper()
	conn := models.Connection{
		InstanceName: "inst-a",
		PhoneNumber:  "551111",
		WorkspaceID:  ws.ID,
		Status:       models.CONNECTION_STATUS_CONNECTED,
	}
	if err := dbc.Create(&conn).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return conn
}

func seedBoard(t *testing.T, dbc *gorm.DB, ws models.Workspace) (models.Pipeline, models.Column) {
	t.Helper()
	pipeline := models.Pipeline{Name: "Vendas", WorkspaceID: ws.ID}
	if err := dbc.Create(&pipeline).Error; err != nil {
		t.Fatalf("seed pipeline: %v", err)
	}
	column := models.Column{Name: "Novo", PipelineID: pipeline.ID}
	if err := dbc.Create(&column).Error; err != nil {
		t.Fatalf("seed column: %v", err)
	}
	return pipeline, column
}

func seedThread(t *testing.T, dbc *gorm.DB, ws models.Workspace, conn models.Connection) (models.Contact, models.Conversation) {
	t.Helper()
	contact := models.Contact{Phone: "5511988887777", WorkspaceID: ws.ID, Name: "Fulano"}
	if err := dbc.Create(&contact).Error; err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	conv := models.Conversation{
		ContactID:       contact.ID,
		ConnectionID:    conn.ID,
		WorkspaceID:     ws.ID,
		ConnectionPhone: conn.PhoneNumber,
		Status:          models.CONVERSATION_STATUS_ACTIVE,
	}
	if err := dbc.Create(&conv).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return contact, conv
}

func seedCard(t *testing.T, dbc *gorm.DB, pipeline models.Pipeline, column models.Column, contact models.Contact, conv models.Conversation, movedAgo time.Duration) models.Card {
	t.Helper()
	moved := time.Now().Add(-movedAgo)
	card := models.Card{
		Title:           contact.Name,
		PipelineID:      pipeline.ID,
		ColumnID:        column.ID,
		ContactID:       contact.ID,
		ConversationID:  conv.ID,
		WorkspaceID:     conv.WorkspaceID,
		MovedToColumnAt: &moved,
	}
	if err := dbc.Create(&card).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return card
}

func seedContactMessage(t *testing.T, dbc *gorm.DB, conv models.Conversation, content string) {
	t.Helper()
	msg := models.Message{
		ConversationID: conv.ID,
		SenderType:     models.MESSAGE_SENDER_CONTACT,
		Status:         models.MESSAGE_STATUS_DELIVERED,
		Content:        content,
		MessageType:    models.MESSAGE_TYPE_TEXT,
	}
	if err := dbc.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

func seedAutomation(t *testing.T, dbc *gorm.DB, ws models.Workspace, column models.Column, trigger models.AutomationTrigger, actions ...models.AutomationAction) models.Automation {
	t.Helper()
	automation := models.Automation{
		Name:        "auto",
		ColumnID:    column.ID,
		WorkspaceID: ws.ID,
		IsActive:    true,
	}
	if err := dbc.Create(&automation).Error; err != nil {
		t.Fatalf("seed automation: %v", err)
	}
	trigger.AutomationID = automation.ID
	if err := dbc.Create(&trigger).Error; err != nil {
		t.Fatalf("seed trigger: %v", err)
	}
	for i := range actions {
		actions[i].AutomationID = automation.ID
		if err := dbc.Create(&actions[i]).Error; err != nil {
			t.Fatalf("seed action: %v", err)
		}
	}
	return automation
}

func executionCount(t *testing.T, dbc *gorm.DB) int {
	t.Helper()
	var count int
	if err := dbc.Model(&models.AutomationExecution{}).Count(&count).Error; err != nil {
		t.Fatalf("count executions: %v", err)
	}
	return count
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
