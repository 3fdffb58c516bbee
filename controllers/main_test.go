package controllers

import (
	"os"
	"strconv"
	"testing"
	"time"

	"zapcrm/config"
	dbpkg "zapcrm/db"
	"zapcrm/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbc, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// :memory: é por conexão; uma conexão só mantém todo mundo no mesmo banco
	dbc.DB().SetMaxOpenConns(1)
	dbc.LogMode(false)
	dbpkg.AutoMigrate(dbc)
	t.Cleanup(func() { dbc.Close() })
	return dbc
}

func testConfig() config.Configuration {
	var c config.Configuration
	c.FlowEngine.WebhookURL = "http://engine.test/hook"
	c.FlowEngine.Secret = "engine-secret"
	return config.ApplyDefaults(c)
}

func seedWorkspace(t *testing.T, dbc *gorm.DB) models.Workspace {
	t.Helper()
	ws := models.Workspace{Name: "Acme"}
	if err := dbc.Create(&ws).Error; err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	return ws
}

func seedConnection(t *testing.T, dbc *gorm.DB, ws models.Workspace, instance, phone string) models.Connection {
	t.Helper()
	conn := models.Connection{
		InstanceName: instance,
		PhoneNumber:  phone,
		WorkspaceID:  ws.ID,
		Status:       models.CONNECTION_STATUS_CONNECTED,
	}
	if err := dbc.Create(&conn).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return conn
}

func seedContact(t *testing.T, dbc *gorm.DB, ws models.Workspace, phone string) models.Contact {
	t.Helper()
	contact := models.Contact{Phone: phone, WorkspaceID: ws.ID, Name: "Fulano"}
	if err := dbc.Create(&contact).Error; err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	return contact
}

func seedConversation(t *testing.T, dbc *gorm.DB, contact models.Contact, conn models.Connection, connPhone string) models.Conversation {
	t.Helper()
	conv := models.Conversation{
		ContactID:       contact.ID,
		ConnectionID:    conn.ID,
		WorkspaceID:     conn.WorkspaceID,
		ConnectionPhone: connPhone,
		Status:          models.CONVERSATION_STATUS_ACTIVE,
	}
	if err := dbc.Create(&conv).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return conv
}

func seedMessage(t *testing.T, dbc *gorm.DB, conv models.Conversation, keyID, status string) models.Message {
	t.Helper()
	msg := models.Message{
		ConversationID: conv.ID,
		EvolutionKeyID: keyID,
		SenderType:     models.MESSAGE_SENDER_AGENT,
		Status:         status,
		Content:        "olá",
		MessageType:    models.MESSAGE_TYPE_TEXT,
	}
	if err := dbc.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return msg
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
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
