package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"zapcrm/config"
	dbpkg "zapcrm/db"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func newServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbc, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbc.DB().SetMaxOpenConns(1)
	dbc.LogMode(false)
	dbpkg.AutoMigrate(dbc)
	t.Cleanup(func() { dbc.Close() })

	r := gin.New()
	r.Use(dbpkg.SetDBtoContext(dbc))
	Initialize(r, config.ApplyDefaults(config.Configuration{}))
	return r
}

func TestHealthEndpoint(t *testing.T) {
	r := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	if id, _ := body["requestId"].(string); id == "" {
		t.Fatal("requestId missing from response")
	}
}

func TestWrongMethodIs405(t *testing.T) {
	r := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/webhook/evolution", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestPreflightAllowed(t *testing.T) {
	r := newServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/webhook/evolution", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for preflight", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("CORS headers missing")
	}
}
