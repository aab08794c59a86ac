package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/config"
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
	"github.com/Leyton-2712/syncro-chat-copia/internal/notify"
	"github.com/Leyton-2712/syncro-chat-copia/internal/service"
	"github.com/Leyton-2712/syncro-chat-copia/internal/session"
	"github.com/Leyton-2712/syncro-chat-copia/internal/ws"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatParticipant{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	name := "General"
	if err := gdb.Create(&models.Chat{ID: access.GeneralChatID, Name: &name, IsGroupChat: true}).Error; err != nil {
		t.Fatalf("seed general chat: %v", err)
	}

	cfg := config.Config{Port: "0", JWTSecret: "test-secret", Env: "dev", AccessTokenTTLMinutes: 60}
	bus := notify.NewBus()
	eval := access.NewEvaluator(gdb)
	userSvc := service.NewUserService(gdb, cfg)
	chatSvc := service.NewChatService(gdb, eval, bus)
	msgSvc := service.NewMessageService(gdb, eval, bus)
	gw := ws.NewGateway(session.NewRegistry(), eval, chatSvc, msgSvc, cfg)
	bus.Attach(gw)
	return SetupRouter(cfg, NewHandler(userSvc, chatSvc, msgSvc), gw)
}

func do(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, r *gin.Engine, username, email string) string {
	t.Helper()
	if w := do(t, r, "POST", "/api/auth/register", "", gin.H{"username": username, "email": email, "password": "password"}); w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, w.Code, w.Body.String())
	}
	w := do(t, r, "POST", "/api/auth/login", "", gin.H{"email": email, "password": "password"})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var res struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if res.Data.Token == "" {
		t.Fatal("login returned an empty token")
	}
	return res.Data.Token
}

func TestRouter_HealthCheck(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, "GET", "/api/healthCheck", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("healthCheck status = %d, want 200", w.Code)
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	r := newTestRouter(t)
	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/chats"},
		{"POST", "/api/chats"},
		{"GET", "/api/chats/1/messages"},
		{"POST", "/api/messages"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := do(t, r, tt.method, tt.path, "", nil); w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRouter_RegisterValidation(t *testing.T) {
	r := newTestRouter(t)
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"username": "alice", "password": "password"}},
		{"short username", gin.H{"username": "a", "email": "a@example.com", "password": "password"}},
		{"short password", gin.H{"username": "alice", "email": "a@example.com", "password": "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, r, "POST", "/api/auth/register", "", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestRouter_ChatAndMessageFlow(t *testing.T) {
	r := newTestRouter(t)
	token := loginAs(t, r, "alice", "alice@example.com")

	// login puts the user in the general chat already
	w := do(t, r, "GET", "/api/chats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list chats status = %d body %s", w.Code, w.Body.String())
	}

	w = do(t, r, "POST", "/api/chats", token, gin.H{"name": "planning", "isGroupChat": true, "participantIds": []uint{}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat status = %d body %s", w.Code, w.Body.String())
	}
	var created struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create chat: %v", err)
	}
	chatID := created.Data.ID

	w = do(t, r, "POST", "/api/messages", token, gin.H{"chatId": chatID, "content": "kickoff"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create message status = %d body %s", w.Code, w.Body.String())
	}

	w = do(t, r, "GET", "/api/chats/"+uitoa(chatID)+"/messages", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages status = %d body %s", w.Code, w.Body.String())
	}
	var listed struct {
		Data []struct {
			Content  string `json:"content"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list messages: %v", err)
	}
	if len(listed.Data) != 1 || listed.Data[0].Content != "kickoff" || listed.Data[0].Username != "alice" {
		t.Errorf("messages = %+v", listed.Data)
	}
}

func TestRouter_ForbiddenChatAccess(t *testing.T) {
	r := newTestRouter(t)
	alice := loginAs(t, r, "alice", "alice@example.com")
	mallory := loginAs(t, r, "mallory", "mallory@example.com")

	w := do(t, r, "POST", "/api/chats", alice, gin.H{"name": "private", "participantIds": []uint{}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat status = %d", w.Code)
	}
	var created struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := do(t, r, "GET", "/api/chats/"+uitoa(created.Data.ID), mallory, nil); w.Code != http.StatusForbidden {
		t.Errorf("outsider get chat status = %d, want 403", w.Code)
	}
}

func TestRouter_InvalidPathID(t *testing.T) {
	r := newTestRouter(t)
	token := loginAs(t, r, "alice", "alice@example.com")
	if w := do(t, r, "GET", "/api/chats/banana", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func uitoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
