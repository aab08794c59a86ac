package service

import (
	"sync"
	"testing"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatParticipant{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	name := "General"
	if err := gdb.Create(&models.Chat{ID: access.GeneralChatID, Name: &name, IsGroupChat: true}).Error; err != nil {
		t.Fatalf("seed general chat: %v", err)
	}
	return gdb
}

func makeUser(t *testing.T, gdb *gorm.DB, username, email string) models.User {
	t.Helper()
	hash := "x"
	u := models.User{Username: username, Email: email, PasswordHash: &hash}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func makeChat(t *testing.T, gdb *gorm.DB, name string, memberIDs ...uint) models.Chat {
	t.Helper()
	c := models.Chat{Name: &name, IsGroupChat: len(memberIDs) > 2}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatalf("create chat %s: %v", name, err)
	}
	for _, uid := range memberIDs {
		if err := gdb.Create(&models.ChatParticipant{ChatID: c.ID, UserID: uid}).Error; err != nil {
			t.Fatalf("create participant: %v", err)
		}
	}
	return c
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	ChatID  uint
	Event   string
	Payload any
}

func (n *recordingNotifier) Publish(chatID uint, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{ChatID: chatID, Event: event, Payload: payload})
}

func (n *recordingNotifier) all() []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]publishedEvent, len(n.events))
	copy(out, n.events)
	return out
}

func newChatService(t *testing.T, gdb *gorm.DB) (*ChatService, *recordingNotifier) {
	t.Helper()
	rec := &recordingNotifier{}
	return NewChatService(gdb, access.NewEvaluator(gdb), rec), rec
}

func newMessageService(t *testing.T, gdb *gorm.DB) (*MessageService, *recordingNotifier) {
	t.Helper()
	rec := &recordingNotifier{}
	return NewMessageService(gdb, access.NewEvaluator(gdb), rec), rec
}
