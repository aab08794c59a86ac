package service

import (
	"net/http"
	"testing"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/auth"
	"github.com/Leyton-2712/syncro-chat-copia/internal/config"
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
)

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, Env: "dev"}
}

func TestUserService_Register(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewUserService(gdb, testConfig())

	res := svc.Register("alice", "alice@example.com", "password")
	if res.Status != http.StatusCreated {
		t.Fatalf("Register() status = %d, want 201 (%s)", res.Status, res.Message)
	}
	u := res.Data.(*UserSummary)
	if u.Username != "alice" || u.Email != "alice@example.com" {
		t.Errorf("Register() data = %+v", u)
	}

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"duplicate username", "alice", "other@example.com"},
		{"duplicate email", "other", "alice@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.Register(tt.username, tt.email, "password")
			if res.Status != http.StatusBadRequest {
				t.Errorf("Register() status = %d, want 400", res.Status)
			}
		})
	}
}

func TestUserService_Login(t *testing.T) {
	gdb := newTestDB(t)
	cfg := testConfig()
	svc := NewUserService(gdb, cfg)
	svc.Register("alice", "alice@example.com", "password")

	t.Run("valid credentials issue a token", func(t *testing.T) {
		res := svc.Login("alice@example.com", "password")
		if res.Status != http.StatusOK {
			t.Fatalf("Login() status = %d, want 200 (%s)", res.Status, res.Message)
		}
		data := res.Data.(*LoginData)
		claims, err := auth.ParseAccessToken(data.Token, cfg.JWTSecret)
		if err != nil {
			t.Fatalf("ParseAccessToken() error = %v", err)
		}
		if claims.Username != "alice" || claims.Email != "alice@example.com" {
			t.Errorf("token claims = %+v", claims)
		}
	})

	t.Run("login joins the general chat", func(t *testing.T) {
		var user models.User
		gdb.Where("username = ?", "alice").First(&user)
		var count int64
		gdb.Model(&models.ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", access.GeneralChatID, user.ID).
			Count(&count)
		if count != 1 {
			t.Errorf("general chat participant rows = %d, want 1", count)
		}
		// a second login must not create a duplicate row
		svc.Login("alice@example.com", "password")
		gdb.Model(&models.ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", access.GeneralChatID, user.ID).
			Count(&count)
		if count != 1 {
			t.Errorf("general chat participant rows after relogin = %d, want 1", count)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		res := svc.Login("alice@example.com", "nope")
		if res.Status != http.StatusUnauthorized {
			t.Errorf("Login() status = %d, want 401", res.Status)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		res := svc.Login("ghost@example.com", "password")
		if res.Status != http.StatusNotFound {
			t.Errorf("Login() status = %d, want 404", res.Status)
		}
	})

	t.Run("identity-provider account has no password", func(t *testing.T) {
		gdb.Create(&models.User{Username: "sso", Email: "sso@example.com", PasswordHash: nil})
		res := svc.Login("sso@example.com", "anything")
		if res.Status != http.StatusUnauthorized {
			t.Errorf("Login() status = %d, want 401", res.Status)
		}
	})
}
