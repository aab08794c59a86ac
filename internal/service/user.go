package service

import (
	"errors"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/auth"
	"github.com/Leyton-2712/syncro-chat-copia/internal/config"
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserService 封装注册和登录。OAuth 登录不在本服务范围内。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// Register 注册新用户，用户名和邮箱都要求唯一。
func (s *UserService) Register(username, email, password string) Result {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ? OR email = ?", username, email).Count(&count).Error; err != nil {
		log.Error().Err(err).Str("username", username).Msg("register lookup")
		return internal("failed to register user")
	}
	if count > 0 {
		return badRequest("user already exists")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("register hash password")
		return internal("failed to register user")
	}
	user := models.User{Username: username, Email: email, PasswordHash: &hash}
	if err := s.db.Create(&user).Error; err != nil {
		log.Error().Err(err).Str("username", username).Msg("register create user")
		return internal("failed to register user")
	}
	return created("user registered", &UserSummary{ID: user.ID, Username: user.Username, Email: user.Email})
}

// LoginData 是登录成功后返回的数据。
type LoginData struct {
	User  UserSummary `json:"user"`
	Token string      `json:"token"`
}

// Login 按邮箱校验密码并签发 token。首次登录时顺带补上公共聊天室的成员记录，
// 之后 getChatById(1) 对所有用户都能命中成员行。
func (s *UserService) Login(email, password string) Result {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user does not exist")
		}
		log.Error().Err(err).Str("email", email).Msg("login query user")
		return internal("login failed")
	}
	if user.PasswordHash == nil || !auth.VerifyPassword(*user.PasswordHash, password) {
		return unauthorized("invalid credentials")
	}

	p := models.ChatParticipant{ChatID: access.GeneralChatID, UserID: user.ID}
	if err := s.db.Where("chat_id = ? AND user_id = ?", p.ChatID, p.UserID).FirstOrCreate(&p).Error; err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("login ensure general participant")
		return internal("login failed")
	}

	token, err := auth.GenerateAccessToken(user.ID, user.Username, user.Email, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("login generate token")
		return internal("login failed")
	}
	return ok("login ok", &LoginData{
		User:  UserSummary{ID: user.ID, Username: user.Username, Email: user.Email},
		Token: token,
	})
}
