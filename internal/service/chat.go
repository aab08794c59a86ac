package service

import (
	"errors"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
	"github.com/Leyton-2712/syncro-chat-copia/internal/notify"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ChatService 封装聊天的增删改查，REST 和 WebSocket 共用同一条持久化路径。
type ChatService struct {
	db   *gorm.DB
	eval *access.Evaluator
	bus  notify.Notifier
}

func NewChatService(db *gorm.DB, eval *access.Evaluator, bus notify.Notifier) *ChatService {
	return &ChatService{db: db, eval: eval, bus: bus}
}

// Create 创建聊天并写入成员记录，创建者被去重并入成员列表，整体在一个事务里完成。
func (s *ChatService) Create(dto CreateChatDTO, creatorID uint) Result {
	ids := make([]uint, 0, len(dto.ParticipantIDs)+1)
	seen := map[uint]struct{}{creatorID: {}}
	ids = append(ids, creatorID)
	for _, id := range dto.ParticipantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	chat := models.Chat{Name: dto.Name, IsGroupChat: dto.IsGroupChat}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		for _, uid := range ids {
			if err := tx.Create(&models.ChatParticipant{ChatID: chat.ID, UserID: uid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint("creator_id", creatorID).Msg("create chat")
		return internal("failed to create chat")
	}

	participants, err := s.participantsOf(chat.ID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chat.ID).Msg("create chat load participants")
		return internal("failed to create chat")
	}
	return created("chat created", &ChatDTO{ID: chat.ID, Name: chat.Name, IsGroupChat: chat.IsGroupChat, Participants: participants})
}

// ListForUser 返回用户参与的全部聊天，每个聊天附带最近一条消息。
func (s *ChatService) ListForUser(userID uint) Result {
	var chats []models.Chat
	err := s.db.
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.id").
		Where("chat_participants.user_id = ?", userID).
		Find(&chats).Error
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("list chats")
		return internal("failed to list chats")
	}

	out := make([]ChatDTO, 0, len(chats))
	for _, c := range chats {
		participants, err := s.participantsOf(c.ID)
		if err != nil {
			log.Error().Err(err).Uint("chat_id", c.ID).Msg("list chats participants")
			return internal("failed to list chats")
		}
		dto := ChatDTO{ID: c.ID, Name: c.Name, IsGroupChat: c.IsGroupChat, Participants: participants}
		var last models.Message
		err = s.db.Where("chat_id = ?", c.ID).Order("created_at desc, id desc").First(&last).Error
		if err == nil {
			flat, ferr := s.flatten([]models.Message{last})
			if ferr != nil {
				log.Error().Err(ferr).Uint("chat_id", c.ID).Msg("list chats last message")
				return internal("failed to list chats")
			}
			dto.LastMessage = &flat[0]
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Uint("chat_id", c.ID).Msg("list chats last message")
			return internal("failed to list chats")
		}
		out = append(out, dto)
	}
	return ok("chats loaded", out)
}

// GetByID 校验访问权限后返回聊天、成员和按时间升序的完整消息历史。
func (s *ChatService) GetByID(chatID, userID uint) Result {
	allowed, err := s.eval.CanAccess(userID, chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("get chat access check")
		return internal("failed to load chat")
	}
	if !allowed {
		return forbidden("you do not have access to this chat")
	}

	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("chat not found")
		}
		log.Error().Err(err).Uint("chat_id", chatID).Msg("get chat")
		return internal("failed to load chat")
	}

	participants, err := s.participantsOf(chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("get chat participants")
		return internal("failed to load chat")
	}
	var msgs []models.Message
	if err := s.db.Where("chat_id = ?", chatID).Order("created_at asc, id asc").Find(&msgs).Error; err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("get chat messages")
		return internal("failed to load chat")
	}
	flat, err := s.flatten(msgs)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("get chat flatten")
		return internal("failed to load chat")
	}
	return ok("chat loaded", &ChatDTO{ID: chat.ID, Name: chat.Name, IsGroupChat: chat.IsGroupChat, Participants: participants, Messages: flat})
}

// Update 修改聊天名称并通过通知总线让房间内的在线用户刷新。
func (s *ChatService) Update(chatID, userID uint, name *string) Result {
	allowed, err := s.eval.CanAccess(userID, chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("update chat access check")
		return internal("failed to update chat")
	}
	if !allowed {
		return forbidden("you do not have access to this chat")
	}

	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("chat not found")
		}
		log.Error().Err(err).Uint("chat_id", chatID).Msg("update chat load")
		return internal("failed to update chat")
	}
	if err := s.db.Model(&chat).Update("name", name).Error; err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("update chat")
		return internal("failed to update chat")
	}
	dto := &ChatDTO{ID: chat.ID, Name: name, IsGroupChat: chat.IsGroupChat}
	s.bus.Publish(chatID, "chat_updated", dto)
	return ok("chat updated", dto)
}

// Delete 按消息、成员、聊天的依赖顺序在一个事务里级联删除，不依赖数据库隐式级联。
func (s *ChatService) Delete(chatID, userID uint) Result {
	allowed, err := s.eval.CanAccess(userID, chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("delete chat access check")
		return internal("failed to delete chat")
	}
	if !allowed {
		return forbidden("you do not have access to this chat")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.ChatParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, chatID).Error
	})
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("delete chat")
		return internal("failed to delete chat")
	}
	return ok("chat deleted", nil)
}

// AddParticipant 把新成员加入聊天并广播 participant_added。
func (s *ChatService) AddParticipant(chatID, requesterID, newUserID uint) Result {
	allowed, err := s.eval.CanAccess(requesterID, chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("add participant access check")
		return internal("failed to add participant")
	}
	if !allowed {
		return forbidden("you do not have access to this chat")
	}

	var count int64
	if err := s.db.Model(&models.ChatParticipant{}).Where("chat_id = ? AND user_id = ?", chatID, newUserID).Count(&count).Error; err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("add participant lookup")
		return internal("failed to add participant")
	}
	if count > 0 {
		return badRequest("user is already a participant")
	}

	var user models.User
	if err := s.db.First(&user, newUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user not found")
		}
		log.Error().Err(err).Uint("user_id", newUserID).Msg("add participant user")
		return internal("failed to add participant")
	}

	p := models.ChatParticipant{ChatID: chatID, UserID: newUserID}
	if err := s.db.Create(&p).Error; err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Uint("user_id", newUserID).Msg("add participant")
		return internal("failed to add participant")
	}
	dto := &ParticipantDTO{ChatID: chatID, IsPinned: p.IsPinned, User: UserSummary{ID: user.ID, Username: user.Username, Email: user.Email}}
	s.bus.Publish(chatID, "participant_added", dto)
	return created("participant added", dto)
}

// participantsOf 取聊天全部成员的公开信息。
func (s *ChatService) participantsOf(chatID uint) ([]UserSummary, error) {
	var users []models.User
	err := s.db.Select("users.id", "users.username", "users.email").
		Joins("JOIN chat_participants ON chat_participants.user_id = users.id").
		Where("chat_participants.chat_id = ?", chatID).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	return out, nil
}

// flatten 把消息批量转换成对外结构，用户名一次性查出。
func (s *ChatService) flatten(msgs []models.Message) ([]MessageDTO, error) {
	return flattenMessages(s.db, msgs)
}
