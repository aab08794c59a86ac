package service

import (
	"errors"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
	"github.com/Leyton-2712/syncro-chat-copia/internal/notify"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MessageService 封装消息的持久化和改删，内容的改删只允许发送者本人。
type MessageService struct {
	db   *gorm.DB
	eval *access.Evaluator
	bus  notify.Notifier
}

func NewMessageService(db *gorm.DB, eval *access.Evaluator, bus notify.Notifier) *MessageService {
	return &MessageService{db: db, eval: eval, bus: bus}
}

// Create 先做访问判定再落库，messageType 缺省为 text。
// 实时路径每次发消息都重新走这里的判定，不信任之前的 join 状态。
func (s *MessageService) Create(dto CreateMessageDTO, senderID uint) Result {
	allowed, err := s.eval.CanAccess(senderID, dto.ChatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", dto.ChatID).Msg("create message access check")
		return internal("failed to send message")
	}
	if !allowed {
		return forbidden("you are not a member of this chat")
	}

	msgType := dto.MessageType
	if msgType == "" {
		msgType = "text"
	}
	msg := models.Message{Content: dto.Content, MessageType: msgType, SenderID: senderID, ChatID: dto.ChatID}
	if err := s.db.Create(&msg).Error; err != nil {
		log.Error().Err(err).Uint("chat_id", dto.ChatID).Uint("sender_id", senderID).Msg("create message")
		return internal("failed to send message")
	}

	var sender models.User
	if err := s.db.Select("id", "username").First(&sender, senderID).Error; err != nil {
		log.Error().Err(err).Uint("sender_id", senderID).Msg("create message sender")
		return internal("failed to send message")
	}
	return created("message sent", &MessageDTO{
		ID:        msg.ID,
		Content:   msg.Content,
		UserID:    msg.SenderID,
		Username:  sender.Username,
		ChatID:    msg.ChatID,
		CreatedAt: msg.CreatedAt,
	})
}

// ListForChat 校验访问权限后按创建时间升序返回聊天的全部消息。
func (s *MessageService) ListForChat(chatID, userID uint) Result {
	allowed, err := s.eval.CanAccess(userID, chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("list messages access check")
		return internal("failed to load messages")
	}
	if !allowed {
		return forbidden("you do not have access to this chat")
	}

	var msgs []models.Message
	if err := s.db.Where("chat_id = ?", chatID).Order("created_at asc, id asc").Find(&msgs).Error; err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("list messages")
		return internal("failed to load messages")
	}
	flat, err := flattenMessages(s.db, msgs)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("list messages flatten")
		return internal("failed to load messages")
	}
	return ok("messages loaded", flat)
}

// GetByID 返回单条消息，要求请求者能访问消息所在的聊天。
func (s *MessageService) GetByID(messageID, userID uint) Result {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("message not found")
		}
		log.Error().Err(err).Uint("message_id", messageID).Msg("get message")
		return internal("failed to load message")
	}
	allowed, err := s.eval.CanAccess(userID, msg.ChatID)
	if err != nil {
		log.Error().Err(err).Uint("message_id", messageID).Msg("get message access check")
		return internal("failed to load message")
	}
	if !allowed {
		return forbidden("you do not have access to this message")
	}
	flat, err := flattenMessages(s.db, []models.Message{msg})
	if err != nil {
		log.Error().Err(err).Uint("message_id", messageID).Msg("get message flatten")
		return internal("failed to load message")
	}
	return ok("message loaded", &flat[0])
}

// Update 修改消息内容。归属校验放在 UPDATE 的 WHERE 条件里再做一次，
// 避免读取和写入之间的竞态放行非发送者的修改。
func (s *MessageService) Update(messageID, userID uint, content string) Result {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("message not found")
		}
		log.Error().Err(err).Uint("message_id", messageID).Msg("update message load")
		return internal("failed to update message")
	}
	if msg.SenderID != userID {
		return forbidden("you can only edit your own messages")
	}

	res := s.db.Model(&models.Message{}).
		Where("id = ? AND sender_id = ?", messageID, userID).
		Update("content", content)
	if res.Error != nil {
		log.Error().Err(res.Error).Uint("message_id", messageID).Msg("update message")
		return internal("failed to update message")
	}
	if res.RowsAffected == 0 {
		return notFound("message not found")
	}

	msg.Content = content
	flat, err := flattenMessages(s.db, []models.Message{msg})
	if err != nil {
		log.Error().Err(err).Uint("message_id", messageID).Msg("update message flatten")
		return internal("failed to update message")
	}
	s.bus.Publish(msg.ChatID, "message_updated", &flat[0])
	return ok("message updated", &flat[0])
}

// Delete 删除消息，同样把归属校验并入 DELETE 语句本身。
func (s *MessageService) Delete(messageID, userID uint) Result {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("message not found")
		}
		log.Error().Err(err).Uint("message_id", messageID).Msg("delete message load")
		return internal("failed to delete message")
	}
	if msg.SenderID != userID {
		return forbidden("you can only delete your own messages")
	}

	res := s.db.Where("id = ? AND sender_id = ?", messageID, userID).Delete(&models.Message{})
	if res.Error != nil {
		log.Error().Err(res.Error).Uint("message_id", messageID).Msg("delete message")
		return internal("failed to delete message")
	}
	if res.RowsAffected == 0 {
		return notFound("message not found")
	}

	s.bus.Publish(msg.ChatID, "message_deleted", map[string]uint{"messageId": messageID, "chatId": msg.ChatID})
	return ok("message deleted", nil)
}

// flattenMessages 把存储模型批量转换成对外结构，用户名一次性查出。
func flattenMessages(db *gorm.DB, msgs []models.Message) ([]MessageDTO, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		userIDs = append(userIDs, m.SenderID)
	}

	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:        m.ID,
			Content:   m.Content,
			UserID:    m.SenderID,
			Username:  usernames[m.SenderID],
			ChatID:    m.ChatID,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
