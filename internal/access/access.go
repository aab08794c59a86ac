package access

import (
	"github.com/Leyton-2712/syncro-chat-copia/internal/models"
	"gorm.io/gorm"
)

// GeneralChatID 是公共聊天室的固定 id，所有已登录用户无需成员记录即可读写。
const GeneralChatID uint = 1

// Evaluator 是唯一的聊天访问判定入口，REST 和 WebSocket 两条路径都必须走这里，
// 保证规则不会分叉。
type Evaluator struct {
	db *gorm.DB
}

func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// CanAccess 判断用户能否读写指定聊天：公共聊天室直接放行，
// 其余聊天要求存在 ChatParticipant 记录。
func (e *Evaluator) CanAccess(userID, chatID uint) (bool, error) {
	if chatID == GeneralChatID {
		return true, nil
	}
	var count int64
	err := e.db.Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
