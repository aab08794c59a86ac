package service

import "time"

// UserSummary 是对外暴露的用户信息，永远不包含密码。
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// MessageDTO 是拍平后的消息结构，和前端约定保持一致，与存储模型解耦。
type MessageDTO struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	UserID    uint      `json:"userId"`
	Username  string    `json:"username"`
	ChatID    uint      `json:"chatId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatDTO 是对外输出的聊天数据，按需附带成员、最近一条消息或完整历史。
type ChatDTO struct {
	ID           uint          `json:"id"`
	Name         *string       `json:"name"`
	IsGroupChat  bool          `json:"isGroupChat"`
	Participants []UserSummary `json:"participants,omitempty"`
	LastMessage  *MessageDTO   `json:"lastMessage,omitempty"`
	Messages     []MessageDTO  `json:"messages,omitempty"`
}

// ParticipantDTO 是新增成员时广播给房间的数据。
type ParticipantDTO struct {
	ChatID   uint        `json:"chatId"`
	IsPinned bool        `json:"isPinned"`
	User     UserSummary `json:"user"`
}

type CreateChatDTO struct {
	Name           *string `json:"name"`
	IsGroupChat    bool    `json:"isGroupChat"`
	ParticipantIDs []uint  `json:"participantIds"`
}

type CreateMessageDTO struct {
	ChatID      uint   `json:"chatId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}
