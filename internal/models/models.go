package models

import "time"

type User struct {
	ID           uint    `gorm:"primaryKey"`
	Username     string  `gorm:"uniqueIndex;size:64;not null"`
	Email        string  `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash *string // 第三方登录的账号没有密码
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Chat struct {
	ID          uint    `gorm:"primaryKey"`
	Name        *string `gorm:"size:128"`
	IsGroupChat bool    `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ChatParticipant struct {
	ID        uint `gorm:"primaryKey"`
	ChatID    uint `gorm:"uniqueIndex:idx_chat_user;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_chat_user;not null"`
	IsPinned  bool `gorm:"not null;default:false"`
	CreatedAt time.Time
}

type Message struct {
	ID          uint   `gorm:"primaryKey"`
	Content     string `gorm:"type:text;not null"`
	MessageType string `gorm:"size:32;not null;default:text"`
	SenderID    uint   `gorm:"index;not null"`
	ChatID      uint   `gorm:"index:idx_msg_chat_id;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
