package models

import "time"

// MaxMessageLength bounds Message.Content, counted in runes.
const MaxMessageLength = 1000

// Message 代表两个用户之间的一条私信。
type Message struct {
	BaseModel
	FromUserID uint   `gorm:"index:idx_message_participants;not null" json:"fromUserId"`
	ToUserID   uint   `gorm:"index:idx_message_participants;not null" json:"toUserId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Edited     bool   `gorm:"not null;default:false" json:"edited"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// EditableAt reports whether the message can still be edited at now.
func (m *Message) EditableAt(now time.Time, window time.Duration) bool {
	return now.Sub(m.CreatedAt) <= window
}

// Involves reports whether userID sent or received the message.
func (m *Message) Involves(userID uint) bool {
	return m.FromUserID == userID || m.ToUserID == userID
}
