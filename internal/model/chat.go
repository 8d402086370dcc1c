package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MessageList 是消息的有序序列（插入顺序即对话顺序），
// 以 JSON 形式整体存储在 chats 表的一列中。
type MessageList []Message

// Value 实现 driver.Valuer 接口，用于 GORM 写入。
func (m MessageList) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("序列化消息列表失败: %w", err)
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口，用于 GORM 读取。
func (m *MessageList) Scan(value interface{}) error {
	if value == nil {
		*m = MessageList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 MessageList", value)
	}
	if len(data) == 0 {
		*m = MessageList{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Chat 代表一个归属于单个用户的持久化对话。
// 消息序列只增不改；Version 用于追加写入时的乐观并发控制。
type Chat struct {
	ID        uint        `gorm:"primaryKey" json:"_id"`
	UserID    uint        `gorm:"index;not null" json:"userId"`
	Name      string      `gorm:"size:255;not null" json:"name"`
	Messages  MessageList `gorm:"type:json" json:"messages"`
	Version   int64       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Chat) TableName() string {
	return "chats"
}
