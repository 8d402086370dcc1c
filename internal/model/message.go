// Package model 包含了应用的数据模型定义。
package model

// 消息角色是一个封闭的二值标签。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 代表对话中的一条消息。消息一旦被追加即不可变更，
// 唯一允许的例外是客户端取消时按时间戳精确撤回刚追加的用户消息。
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"` // 毫秒时间戳，同一对话内单调不减
	IsImage     bool   `json:"isImage"`
	IsPublished bool   `json:"isPublished,omitempty"` // 仅图片消息使用
}

// NewUserMessage 构造一条用户消息。
func NewUserMessage(content string, timestamp int64) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: timestamp,
		IsImage:   false,
	}
}

// NewAssistantMessage 构造一条助手文本回复。
func NewAssistantMessage(content string, timestamp int64) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: timestamp,
		IsImage:   false,
	}
}

// NewAssistantImage 构造一条助手图片回复，content 为持久化后的图片 URL。
func NewAssistantImage(url string, timestamp int64, published bool) Message {
	return Message{
		Role:        RoleAssistant,
		Content:     url,
		Timestamp:   timestamp,
		IsImage:     true,
		IsPublished: published,
	}
}
