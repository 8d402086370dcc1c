// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"axtro-go/internal/model"

	"gorm.io/gorm"
)

// ErrAppendConflict 表示追加消息时乐观并发重试次数已耗尽。
var ErrAppendConflict = errors.New("追加消息时发生并发冲突")

// maxAppendRetries 是版本冲突时重新加载并重试的次数上限。
const maxAppendRetries = 3

// ChatRepository 接口定义了对话数据的持久化操作。
type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	// FindOwnedChat 按 (chatID, userID) 查找对话；归属校验是强制的，
	// 他人的对话与不存在的对话不可区分。
	FindOwnedChat(ctx context.Context, chatID, userID uint) (*model.Chat, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Chat, error)
	Delete(ctx context.Context, chatID, userID uint) error
	// AppendAndSave 以追加语义把新消息写入对话并持久化。
	// 通过版本号乐观校验避免两个并发回合互相覆盖对方追加的消息。
	AppendAndSave(ctx context.Context, chat *model.Chat, newMessages []model.Message) error
}

// chatRepository 是 ChatRepository 接口的 GORM 实现。
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Create 在数据库中创建一个新的对话记录。
func (r *chatRepository) Create(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

// FindOwnedChat 按 (chatID, userID) 查找对话。
func (r *chatRepository) FindOwnedChat(ctx context.Context, chatID, userID uint) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListByUser 按更新时间倒序返回用户的全部对话。
func (r *chatRepository) ListByUser(ctx context.Context, userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

// Delete 删除一条归属于该用户的对话。
func (r *chatRepository) Delete(ctx context.Context, chatID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", chatID, userID).
		Delete(&model.Chat{}).Error
}

// AppendAndSave 把 newMessages 追加到 chat 的消息序列并持久化。
// 更新语句携带版本号条件；未命中说明另一个回合先行提交，
// 此时重新加载最新状态再追加，最多重试 maxAppendRetries 次。
func (r *chatRepository) AppendAndSave(ctx context.Context, chat *model.Chat, newMessages []model.Message) error {
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		merged := make(model.MessageList, 0, len(chat.Messages)+len(newMessages))
		merged = append(merged, chat.Messages...)
		merged = append(merged, newMessages...)

		now := time.Now()
		res := r.db.WithContext(ctx).Model(&model.Chat{}).
			Where("id = ? AND version = ?", chat.ID, chat.Version).
			Updates(map[string]interface{}{
				"messages":   merged,
				"version":    chat.Version + 1,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("持久化对话消息失败: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			chat.Messages = merged
			chat.Version++
			chat.UpdatedAt = now
			return nil
		}

		// 版本冲突：重新加载后重试
		fresh, err := r.FindOwnedChat(ctx, chat.ID, chat.UserID)
		if err != nil {
			return fmt.Errorf("并发冲突后重新加载对话失败: %w", err)
		}
		chat.Messages = fresh.Messages
		chat.Version = fresh.Version
	}
	return ErrAppendConflict
}
