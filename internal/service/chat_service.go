package service

import (
	"context"
	"errors"
	"fmt"

	"axtro-go/internal/model"
	"axtro-go/internal/repository"

	"gorm.io/gorm"
)

// defaultChatName 是新建对话的默认显示名。
const defaultChatName = "Nuevo chat"

// ChatService 定义了对话管理的接口。
type ChatService interface {
	CreateChat(ctx context.Context, user *model.User) (*model.Chat, error)
	GetChats(ctx context.Context, userID uint) ([]model.Chat, error)
	DeleteChat(ctx context.Context, userID, chatID uint) error
}

type chatService struct {
	chatRepo repository.ChatRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository) ChatService {
	return &chatService{chatRepo: chatRepo}
}

// CreateChat 为用户创建一个空对话。
func (s *chatService) CreateChat(ctx context.Context, user *model.User) (*model.Chat, error) {
	chat := &model.Chat{
		UserID:   user.ID,
		Name:     defaultChatName,
		Messages: model.MessageList{},
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return chat, nil
}

// GetChats 按更新时间倒序返回用户的全部对话。
func (s *chatService) GetChats(ctx context.Context, userID uint) ([]model.Chat, error) {
	chats, err := s.chatRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return chats, nil
}

// DeleteChat 删除一条归属于该用户的对话。
func (s *chatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	// 先确认归属，删除不存在的对话与删除他人的对话同样返回未找到
	if _, err := s.chatRepo.FindOwnedChat(ctx, chatID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.chatRepo.Delete(ctx, chatID, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
