package service

import (
	"context"
	"testing"

	"axtro-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChat(t *testing.T) {
	repo := newFakeChatRepo()
	svc := NewChatService(repo)
	user := &model.User{ID: 7}

	chat, err := svc.CreateChat(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo chat", chat.Name)
	assert.Equal(t, user.ID, chat.UserID)
	assert.NotNil(t, chat.Messages)
	assert.Empty(t, chat.Messages)
}

func TestDeleteChat(t *testing.T) {
	chat := &model.Chat{ID: 3, UserID: 7}
	repo := newFakeChatRepo(chat)
	svc := NewChatService(repo)

	require.NoError(t, svc.DeleteChat(context.Background(), 7, 3))
	_, ok := repo.chats[3]
	assert.False(t, ok)
}

func TestDeleteChat_NotOwned(t *testing.T) {
	chat := &model.Chat{ID: 3, UserID: 7}
	repo := newFakeChatRepo(chat)
	svc := NewChatService(repo)

	// 他人的对话与不存在的对话均返回未找到
	assert.ErrorIs(t, svc.DeleteChat(context.Background(), 99, 3), ErrChatNotFound)
	assert.ErrorIs(t, svc.DeleteChat(context.Background(), 7, 12345), ErrChatNotFound)
	_, ok := repo.chats[3]
	assert.True(t, ok)
}

func TestGetChats(t *testing.T) {
	repo := newFakeChatRepo(
		&model.Chat{ID: 1, UserID: 7},
		&model.Chat{ID: 2, UserID: 8},
	)
	svc := NewChatService(repo)

	chats, err := svc.GetChats(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, uint(1), chats[0].ID)
}
