package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"axtro-go/internal/config"
	"axtro-go/internal/model"
	"axtro-go/pkg/genai"
	"axtro-go/pkg/log"
	"axtro-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// fakeChatRepo 是 ChatRepository 的内存实现。
type fakeChatRepo struct {
	chats     map[uint]*model.Chat
	appendErr error
	appends   [][]model.Message
}

func newFakeChatRepo(chats ...*model.Chat) *fakeChatRepo {
	r := &fakeChatRepo{chats: make(map[uint]*model.Chat)}
	for _, c := range chats {
		r.chats[c.ID] = c
	}
	return r
}

func (r *fakeChatRepo) Create(_ context.Context, chat *model.Chat) error {
	if chat.ID == 0 {
		chat.ID = uint(len(r.chats) + 100)
	}
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) FindOwnedChat(_ context.Context, chatID, userID uint) (*model.Chat, error) {
	chat, ok := r.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return chat, nil
}

func (r *fakeChatRepo) ListByUser(_ context.Context, userID uint) ([]model.Chat, error) {
	var out []model.Chat
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) Delete(_ context.Context, chatID, userID uint) error {
	delete(r.chats, chatID)
	return nil
}

func (r *fakeChatRepo) AppendAndSave(_ context.Context, chat *model.Chat, newMessages []model.Message) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	chat.Messages = append(chat.Messages, newMessages...)
	chat.Version++
	r.appends = append(r.appends, newMessages)
	return nil
}

// fakeUserRepo 记录额度扣减调用。
type fakeUserRepo struct {
	decrements []int
	decErr     error
}

func (r *fakeUserRepo) Create(_ context.Context, _ *model.User) error { return nil }

func (r *fakeUserRepo) FindByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, _ uint) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) DecrementCredits(_ context.Context, _ uint, amount int) error {
	r.decrements = append(r.decrements, amount)
	return r.decErr
}

type fakeTextClient struct {
	reply string
	err   error
}

func (c *fakeTextClient) GenerateText(ctx context.Context, _ string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return c.reply, c.err
}

type fakeImageClient struct {
	data []byte
	err  error
}

func (c *fakeImageClient) GenerateImage(ctx context.Context, _ string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return c.data, c.err
}

type fakeImageStore struct {
	url string
	err error
}

func (s *fakeImageStore) Upload(_ context.Context, _ string, _ []byte) (string, error) {
	return s.url, s.err
}

type fixture struct {
	chatRepo *fakeChatRepo
	userRepo *fakeUserRepo
	text     *fakeTextClient
	image    *fakeImageClient
	store    *fakeImageStore
	events   []tasks.UsageEvent
	svc      MessageService
	user     *model.User
	chat     *model.Chat
}

func newFixture() *fixture {
	f := &fixture{
		user:  &model.User{ID: 7, Username: "ana", Credits: 50},
		text:  &fakeTextClient{reply: "¡Hola! ¿En qué te ayudo?"},
		image: &fakeImageClient{data: []byte("png-bytes")},
		store: &fakeImageStore{url: "http://minio.local/axtro/axtro-1.png"},
	}
	f.chat = &model.Chat{ID: 3, UserID: f.user.ID, Name: "Nuevo chat"}
	f.chatRepo = newFakeChatRepo(f.chat)
	f.userRepo = &fakeUserRepo{}
	publish := func(e tasks.UsageEvent) error {
		f.events = append(f.events, e)
		return nil
	}
	f.svc = NewMessageService(
		f.chatRepo, f.userRepo, f.text, f.image, f.store,
		publish, config.QuotaConfig{TextCost: 1, ImageCost: 2},
	)
	return f
}

func TestSendText(t *testing.T) {
	f := newFixture()

	reply, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "Hola", nil)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "¡Hola! ¿En qué te ayudo?", reply.Content)

	// 用户消息与助手回复在一次写入中落盘
	require.Len(t, f.chatRepo.appends, 1)
	require.Len(t, f.chat.Messages, 2)
	assert.Equal(t, model.RoleUser, f.chat.Messages[0].Role)
	assert.Equal(t, "Hola", f.chat.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, f.chat.Messages[1].Role)
	assert.False(t, f.chat.Messages[1].IsImage)

	// 额度结算：文本消耗 1
	require.Len(t, f.userRepo.decrements, 1)
	assert.Equal(t, 1, f.userRepo.decrements[0])
	require.Len(t, f.events, 1)
	assert.Equal(t, ModeText, f.events[0].Mode)
	assert.Equal(t, 1, f.events[0].Cost)
	assert.Equal(t, f.chat.ID, f.events[0].ChatID)
}

func TestSendText_EmptyPrompt(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.chat.Messages)
	assert.Empty(t, f.events)
}

func TestSendText_ChatNotOwned(t *testing.T) {
	f := newFixture()
	stranger := &model.User{ID: 99, Username: "otro"}

	_, err := f.svc.SendText(context.Background(), stranger, f.chat.ID, "Hola", nil)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.Empty(t, f.chat.Messages)
}

func TestSendText_ChatMissing(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SendText(context.Background(), f.user, 12345, "Hola", nil)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSendText_ProviderFailure(t *testing.T) {
	f := newFixture()
	f.text.err = errors.New("upstream 500")

	_, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "Hola", nil)
	assert.ErrorIs(t, err, ErrProviderError)

	// 失败时仅持久化用户消息，客户端重新拉取后可以看到它
	require.Len(t, f.chat.Messages, 1)
	assert.Equal(t, model.RoleUser, f.chat.Messages[0].Role)
	assert.Equal(t, "Hola", f.chat.Messages[0].Content)
	assert.Empty(t, f.events)
}

func TestSendText_ProviderUnavailable(t *testing.T) {
	f := newFixture()
	f.text.err = genai.ErrNotConfigured

	_, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "Hola", nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	require.Len(t, f.chat.Messages, 1)
}

func TestSendText_CallerCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SendText(ctx, f.user, f.chat.ID, "Hola", nil)
	assert.ErrorIs(t, err, context.Canceled)

	// 调用方主动取消时不持久化任何内容
	assert.Empty(t, f.chat.Messages)
	assert.Empty(t, f.events)
}

func TestSendText_StorageFailure(t *testing.T) {
	f := newFixture()
	f.chatRepo.appendErr = errors.New("db down")

	_, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "Hola", nil)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, f.events)
}

func TestSendText_QuotaFailureDoesNotAffectResult(t *testing.T) {
	f := newFixture()
	f.userRepo.decErr = errors.New("db down")

	reply, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "Hola", nil)
	require.NoError(t, err)
	assert.NotNil(t, reply)
	require.Len(t, f.chat.Messages, 2)
}

func TestSendImage(t *testing.T) {
	f := newFixture()

	reply, err := f.svc.SendImage(context.Background(), f.user, f.chat.ID, "un gato astronauta", nil, true)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.True(t, reply.IsImage)
	assert.True(t, reply.IsPublished)
	assert.Equal(t, f.store.url, reply.Content)

	require.Len(t, f.chat.Messages, 2)
	assert.Equal(t, model.RoleUser, f.chat.Messages[0].Role)
	assert.Equal(t, f.store.url, f.chat.Messages[1].Content)

	// 图片消耗 2
	require.Len(t, f.events, 1)
	assert.Equal(t, ModeImage, f.events[0].Mode)
	assert.Equal(t, 2, f.events[0].Cost)
}

func TestSendImage_UploadFailure(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("minio unreachable")

	_, err := f.svc.SendImage(context.Background(), f.user, f.chat.ID, "un gato", nil, false)
	assert.ErrorIs(t, err, ErrStorage)

	// 转存失败时同样保留用户消息
	require.Len(t, f.chat.Messages, 1)
	assert.Equal(t, model.RoleUser, f.chat.Messages[0].Role)
}

func TestSendImage_ProviderFailure(t *testing.T) {
	f := newFixture()
	f.image.err = errors.New("gateway 502")

	_, err := f.svc.SendImage(context.Background(), f.user, f.chat.ID, "un gato", nil, false)
	assert.ErrorIs(t, err, ErrProviderError)
	require.Len(t, f.chat.Messages, 1)
	assert.Empty(t, f.events)
}

func TestBuildPromptIncludesProfile(t *testing.T) {
	f := newFixture()
	verbose := &model.AssistantProfile{Language: "español", Tone: "formal", Verbosity: "alto"}

	var captured string
	f.text.reply = "ok"
	orig := f.text
	f.svc = NewMessageService(
		f.chatRepo, f.userRepo,
		textClientFunc(func(ctx context.Context, prompt string) (string, error) {
			captured = prompt
			return orig.GenerateText(ctx, prompt)
		}),
		f.image, f.store, nil, config.QuotaConfig{TextCost: 1, ImageCost: 2},
	)

	_, err := f.svc.SendText(context.Background(), f.user, f.chat.ID, "Hola", verbose)
	require.NoError(t, err)
	assert.Contains(t, captured, "Eres Axtro")
	assert.Contains(t, captured, "Responde en español.")
	assert.Contains(t, captured, "Usa un tono formal.")
	assert.Contains(t, captured, "Nivel de detalle: alto.")
	assert.Contains(t, captured, "Pregunta del usuario:\nHola")
}

type textClientFunc func(ctx context.Context, prompt string) (string, error)

func (f textClientFunc) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
