package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"axtro-go/internal/config"
	"axtro-go/internal/model"
	"axtro-go/internal/repository"
	"axtro-go/pkg/genai"
	"axtro-go/pkg/log"
	"axtro-go/pkg/tasks"

	"gorm.io/gorm"
)

// 对话模式标识，随额度遥测事件发出。
const (
	ModeText  = "texto"
	ModeImage = "imagen"
)

// ImageStore 抽象了图片回复的持久化存储：上传字节并返回稳定 URL。
type ImageStore interface {
	Upload(ctx context.Context, objectName string, data []byte) (string, error)
}

// UsagePublisher 发送一条额度消耗遥测事件。发送是尽力而为的。
type UsagePublisher func(event tasks.UsageEvent) error

// MessageService 定义了回合执行的接口：校验、持久化用户消息、
// 调用生成服务、持久化回复并结算额度。
type MessageService interface {
	SendText(ctx context.Context, user *model.User, chatID uint, prompt string, profile *model.AssistantProfile) (*model.Message, error)
	SendImage(ctx context.Context, user *model.User, chatID uint, prompt string, profile *model.AssistantProfile, publish bool) (*model.Message, error)
}

type messageService struct {
	chatRepo     repository.ChatRepository
	userRepo     repository.UserRepository
	textClient   genai.TextClient
	imageClient  genai.ImageClient
	imageStore   ImageStore
	publishUsage UsagePublisher
	quota        config.QuotaConfig
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	textClient genai.TextClient,
	imageClient genai.ImageClient,
	imageStore ImageStore,
	publishUsage UsagePublisher,
	quota config.QuotaConfig,
) MessageService {
	return &messageService{
		chatRepo:     chatRepo,
		userRepo:     userRepo,
		textClient:   textClient,
		imageClient:  imageClient,
		imageStore:   imageStore,
		publishUsage: publishUsage,
		quota:        quota,
	}
}

// stylePrompt 是 Axtro 的固定人设模板，包裹用户输入后发给生成服务。
const stylePrompt = `Eres Axtro, un asistente directo, amable y conversacional.
Responde siempre en párrafos cortos (máximo 3), usando un tono claro, cálido y colaborativo.
Sé específico, evita rodeos y cierra las respuestas invitando al usuario a continuar la conversación si lo desea.
Pregunta o confirma lo necesario, pero no hagas discursos largos.`

// SendText 执行一个文本回合。
func (s *messageService) SendText(ctx context.Context, user *model.User, chatID uint, prompt string, profile *model.AssistantProfile) (*model.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrInvalidInput
	}

	// 1. 加载对话并校验归属
	chat, err := s.loadOwnedChat(ctx, chatID, user.ID)
	if err != nil {
		return nil, err
	}

	// 2. 构造用户消息（此时仅在内存中）
	userMsg := model.NewUserMessage(prompt, time.Now().UnixMilli())

	// 3. 以人设模板包裹输入并调用生成服务
	reply, err := s.textClient.GenerateText(ctx, s.buildPrompt(prompt, profile))
	if err != nil {
		return nil, s.settleProviderFailure(ctx, chat, userMsg, err)
	}

	// 4. 一次持久化写入用户消息与助手回复
	assistantMsg := model.NewAssistantMessage(reply, time.Now().UnixMilli())
	if err := s.chatRepo.AppendAndSave(ctx, chat, []model.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// 5. 结算额度（仅遥测，不影响结果）
	s.settleQuota(user, chat.ID, ModeText, s.quota.TextCost)
	return &assistantMsg, nil
}

// SendImage 执行一个图片回合：生成、转存到对象存储、持久化 URL 回复。
func (s *messageService) SendImage(ctx context.Context, user *model.User, chatID uint, prompt string, profile *model.AssistantProfile, publish bool) (*model.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrInvalidInput
	}

	chat, err := s.loadOwnedChat(ctx, chatID, user.ID)
	if err != nil {
		return nil, err
	}

	userMsg := model.NewUserMessage(prompt, time.Now().UnixMilli())

	imageBytes, err := s.imageClient.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, s.settleProviderFailure(ctx, chat, userMsg, err)
	}

	// 转存到对象存储以获得稳定的持久 URL
	objectName := fmt.Sprintf("axtro/axtro-%d.png", time.Now().UnixMilli())
	durableURL, err := s.imageStore.Upload(ctx, objectName, imageBytes)
	if err != nil {
		if perr := s.persistUserMessageOnly(chat, userMsg); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// 先持久化再响应：接受延迟代价，换取可复现的持久化契约
	assistantMsg := model.NewAssistantImage(durableURL, time.Now().UnixMilli(), publish)
	if err := s.chatRepo.AppendAndSave(ctx, chat, []model.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.settleQuota(user, chat.ID, ModeImage, s.quota.ImageCost)
	return &assistantMsg, nil
}

// loadOwnedChat 加载对话并把"未找到"折叠为 ErrChatNotFound。
func (s *messageService) loadOwnedChat(ctx context.Context, chatID, userID uint) (*model.Chat, error) {
	chat, err := s.chatRepo.FindOwnedChat(ctx, chatID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return chat, nil
}

// buildPrompt 把用户输入包裹进人设模板，并附加风格参数提示。
func (s *messageService) buildPrompt(prompt string, profile *model.AssistantProfile) string {
	var sb strings.Builder
	sb.WriteString(stylePrompt)
	if profile != nil {
		if profile.Language != "" {
			sb.WriteString(fmt.Sprintf("\nResponde en %s.", profile.Language))
		}
		if profile.Tone != "" {
			sb.WriteString(fmt.Sprintf("\nUsa un tono %s.", profile.Tone))
		}
		if profile.Verbosity != "" {
			sb.WriteString(fmt.Sprintf("\nNivel de detalle: %s.", profile.Verbosity))
		}
		if profile.Style != "" {
			sb.WriteString(fmt.Sprintf("\nEstilo de respuesta: %s.", profile.Style))
		}
	}
	sb.WriteString("\nPregunta del usuario:\n")
	sb.WriteString(prompt)
	return sb.String()
}

// settleProviderFailure 统一应用生成失败时的持久化策略：
//   - 调用方已取消：不持久化任何内容，由客户端回滚本地状态；
//   - 其他失败：仅持久化用户消息，客户端重新拉取后可以看到它。
func (s *messageService) settleProviderFailure(ctx context.Context, chat *model.Chat, userMsg model.Message, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := s.persistUserMessageOnly(chat, userMsg); err != nil {
		return err
	}

	if errors.Is(cause, genai.ErrNotConfigured) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, cause)
	}
	var uerr *url.Error
	if errors.As(cause, &uerr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, cause)
	}
	return fmt.Errorf("%w: %v", ErrProviderError, cause)
}

// persistUserMessageOnly 在生成失败后单独落盘用户消息。
// 使用后台上下文：即使原始请求随后被中断，也不丢失这次写入。
func (s *messageService) persistUserMessageOnly(chat *model.Chat, userMsg model.Message) error {
	if err := s.chatRepo.AppendAndSave(context.Background(), chat, []model.Message{userMsg}); err != nil {
		log.Errorf("生成失败后持久化用户消息失败: %v", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// settleQuota 扣减用户额度并发出遥测事件。两者都是尽力而为，
// 失败只记录日志，不影响回合结果。
func (s *messageService) settleQuota(user *model.User, chatID uint, mode string, cost int) {
	if err := s.userRepo.DecrementCredits(context.Background(), user.ID, cost); err != nil {
		log.Errorf("扣减用户额度失败: userID=%d, cost=%d, err=%v", user.ID, cost, err)
	}
	if s.publishUsage != nil {
		event := tasks.UsageEvent{
			UserID:     user.ID,
			ChatID:     chatID,
			Mode:       mode,
			Cost:       cost,
			OccurredAt: time.Now().UnixMilli(),
		}
		if err := s.publishUsage(event); err != nil {
			log.Errorf("发送额度遥测事件失败: %v", err)
		}
	}
}
