// Package session 实现了客户端的回合生命周期管理：乐观追加本地状态、
// 取消回滚、失败后与服务端收敛，以及每个对话槽位的状态机。
//
// 每个对话槽位的状态机：
//
//	IDLE --submit--> SENDING --success--> IDLE
//	SENDING --cancel--> CANCELLING --ack--> IDLE (+回滚)
//	SENDING --providerError--> IDLE (+错误提示，不回滚)
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"axtro-go/internal/model"
	"axtro-go/pkg/apiclient"
)

// Mode 是回合的生成模式，封闭的二值标签。
type Mode int

const (
	ModeText Mode = iota
	ModeImage
)

// API 抽象了会话依赖的服务端接口，便于测试替换。
type API interface {
	GetChats(ctx context.Context) ([]model.Chat, error)
	SendTextMessage(ctx context.Context, chatID uint, prompt string, profile *model.AssistantProfile) (*model.Message, error)
	SendImageMessage(ctx context.Context, chatID uint, prompt string, profile *model.AssistantProfile, publish bool) (*model.Message, error)
}

// NoticeKind 区分提示条的种类。
type NoticeKind int

const (
	NoticeCancelled NoticeKind = iota
	NoticeError
)

// Notice 是展示给用户的瞬态提示。
type Notice struct {
	Kind NoticeKind
	Text string
}

// 提示文案。取消提示在约 3.5 秒展示加 0.5 秒淡出后自动清除。
const (
	cancelledNoticeText  = "Envío cancelado."
	sendFailedNoticeText = "No se pudo enviar el mensaje."
	connFailedNoticeText = "Error al conectar con el servidor."
	cancelledNoticeTTL   = 3500*time.Millisecond + 500*time.Millisecond
)

// Config 配置一个 Session。
type Config struct {
	// Profile 随每个回合透传给服务端。
	Profile *model.AssistantProfile
	// OnNotice 在提示条变化时被调用（包括清除，此时参数为 nil）。
	OnNotice func(*Notice)
	// OnReply 在某个对话收到助手回复后被调用。
	OnReply func(chatID uint, reply model.Message)
	// OnTurnCompleted 在回合完成后被调用，供通知层决策是否弹出被动提醒。
	OnTurnCompleted func(chatID uint)
}

// slot 跟踪一个对话槽位上的在途回合。
type slot struct {
	cancel    context.CancelFunc
	userTs    int64 // 乐观追加的用户消息的时间戳标识
	cancelled bool
}

// Session 管理一个用户会话的本地对话状态与在途回合。
// 同一对话同一时刻至多一个在途回合；不同对话的回合可以并发。
type Session struct {
	mu         sync.Mutex
	api        API
	cfg        Config
	chats      []model.Chat
	selectedID uint
	slots      map[uint]*slot
	notice     *Notice
	noticeTmr  *time.Timer
	closed     bool
}

// New 创建一个新的 Session。
func New(api API, cfg Config) *Session {
	return &Session{
		api:   api,
		cfg:   cfg,
		slots: make(map[uint]*slot),
	}
}

// Chats 返回本地缓存的对话列表副本。
func (s *Session) Chats() []model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// Selected 返回当前选中对话的副本；未选中时返回 nil。
func (s *Session) Selected() *model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findChatLocked(s.selectedID)
}

// Select 选中一个对话。对话不在本地缓存中时不生效。
func (s *Session) Select(chatID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findChatLocked(chatID) == nil {
		return false
	}
	s.selectedID = chatID
	return true
}

// Sending 报告指定对话是否有在途回合。
func (s *Session) Sending(chatID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[chatID]
	return ok
}

// Notice 返回当前提示条；没有时返回 nil。
func (s *Session) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

// RefreshChats 从服务端重新拉取对话列表并整体替换本地缓存。
// 选中项仍存在时保持选中，否则回落到列表首项。
func (s *Session) RefreshChats(ctx context.Context) error {
	chats, err := s.api.GetChats(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = chats
	if len(chats) == 0 {
		s.selectedID = 0
		return nil
	}
	if s.findChatLocked(s.selectedID) == nil {
		s.selectedID = chats[0].ID
	}
	return nil
}

// Submit 提交一个回合。以下情况拒绝并返回 false（不产生任何副作用）：
// 未选中对话、内容去除空白后为空、该对话已有在途回合。
func (s *Session) Submit(content string, mode Mode, publish bool) bool {
	content = strings.TrimSpace(content)

	s.mu.Lock()
	if s.closed || s.selectedID == 0 || content == "" {
		s.mu.Unlock()
		return false
	}
	chatID := s.selectedID
	if _, inflight := s.slots[chatID]; inflight {
		s.mu.Unlock()
		return false
	}

	// 乐观追加用户消息到本地状态
	userMsg := model.NewUserMessage(content, time.Now().UnixMilli())
	s.appendLocked(chatID, userMsg)

	// 错误提示在新一次提交时清除；取消提示有独立的自动清除计时
	if s.notice != nil && s.notice.Kind == NoticeError {
		s.clearNoticeLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sl := &slot{cancel: cancel, userTs: userMsg.Timestamp}
	s.slots[chatID] = sl
	profile := s.cfg.Profile
	s.mu.Unlock()

	go s.run(ctx, chatID, content, mode, publish, profile, sl)
	return true
}

// run 执行一次回合调用并结算结果。模式在此处一次性分派到两条静态路径。
func (s *Session) run(ctx context.Context, chatID uint, content string, mode Mode, publish bool, profile *model.AssistantProfile, sl *slot) {
	var reply *model.Message
	var err error
	switch mode {
	case ModeImage:
		reply, err = s.api.SendImageMessage(ctx, chatID, content, profile, publish)
	default:
		reply, err = s.api.SendTextMessage(ctx, chatID, content, profile)
	}
	s.settle(chatID, sl, reply, err)
}

// settle 把一次调用的结果落回会话状态。
// 槽位身份校验保证取消被确认后，同一回合的晚到结算会被忽略。
func (s *Session) settle(chatID uint, sl *slot, reply *model.Message, err error) {
	s.mu.Lock()

	cur, ok := s.slots[chatID]
	if !ok || cur != sl || sl.cancelled {
		// 槽位已被释放：取消已确认或会话已关闭，晚到的结算不再改变状态
		s.mu.Unlock()
		return
	}
	delete(s.slots, chatID)
	sl.cancel()

	closed := s.closed

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		// 取消确认：按时间戳身份精确撤回乐观追加的那条用户消息
		sl.cancelled = true
		s.removeMessageLocked(chatID, sl.userTs)
		if !closed {
			s.setNoticeLocked(&Notice{Kind: NoticeCancelled, Text: cancelledNoticeText}, cancelledNoticeTTL)
		}
		s.mu.Unlock()

	case err != nil:
		// 非取消失败：不回滚乐观消息（服务端可能已持久化），
		// 提示错误并触发重新拉取以收敛到服务端状态
		var apiErr *apiclient.APIError
		text := connFailedNoticeText
		if errors.As(err, &apiErr) {
			text = sendFailedNoticeText
			if apiErr.Message != "" {
				text = apiErr.Message
			}
		}
		if !closed {
			s.setNoticeLocked(&Notice{Kind: NoticeError, Text: text}, 0)
		}
		s.mu.Unlock()
		if !closed {
			_ = s.RefreshChats(context.Background())
		}

	default:
		// 成功：把回复追加到本地状态（对话可能已被删除，追加前校验）
		if reply != nil {
			s.appendLocked(chatID, *reply)
		}
		onReply := s.cfg.OnReply
		onCompleted := s.cfg.OnTurnCompleted
		s.mu.Unlock()
		if closed {
			return
		}
		if onReply != nil && reply != nil {
			onReply(chatID, *reply)
		}
		if onCompleted != nil {
			onCompleted(chatID)
		}
	}
}

// Cancel 取消指定对话上的在途回合。没有在途回合时为空操作。
// 回滚发生在取消被确认（调用以 context.Canceled 结算）时。
func (s *Session) Cancel(chatID uint) {
	s.mu.Lock()
	sl, ok := s.slots[chatID]
	s.mu.Unlock()
	if ok {
		sl.cancel()
	}
}

// Close 释放会话：取消所有在途回合，之后的结算不再改变状态。
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	if s.noticeTmr != nil {
		s.noticeTmr.Stop()
	}
	s.mu.Unlock()

	for _, sl := range slots {
		sl.cancel()
	}
}

// findChatLocked 在本地缓存中查找对话。调用方必须持有锁。
func (s *Session) findChatLocked(chatID uint) *model.Chat {
	if chatID == 0 {
		return nil
	}
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			return &s.chats[i]
		}
	}
	return nil
}

// appendLocked 把消息追加到缓存中的对话并推进其更新时间。
// 对话已不在缓存中时（例如同时被删除）静默跳过。
func (s *Session) appendLocked(chatID uint, msgs ...model.Message) {
	chat := s.findChatLocked(chatID)
	if chat == nil {
		return
	}
	chat.Messages = append(chat.Messages, msgs...)
	chat.UpdatedAt = time.Now()
}

// removeMessageLocked 按时间戳身份撤回一条用户消息。
// 匹配身份而非内容：内容完全相同的消息是合法的。
func (s *Session) removeMessageLocked(chatID uint, userTs int64) {
	chat := s.findChatLocked(chatID)
	if chat == nil {
		return
	}
	for i := len(chat.Messages) - 1; i >= 0; i-- {
		m := chat.Messages[i]
		if m.Role == model.RoleUser && m.Timestamp == userTs {
			chat.Messages = append(chat.Messages[:i], chat.Messages[i+1:]...)
			return
		}
	}
}

// setNoticeLocked 设置提示条并安排自动清除。ttl 为 0 表示不自动清除。
// 调用方必须持有锁；OnNotice 回调被安排在锁外执行。
func (s *Session) setNoticeLocked(n *Notice, ttl time.Duration) {
	if s.noticeTmr != nil {
		s.noticeTmr.Stop()
		s.noticeTmr = nil
	}
	s.notice = n
	if ttl > 0 {
		s.noticeTmr = time.AfterFunc(ttl, func() {
			s.mu.Lock()
			cleared := false
			if s.notice == n {
				s.notice = nil
				cleared = true
			}
			cb := s.cfg.OnNotice
			s.mu.Unlock()
			if cleared && cb != nil {
				cb(nil)
			}
		})
	}
	if cb := s.cfg.OnNotice; cb != nil {
		notice := *n
		go cb(&notice)
	}
}

// clearNoticeLocked 清除当前提示条。调用方必须持有锁。
func (s *Session) clearNoticeLocked() {
	if s.noticeTmr != nil {
		s.noticeTmr.Stop()
		s.noticeTmr = nil
	}
	s.notice = nil
}
