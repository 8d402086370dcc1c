// Package notify 实现了回合完成后的被动通知决策与展示管理。
package notify

import (
	"sync"
	"time"
)

// DefaultTTL 是通知自动消失前的默认展示时长。
const DefaultTTL = 5 * time.Second

// Notification 是一条被动通知，携带足以跳回对应对话的标识。
type Notification struct {
	ChatID  uint
	Title   string
	Message string
}

// ShouldNotify 是纯决策函数：仅当偏好开启，且（正在查看的对话不是
// 回合所属的对话，或用户注意力不在应用上）时才弹出通知。
func ShouldNotify(prefEnabled bool, viewedChatID uint, attentive bool, turnChatID uint) bool {
	if !prefEnabled {
		return false
	}
	return viewedChatID != turnChatID || !attentive
}

// Relay 管理通知的展示：同一时刻至多一条，新通知直接替换旧通知，
// 到期自动消失。
type Relay struct {
	mu         sync.Mutex
	current    *Notification
	timer      *time.Timer
	ttl        time.Duration
	onActivate func(chatID uint)
}

// NewRelay 创建一个新的 Relay。onActivate 在用户点击通知时被调用，
// 负责选中对应对话并跳转到对话视图。
func NewRelay(ttl time.Duration, onActivate func(chatID uint)) *Relay {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Relay{ttl: ttl, onActivate: onActivate}
}

// Publish 展示一条通知，替换掉当前正在展示的那条（没有队列）。
func (r *Relay) Publish(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	notif := n
	r.current = &notif
	r.timer = time.AfterFunc(r.ttl, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.current == &notif {
			r.current = nil
		}
	})
}

// Current 返回当前正在展示的通知；没有时返回 nil。
func (r *Relay) Current() *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	n := *r.current
	return &n
}

// Activate 响应用户点击：跳转到通知所属的对话并关闭通知。
func (r *Relay) Activate() {
	r.mu.Lock()
	current := r.current
	r.current = nil
	if r.timer != nil {
		r.timer.Stop()
	}
	onActivate := r.onActivate
	r.mu.Unlock()

	// 回调在锁外执行
	if current != nil && onActivate != nil {
		onActivate(current.ChatID)
	}
}

// Dismiss 手动关闭当前通知。
func (r *Relay) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	if r.timer != nil {
		r.timer.Stop()
	}
}
