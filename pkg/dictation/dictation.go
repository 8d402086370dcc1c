// Package dictation 把语音转写网关封装为一个简单的两态采集器，
// 为输入框提供语音输入。
package dictation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// State 是采集器的状态，idle 与 listening 之间切换。
type State int

const (
	StateIdle State = iota
	StateListening
)

// ErrUnavailable 表示语音转写能力不可用（未配置网关或连接失败）。
var ErrUnavailable = errors.New("el dictado no está disponible")

// transcriptFrame 是网关下发的转写分片。
type transcriptFrame struct {
	Transcript string `json:"transcript"`
}

// Adapter 通过 WebSocket 连接语音转写网关采集一段语音输入。
// 每次监听会话只交付一条合并后的完整话语，而不是增量交付。
type Adapter struct {
	mu         sync.Mutex
	gatewayURL string
	dialer     *websocket.Dialer
	state      State
	conn       *websocket.Conn
	parts      []string
	sessionID  int // 区分监听会话，丢弃旧会话读协程的晚到结果

	// OnUtterance 在一段话语采集完成后被调用。
	// 调用方负责把话语以空格连接的方式追加到已有输入缓冲，而不是替换。
	onUtterance func(string)
	// onError 在采集过程中发生传输错误时被调用（可选）。
	onError func(error)
}

// NewAdapter 创建一个新的 Adapter。gatewayURL 为空表示能力不可用。
func NewAdapter(gatewayURL string, onUtterance func(string), onError func(error)) *Adapter {
	return &Adapter{
		gatewayURL:  gatewayURL,
		dialer:      websocket.DefaultDialer,
		onUtterance: onUtterance,
		onError:     onError,
	}
}

// State 返回采集器当前状态。
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Toggle 在 idle 与 listening 之间切换。
// idle 且能力不可用时返回本地错误，状态不变；
// listening 时结束采集并交付合并后的话语。
func (a *Adapter) Toggle(ctx context.Context) error {
	a.mu.Lock()

	if a.state == StateListening {
		a.stopLocked(true)
		a.mu.Unlock()
		return nil
	}

	if a.gatewayURL == "" {
		a.mu.Unlock()
		return ErrUnavailable
	}

	conn, _, err := a.dialer.DialContext(ctx, a.gatewayURL, nil)
	if err != nil {
		a.mu.Unlock()
		return ErrUnavailable
	}

	a.conn = conn
	a.state = StateListening
	a.parts = nil
	a.sessionID++
	session := a.sessionID
	a.mu.Unlock()

	go a.readLoop(conn, session)
	return nil
}

// Stop 结束当前采集（如果有）并交付合并后的话语。
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateListening {
		a.stopLocked(true)
	}
}

// Close 释放采集器：停止采集，但不交付未完成的话语。
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateListening {
		a.stopLocked(false)
	}
}

// stopLocked 关闭连接并回到 idle。deliver 控制是否交付已累积的转写。
// 调用方必须持有锁；交付回调被安排在锁外执行。
func (a *Adapter) stopLocked(deliver bool) {
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	a.state = StateIdle
	a.sessionID++ // 使读协程的后续结果失效

	utterance := strings.TrimSpace(strings.Join(a.parts, " "))
	a.parts = nil
	if deliver && utterance != "" && a.onUtterance != nil {
		go a.onUtterance(utterance)
	}
}

// readLoop 读取网关下发的转写分片并累积。
// 任何传输错误都会把采集器强制回到 idle 并上报本地错误。
func (a *Adapter) readLoop(conn *websocket.Conn, session int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.mu.Lock()
			if a.sessionID != session {
				// 本会话已被主动结束，读错误是关闭连接的结果
				a.mu.Unlock()
				return
			}
			a.stopLocked(false)
			onError := a.onError
			a.mu.Unlock()
			if onError != nil {
				onError(err)
			}
			return
		}

		var frame transcriptFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Transcript == "" {
			continue
		}

		a.mu.Lock()
		if a.sessionID != session {
			a.mu.Unlock()
			return
		}
		a.parts = append(a.parts, frame.Transcript)
		a.mu.Unlock()
	}
}
