// Package tasks 定义了通过消息队列传递的事件结构。
package tasks

// UsageEvent 代表一次对话回合产生的额度消耗遥测事件。
// 事件是尽力而为的：发送失败只记录日志，不影响回合结果。
type UsageEvent struct {
	UserID     uint   `json:"userId"`
	ChatID     uint   `json:"chatId"`
	Mode       string `json:"mode"` // "texto" 或 "imagen"
	Cost       int    `json:"cost"`
	OccurredAt int64  `json:"occurredAt"` // 毫秒时间戳
}
