// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 回合执行的错误分类。所有结果都以带标签的错误返回，
// 不允许未分类的异常穿越 API 边界。
var (
	// ErrInvalidInput 表示提交的 prompt 为空或仅含空白。
	ErrInvalidInput = errors.New("提交内容为空")
	// ErrChatNotFound 表示对话不存在或不归属于当前用户。
	// 两种情况刻意不做区分，避免泄露他人对话的存在性。
	ErrChatNotFound = errors.New("对话不存在")
	// ErrProviderUnavailable 表示生成服务不可达或未配置。
	ErrProviderUnavailable = errors.New("生成服务不可用")
	// ErrProviderError 表示生成服务可达但返回了错误或不可用的内容。
	ErrProviderError = errors.New("生成服务返回错误")
	// ErrStorage 表示持久化操作失败。
	ErrStorage = errors.New("持久化失败")
)
