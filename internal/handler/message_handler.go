// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"net/http"

	"axtro-go/internal/model"
	"axtro-go/internal/service"
	"axtro-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MessageHandler 负责处理回合提交相关的 API 请求。
type MessageHandler struct {
	messageService service.MessageService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// TextMessageRequest 定义了文本回合 API 的请求体结构。
type TextMessageRequest struct {
	ChatID  uint                    `json:"chatId" binding:"required"`
	Prompt  string                  `json:"prompt"`
	Profile *model.AssistantProfile `json:"profile"`
}

// ImageMessageRequest 定义了图片回合 API 的请求体结构。
type ImageMessageRequest struct {
	ChatID      uint                    `json:"chatId" binding:"required"`
	Prompt      string                  `json:"prompt"`
	Profile     *model.AssistantProfile `json:"profile"`
	IsPublished bool                    `json:"isPublished"`
}

// SendText 处理文本回合提交。
// 请求上下文被透传到生成服务调用，客户端中断请求即中断生成。
func (h *MessageHandler) SendText(c *gin.Context) {
	user := currentUser(c)

	var req TextMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SendText: Invalid request payload, error: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "El prompt es requerido"})
		return
	}

	reply, err := h.messageService.SendText(c.Request.Context(), user, req.ChatID, req.Prompt, req.Profile)
	if err != nil {
		h.respondTurnError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reply": reply})
}

// SendImage 处理图片回合提交。
func (h *MessageHandler) SendImage(c *gin.Context) {
	user := currentUser(c)

	var req ImageMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SendImage: Invalid request payload, error: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "El prompt es requerido"})
		return
	}

	reply, err := h.messageService.SendImage(c.Request.Context(), user, req.ChatID, req.Prompt, req.Profile, req.IsPublished)
	if err != nil {
		h.respondTurnError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reply": reply})
}

// respondTurnError 把回合错误分类映射到面向用户的响应。
// 业务失败统一返回 200 + success=false，与既有客户端的解析方式保持一致。
func (h *MessageHandler) respondTurnError(c *gin.Context, err error) {
	// 客户端已中断请求：响应无人接收，只记录日志
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Infof("回合被客户端中断: %v", err)
		c.Abort()
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "El prompt es requerido"})
	case errors.Is(err, service.ErrChatNotFound):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Chat no encontrado"})
	default:
		// ProviderUnavailable / ProviderError / Storage 对用户统一为一条通用失败信息，
		// 客户端收到后会触发重新拉取以与服务端状态收敛
		log.Errorf("回合执行失败: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No se pudo generar la respuesta."})
	}
}

// currentUser 从上下文中取出由 AuthMiddleware 注入的 User 对象。
func currentUser(c *gin.Context) *model.User {
	return c.MustGet("user").(*model.User)
}
