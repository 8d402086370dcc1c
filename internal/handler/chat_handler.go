package handler

import (
	"errors"
	"net/http"

	"axtro-go/internal/service"
	"axtro-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理对话管理相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Create 创建一个新的空对话。
func (h *ChatHandler) Create(c *gin.Context) {
	user := currentUser(c)

	chat, err := h.chatService.CreateChat(c.Request.Context(), user)
	if err != nil {
		log.Errorf("创建对话失败: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No se pudo crear el chat."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chat": chat})
}

// List 返回当前用户的全部对话，按更新时间倒序。
func (h *ChatHandler) List(c *gin.Context) {
	user := currentUser(c)

	chats, err := h.chatService.GetChats(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("获取对话列表失败: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No se pudieron obtener los chats."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chats": chats})
}

// DeleteChatRequest 定义了删除对话 API 的请求体结构。
type DeleteChatRequest struct {
	ChatID uint `json:"chatId" binding:"required"`
}

// Delete 删除一条归属于当前用户的对话。
func (h *ChatHandler) Delete(c *gin.Context) {
	user := currentUser(c)

	var req DeleteChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Chat no encontrado"})
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), user.ID, req.ChatID); err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Chat no encontrado"})
			return
		}
		log.Errorf("删除对话失败: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No se pudo eliminar el chat."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chat eliminado"})
}
