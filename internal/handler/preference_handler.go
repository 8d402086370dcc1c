package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"axtro-go/internal/repository"
	"axtro-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// PreferenceHandler 负责按用户维度存取客户端设置数据块。
// 数据块内容对服务端不透明，按命名空间隔离。
type PreferenceHandler struct {
	prefRepo repository.PreferenceRepository
}

// NewPreferenceHandler 创建一个新的 PreferenceHandler 实例。
func NewPreferenceHandler(prefRepo repository.PreferenceRepository) *PreferenceHandler {
	return &PreferenceHandler{prefRepo: prefRepo}
}

// Load 读取指定命名空间下的设置数据块。
func (h *PreferenceHandler) Load(c *gin.Context) {
	user := currentUser(c)
	namespace := c.Param("namespace")

	blob, err := h.prefRepo.Load(c.Request.Context(), user.ID, namespace)
	if err != nil {
		log.Errorf("读取用户设置失败: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No se pudieron cargar las preferencias."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "preferences": json.RawMessage(blob)})
}

// Save 覆盖写入指定命名空间下的设置数据块。
// 请求体必须是合法 JSON，但其内部结构不做校验。
func (h *PreferenceHandler) Save(c *gin.Context) {
	user := currentUser(c)
	namespace := c.Param("namespace")

	blob, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(blob) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Preferencias inválidas"})
		return
	}

	if err := h.prefRepo.Save(c.Request.Context(), user.ID, namespace, blob); err != nil {
		log.Errorf("保存用户设置失败: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No se pudieron guardar las preferencias."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
