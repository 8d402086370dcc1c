package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"axtro-go/internal/model"
	"axtro-go/internal/service"
	"axtro-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// fakeMessageService 返回预置的回复或错误。
type fakeMessageService struct {
	reply *model.Message
	err   error
}

func (f *fakeMessageService) SendText(_ context.Context, _ *model.User, _ uint, _ string, _ *model.AssistantProfile) (*model.Message, error) {
	return f.reply, f.err
}

func (f *fakeMessageService) SendImage(_ context.Context, _ *model.User, _ uint, _ string, _ *model.AssistantProfile, _ bool) (*model.Message, error) {
	return f.reply, f.err
}

func newMessageRouter(svc service.MessageService) *gin.Engine {
	r := gin.New()
	h := NewMessageHandler(svc)
	r.POST("/api/v1/message/text", func(c *gin.Context) {
		c.Set("user", &model.User{ID: 7, Username: "ana"})
		h.SendText(c)
	})
	return r
}

func postText(t *testing.T, r *gin.Engine, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/message/text", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestSendTextSuccess(t *testing.T) {
	reply := model.NewAssistantMessage("¡Hola!", 100)
	r := newMessageRouter(&fakeMessageService{reply: &reply})

	code, resp := postText(t, r, `{"chatId": 3, "prompt": "Hola"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["success"])

	got, ok := resp["reply"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "¡Hola!", got["content"])
	assert.Equal(t, model.RoleAssistant, got["role"])
}

// 业务失败统一为 200 + success=false 的信封，message 为面向用户的文案。
func TestSendTextErrorEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"prompt 为空", service.ErrInvalidInput, "El prompt es requerido"},
		{"对话不存在", service.ErrChatNotFound, "Chat no encontrado"},
		{"生成服务不可用", service.ErrProviderUnavailable, "No se pudo generar la respuesta."},
		{"生成服务返回错误", service.ErrProviderError, "No se pudo generar la respuesta."},
		{"持久化失败", service.ErrStorage, "No se pudo generar la respuesta."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMessageRouter(&fakeMessageService{err: tt.err})
			code, resp := postText(t, r, `{"chatId": 3, "prompt": "Hola"}`)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.message, resp["message"])
		})
	}
}

func TestSendTextMissingChatID(t *testing.T) {
	r := newMessageRouter(&fakeMessageService{})

	code, resp := postText(t, r, `{"prompt": "Hola"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "El prompt es requerido", resp["message"])
}

func TestSendTextClientCancelled(t *testing.T) {
	r := newMessageRouter(&fakeMessageService{err: context.Canceled})

	// 客户端已中断请求：不写响应体
	req := httptest.NewRequest("POST", "/api/v1/message/text", bytes.NewBufferString(`{"chatId": 3, "prompt": "Hola"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Zero(t, w.Body.Len())
}
