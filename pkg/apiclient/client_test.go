package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"axtro-go/internal/model"
	"axtro-go/pkg/apiclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresToken(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ana", body["username"])
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "token": "tok-123",
			})
		case "/api/v1/chat/get":
			authHeader = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "chats": []model.Chat{{ID: 1, Name: "Nuevo chat"}},
			})
		default:
			t.Fatalf("ruta inesperada: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL)
	require.NoError(t, c.Login(context.Background(), "ana", "secreto"))

	chats, err := c.GetChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Nuevo chat", chats[0].Name)
	assert.Equal(t, "Bearer tok-123", authHeader)
}

func TestBusinessFailureIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 信封协议：业务失败也返回 200，由 success 标记区分
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false, "message": "Chat no encontrado",
		})
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL)
	_, err := c.SendTextMessage(context.Background(), 99, "Hola", nil)

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Chat no encontrado", apiErr.Message)
}

func TestCancellationIsNotAPIError(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 先读完请求体，服务器才会在后台监听连接断开并取消 r.Context()
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.SendTextMessage(ctx, 1, "Hola", nil)
	require.Error(t, err)

	// 取消以原始传输错误返回，调用方用 errors.Is 识别
	assert.True(t, errors.Is(err, context.Canceled))
	var apiErr *apiclient.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestSendTextMessageRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/message/text", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["chatId"])
		assert.Equal(t, "Hola", body["prompt"])
		profile, ok := body["profile"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "formal", profile["tone"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"reply": model.Message{
				Role:      model.RoleAssistant,
				Content:   "¡Hola!",
				Timestamp: time.Now().UnixMilli(),
			},
		})
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL)
	reply, err := c.SendTextMessage(context.Background(), 3, "Hola", &model.AssistantProfile{Tone: "formal"})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "¡Hola!", reply.Content)
}

func TestPreferencesRoundTrip(t *testing.T) {
	var saved json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/users/preferences/ui", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "preferences": saved,
			})
		}
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL)
	blob := json.RawMessage(`{"alerts":true,"theme":"oscuro"}`)
	require.NoError(t, c.SavePreferences(context.Background(), "ui", blob))

	got, err := c.LoadPreferences(context.Background(), "ui")
	require.NoError(t, err)
	assert.JSONEq(t, string(blob), string(got))
}
