package dictation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"axtro-go/pkg/dictation"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGateway 启动一个假的转写网关：连接建立后依次下发 frames。
func newGateway(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// 保持连接直到客户端关闭
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestToggleUnavailableWithoutGateway(t *testing.T) {
	a := dictation.NewAdapter("", nil, nil)

	err := a.Toggle(context.Background())
	assert.ErrorIs(t, err, dictation.ErrUnavailable)
	assert.Equal(t, dictation.StateIdle, a.State())
}

func TestToggleUnavailableOnDialFailure(t *testing.T) {
	a := dictation.NewAdapter("ws://127.0.0.1:1/ws", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := a.Toggle(ctx)
	assert.ErrorIs(t, err, dictation.ErrUnavailable)
	assert.Equal(t, dictation.StateIdle, a.State())
}

func TestDeliversSingleConsolidatedUtterance(t *testing.T) {
	srv := newGateway(t, []string{
		`{"transcript": "hola"}`,
		`{"transcript": "qué tal"}`,
		`not-json`,
		`{"transcript": ""}`,
		`{"transcript": "todo bien"}`,
	})

	utterances := make(chan string, 1)
	a := dictation.NewAdapter(wsURL(srv), func(u string) { utterances <- u }, nil)
	defer a.Close()

	require.NoError(t, a.Toggle(context.Background()))
	assert.Equal(t, dictation.StateListening, a.State())

	// 等待分片到达后结束采集
	time.Sleep(200 * time.Millisecond)
	a.Stop()
	assert.Equal(t, dictation.StateIdle, a.State())

	select {
	case u := <-utterances:
		// 分片以空格连接为一条完整话语，坏帧与空帧被跳过
		assert.Equal(t, "hola qué tal todo bien", u)
	case <-time.After(2 * time.Second):
		t.Fatal("等待话语交付超时")
	}
}

func TestStopWithoutTranscriptDeliversNothing(t *testing.T) {
	srv := newGateway(t, nil)

	utterances := make(chan string, 1)
	a := dictation.NewAdapter(wsURL(srv), func(u string) { utterances <- u }, nil)
	defer a.Close()

	require.NoError(t, a.Toggle(context.Background()))
	a.Stop()

	select {
	case u := <-utterances:
		t.Fatalf("不应交付空话语: %q", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTransportErrorForcesIdle(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// 网关立即断开连接
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	errs := make(chan error, 1)
	a := dictation.NewAdapter(wsURL(srv), nil, func(err error) { errs <- err })
	defer a.Close()

	require.NoError(t, a.Toggle(context.Background()))

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("等待传输错误上报超时")
	}
	assert.Equal(t, dictation.StateIdle, a.State())
}

func TestCloseDoesNotDeliver(t *testing.T) {
	srv := newGateway(t, []string{`{"transcript": "hola"}`})

	utterances := make(chan string, 1)
	a := dictation.NewAdapter(wsURL(srv), func(u string) { utterances <- u }, nil)

	require.NoError(t, a.Toggle(context.Background()))
	time.Sleep(100 * time.Millisecond)
	a.Close()

	select {
	case u := <-utterances:
		t.Fatalf("Close 不应交付话语: %q", u)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, dictation.StateIdle, a.State())
}
