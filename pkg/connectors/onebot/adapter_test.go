package onebot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateway is an in-process OneBot server. handle runs once per accepted
// connection; the connection closes when it returns.
type gateway struct {
	srv         *httptest.Server
	connections atomic.Int32

	mu     sync.Mutex
	tokens []string
}

func newGateway(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) *gateway {
	t.Helper()

	g := &gateway{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.tokens = append(g.tokens, r.URL.Query().Get("access_token"))
		g.mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		g.connections.Add(1)
		handle(r.Context(), conn)
	}))
	t.Cleanup(g.srv.Close)

	return g
}

func (g *gateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

// drain reads until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// echoBack answers every request with an ok response for its echo.
func echoBack(ctx context.Context, conn *websocket.Conn) {
	for {
		var req models.APIRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		_ = wsjson.Write(ctx, conn, map[string]any{
			"echo":    req.Echo,
			"retcode": 0,
			"status":  "ok",
			"data":    map[string]any{"action": req.Action},
		})
	}
}

func connect(t *testing.T, opts protocol.AdapterOptions) *Adapter {
	t.Helper()

	a := New("bot-test", opts, slog.Default())
	require.NoError(t, a.Connect(t.Context()))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	return a
}

func TestConnect_MissingURL(t *testing.T) {
	a := New("bot-test", protocol.AdapterOptions{}, slog.Default())

	require.ErrorIs(t, a.Connect(t.Context()), ErrConnection)
	assert.False(t, a.Connected())
}

func TestConnect_DialFailure(t *testing.T) {
	no := false
	a := New("bot-test", protocol.AdapterOptions{URL: "ws://127.0.0.1:1", Reconnect: &no}, slog.Default())

	require.ErrorIs(t, a.Connect(t.Context()), ErrConnection)
	assert.Equal(t, StateDisconnected, a.State())
}

func TestConnect_AppendsTokenAndIsIdempotent(t *testing.T) {
	g := newGateway(t, drain)

	var events atomic.Int32

	a := New("bot-test", protocol.AdapterOptions{URL: g.url() + "/?x=1", Token: "s3cret"}, slog.Default())
	a.OnConnected(func(e protocol.ConnectionEvent) {
		assert.Equal(t, "bot-test", e.ID)
		events.Add(1)
	})
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	require.NoError(t, a.Connect(t.Context()))
	require.NoError(t, a.Connect(t.Context()))

	assert.True(t, a.Connected())
	assert.Equal(t, int32(1), events.Load())
	assert.Equal(t, int32(1), g.connections.Load())
	assert.Equal(t, "?x=1&access_token=s3cret", strings.TrimPrefix(a.endpoint(), g.url()+"/"))

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, []string{"s3cret"}, g.tokens)
}

func TestSend_NotConnected(t *testing.T) {
	a := New("bot-test", protocol.AdapterOptions{URL: "ws://localhost"}, slog.Default())

	require.ErrorIs(t, a.Send(t.Context(), &models.APIRequest{Action: "send_msg"}), ErrNotConnected)

	_, err := a.Call(t.Context(), &models.APIRequest{Action: "send_msg"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSend_WritesRequest(t *testing.T) {
	received := make(chan models.APIRequest, 1)

	g := newGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		var req models.APIRequest
		if err := wsjson.Read(ctx, conn, &req); err == nil {
			received <- req
		}

		drain(ctx, conn)
	})

	a := connect(t, protocol.AdapterOptions{URL: g.url()})

	require.NoError(t, a.Send(t.Context(), &models.APIRequest{
		Action: "send_msg",
		Params: models.APIParams{GroupID: models.Int64(42), Message: []models.Segment{models.TextSegment("hi")}},
	}))

	select {
	case req := <-received:
		assert.Equal(t, "send_msg", req.Action)
		assert.Equal(t, int64(42), *req.Params.GroupID)
		assert.Empty(t, req.Echo)
	case <-time.After(2 * time.Second):
		t.Fatal("request not received")
	}
}

func TestSend_RateLimited(t *testing.T) {
	g := newGateway(t, drain)

	a := connect(t, protocol.AdapterOptions{URL: g.url(), RateLimit: 1})

	require.NoError(t, a.Send(t.Context(), &models.APIRequest{Action: "send_msg"}))

	// the burst of one is spent; the next token is a second away
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	require.Error(t, a.Send(ctx, &models.APIRequest{Action: "send_msg"}))

	_, err := a.Call(ctx, &models.APIRequest{Action: "get_status"})
	require.Error(t, err)
}

func TestCall_CorrelatesByEcho(t *testing.T) {
	g := newGateway(t, echoBack)
	a := connect(t, protocol.AdapterOptions{URL: g.url()})

	var wg sync.WaitGroup

	for _, action := range []string{"get_status", "get_login_info", "get_group_list"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			resp, err := a.Call(t.Context(), &models.APIRequest{Action: action})
			if !assert.NoError(t, err) {
				return
			}

			assert.True(t, resp.OK())
			assert.Equal(t, map[string]any{"action": action}, resp.Data)
		}()
	}

	wg.Wait()
	assert.Zero(t, a.pendingCalls())
}

func TestCall_KeepsCallerEcho(t *testing.T) {
	g := newGateway(t, echoBack)
	a := connect(t, protocol.AdapterOptions{URL: g.url()})

	req := &models.APIRequest{Action: "get_status", Echo: "mine-1"}

	resp, err := a.Call(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "mine-1", resp.Echo)
}

func TestCall_TimeoutAndLateEcho(t *testing.T) {
	requests := make(chan models.APIRequest, 1)
	late := make(chan struct{})

	g := newGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		var req models.APIRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		requests <- req

		<-late
		_ = wsjson.Write(ctx, conn, map[string]any{"echo": req.Echo, "retcode": 0, "status": "ok"})

		drain(ctx, conn)
	})

	a := connect(t, protocol.AdapterOptions{URL: g.url(), SyncTimeout: 50 * time.Millisecond})

	var forwarded atomic.Int32
	a.OnMessage(func(*models.ChatMessage) { forwarded.Add(1) })

	_, err := a.Call(t.Context(), &models.APIRequest{Action: "slow"})
	require.ErrorIs(t, err, ErrCallTimeout)
	assert.Zero(t, a.pendingCalls())

	req := <-requests
	assert.Regexp(t, `^[0-9a-z]+-[0-9a-z]{6}$`, req.Echo)

	close(late)

	// The late reply must neither resurrect the call nor reach observers.
	resp, err := a.Call(t.Context(), &models.APIRequest{Action: "after"})
	require.ErrorIs(t, err, ErrCallTimeout)
	assert.Nil(t, resp)
	assert.Zero(t, forwarded.Load())
	assert.True(t, a.Connected())
}

func TestDisconnect_RejectsPendingCalls(t *testing.T) {
	g := newGateway(t, drain)
	a := connect(t, protocol.AdapterOptions{URL: g.url(), SyncTimeout: 10 * time.Second})

	var disconnected atomic.Int32
	a.OnDisconnected(func(protocol.ConnectionEvent) { disconnected.Add(1) })

	errs := make(chan error, 1)

	go func() {
		_, err := a.Call(context.Background(), &models.APIRequest{Action: "never"})
		errs <- err
	}()

	require.Eventually(t, func() bool { return a.pendingCalls() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, a.Disconnect(t.Context()))

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not rejected")
	}

	assert.False(t, a.Connected())
	assert.Equal(t, int32(1), disconnected.Load())

	// A second disconnect has nothing to close.
	require.NoError(t, a.Disconnect(t.Context()))
	assert.Equal(t, int32(1), disconnected.Load())
}

func TestInbound_MessageEvents(t *testing.T) {
	frames := []string{
		`{"post_type":"meta_event","meta_event_type":"heartbeat","time":1700000000,"self_id":10}`,
		`{"post_type":"message","message_type":"group","message_id":123,"real_seq":"77","self_id":"10",` +
			`"group_id":20,"group_name":"dev","user_id":30,"sender":{"user_id":30,"nickname":"ann","role":"admin"},` +
			`"raw_message":"hello","message":[{"type":"text","data":{"text":"hello"}}],"time":1700000000}`,
		`{"post_type":"message_sent","message_type":"private","message_id":"124","self_id":10,"user_id":30,` +
			`"sender":{"user_id":10,"nickname":"bot"},"raw_message":"pong","message":"pong","time":1700000001}`,
		`{"post_type":"notice","notice_type":"notify","sub_type":"poke","user_id":30}`,
	}

	g := newGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}

		drain(ctx, conn)
	})

	a := New("bot-test", protocol.AdapterOptions{URL: g.url()}, slog.Default())

	messages := make(chan *models.ChatMessage, 4)
	mine := make(chan *models.ChatMessage, 4)

	a.OnMessage(func(m *models.ChatMessage) { messages <- m })
	a.OnMessageMine(func(m *models.ChatMessage) { mine <- m })

	require.NoError(t, a.Connect(t.Context()))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	var got *models.ChatMessage

	select {
	case got = <-messages:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	assert.False(t, got.IsMine)
	assert.Equal(t, "123", got.MessageID)
	assert.Equal(t, int64(77), *got.MessageSeqID)
	assert.Equal(t, models.MessageTypeGroup, got.MessageType)
	assert.Equal(t, int64(10), got.SelfID)
	assert.Equal(t, int64(20), *got.GroupID)
	assert.Equal(t, "dev", got.GroupName)
	assert.Equal(t, models.Sender{UserID: 30, Nickname: "ann", Role: "admin"}, got.Sender)
	assert.Equal(t, "hello", got.TextContent())
	assert.Equal(t, time.Unix(1700000000, 0), got.Time)

	select {
	case got = <-mine:
	case <-time.After(2 * time.Second):
		t.Fatal("message_sent not received")
	}

	assert.True(t, got.IsMine)
	assert.Equal(t, models.MessageTypePrivate, got.MessageType)
	assert.Equal(t, []models.Segment{models.TextSegment("pong")}, got.Message)
	assert.Nil(t, got.GroupID)

	assert.Empty(t, messages)
}

func TestInbound_MalformedFrameEmitsError(t *testing.T) {
	g := newGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{not json`))
		drain(ctx, conn)
	})

	a := New("bot-test", protocol.AdapterOptions{URL: g.url()}, slog.Default())

	errs := make(chan protocol.ErrorEvent, 1)
	a.OnError(func(e protocol.ErrorEvent) { errs <- e })

	require.NoError(t, a.Connect(t.Context()))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	select {
	case e := <-errs:
		require.Error(t, e.Err)
		assert.True(t, a.Connected())
	case <-time.After(2 * time.Second):
		t.Fatal("error event not emitted")
	}
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	var accepted atomic.Int32

	// The first connection is dropped by the server; later ones stay up.
	g := newGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		if accepted.Add(1) == 1 {
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}

		drain(ctx, conn)
	})

	a := New("bot-test", protocol.AdapterOptions{URL: g.url(), RetryInterval: 10 * time.Millisecond}, slog.Default())

	var connects, disconnects atomic.Int32
	a.OnConnected(func(protocol.ConnectionEvent) { connects.Add(1) })
	a.OnDisconnected(func(protocol.ConnectionEvent) { disconnects.Add(1) })

	require.NoError(t, a.Connect(t.Context()))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	require.Eventually(t, func() bool {
		return connects.Load() == 2 && a.Connected()
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), disconnects.Load())
	assert.Equal(t, int32(2), g.connections.Load())
}

func TestConnect_TakesOverScheduledReconnect(t *testing.T) {
	var accepted atomic.Int32

	g := newGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		if accepted.Add(1) == 1 {
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}

		drain(ctx, conn)
	})

	a := New("bot-test", protocol.AdapterOptions{URL: g.url(), RetryInterval: 300 * time.Millisecond}, slog.Default())

	var connects atomic.Int32
	a.OnConnected(func(protocol.ConnectionEvent) { connects.Add(1) })

	require.NoError(t, a.Connect(t.Context()))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	require.Eventually(t, func() bool { return a.State() == StateReconnecting }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, a.Connect(t.Context()))
	assert.True(t, a.Connected())

	time.Sleep(600 * time.Millisecond)

	assert.Equal(t, int32(2), connects.Load())
	assert.Equal(t, int32(2), g.connections.Load())
	assert.Equal(t, StateConnected, a.State())
}

func TestReconnect_GivesUp(t *testing.T) {
	var requests atomic.Int32

	// Only the first upgrade succeeds and is dropped at once; every
	// reconnect dial is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) > 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		_ = conn.Close(websocket.StatusGoingAway, "bye")
	}))
	t.Cleanup(srv.Close)

	a := New("bot-test", protocol.AdapterOptions{
		URL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		RetryInterval: time.Millisecond,
		MaxRetries:    2,
	}, slog.Default())

	var errorEvents atomic.Int32
	a.OnError(func(protocol.ErrorEvent) { errorEvents.Add(1) })

	require.NoError(t, a.Connect(t.Context()))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })

	require.Eventually(t, func() bool { return requests.Load() == 3 }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return a.State() == StateDisconnected }, 3*time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, int32(2), errorEvents.Load())
}

func TestFrame_EventType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"post_type":"message"}`, "message"},
		{`{"post_type":"message_sent"}`, "message_sent"},
		{`{"post_type":"notice","notice_type":"group_increase"}`, "group_increase"},
		{`{"post_type":"notice","notice_type":"notify","sub_type":"poke"}`, "poke"},
		{`{"echo":"abc","retcode":0}`, ""},
	}

	for _, tt := range tests {
		var f frame
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
		assert.Equal(t, tt.want, f.eventType(), tt.raw)
	}
}
