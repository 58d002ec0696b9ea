// Package onebot connects to OneBot v11 gateways such as Napcat over a
// forward websocket.
package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRetries    = 5
	DefaultRetryInterval = 2 * time.Second
	DefaultSyncTimeout   = 5 * time.Second

	// TypeOneBot is reported by adapters created without WithType.
	TypeOneBot = "onebot"

	readLimit = 16 << 20
)

var (
	ErrConnection   = errors.New("onebot: connection failed")
	ErrNotConnected = errors.New("onebot: websocket is not connected")
	ErrCallTimeout  = errors.New("onebot: call timed out")
	ErrDisconnected = errors.New("onebot: disconnected")
)

var validate = validator.New()

// State is the connection state of an adapter.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

type callResult struct {
	resp *models.APIResponse
	err  error
}

// Adapter is a protocol.BotAdapter speaking OneBot v11 JSON frames.
type Adapter struct {
	id     string
	kind   string
	opts   protocol.AdapterOptions
	logger *slog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	cancelRead   context.CancelFunc
	state        State
	stopped      bool
	reconnecting bool
	reconnect    *time.Timer
	backoff      *reconnectBackOff
	pending      map[string]chan callResult
	limiter      *rate.Limiter

	connected    protocol.Subject[protocol.ConnectionEvent]
	disconnected protocol.Subject[protocol.ConnectionEvent]
	errs         protocol.Subject[protocol.ErrorEvent]
	messages     protocol.Subject[*models.ChatMessage]
	mine         protocol.Subject[*models.ChatMessage]
}

var _ protocol.BotAdapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithType sets the adapter type reported by Type, e.g. "napcat".
func WithType(kind string) Option {
	return func(a *Adapter) {
		a.kind = kind
	}
}

// New creates a disconnected adapter. Zero option values take the defaults.
func New(id string, opts protocol.AdapterOptions, logger *slog.Logger, options ...Option) *Adapter {
	if opts.Reconnect == nil {
		reconnect := true
		opts.Reconnect = &reconnect
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	if opts.RetryInterval == 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	if opts.SyncTimeout == 0 {
		opts.SyncTimeout = DefaultSyncTimeout
	}

	a := &Adapter{
		id:      id,
		kind:    TypeOneBot,
		opts:    opts,
		state:   StateDisconnected,
		backoff: newReconnectBackOff(opts.RetryInterval, opts.MaxRetries),
		pending: make(map[string]chan callResult),
	}

	if opts.RateLimit > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))
	}

	for _, o := range options {
		o(a)
	}

	a.logger = logger.With("module", "onebot_adapter", "adapter_id", id)

	a.connected.SetLogger(a.logger)
	a.disconnected.SetLogger(a.logger)
	a.errs.SetLogger(a.logger)
	a.messages.SetLogger(a.logger)
	a.mine.SetLogger(a.logger)

	return a
}

func (a *Adapter) ID() string   { return a.id }
func (a *Adapter) Type() string { return a.kind }

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state == StateConnected
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Connect dials the gateway. It is a no-op while connected and takes over
// from any scheduled reconnect.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateConnected {
		a.mu.Unlock()
		return nil
	}

	if a.reconnect != nil {
		a.reconnect.Stop()
		a.reconnect = nil
	}

	a.reconnecting = false
	a.stopped = false
	a.mu.Unlock()

	return a.dial(ctx)
}

func (a *Adapter) dial(ctx context.Context) error {
	if a.opts.URL == "" {
		return fmt.Errorf("%w: missing url", ErrConnection)
	}

	if err := validate.Struct(a.opts); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	a.mu.Lock()
	if a.conn == nil {
		a.state = StateConnecting
	}
	a.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, a.endpoint(), nil)
	if err != nil {
		a.mu.Lock()
		if a.conn == nil {
			a.state = StateDisconnected
		}
		a.mu.Unlock()

		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	conn.SetReadLimit(readLimit)

	readCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "disconnected")

		return ErrDisconnected
	}

	// Another dial won; keep a single connection.
	if a.conn != nil {
		a.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "already connected")

		return nil
	}

	a.conn = conn
	a.cancelRead = cancel
	a.state = StateConnected
	a.reconnecting = false
	a.backoff.Reset()
	a.mu.Unlock()

	a.logger.Info("Connected to gateway")
	a.connected.Emit(a.connectionEvent())

	go a.readLoop(readCtx, conn)

	return nil
}

// endpoint appends access_token to the configured URL.
func (a *Adapter) endpoint() string {
	if a.opts.Token == "" {
		return a.opts.URL
	}

	sep := "?"
	if strings.Contains(a.opts.URL, "?") {
		sep = "&"
	}

	return a.opts.URL + sep + "access_token=" + url.QueryEscape(a.opts.Token)
}

// Disconnect closes the transport, cancels any scheduled reconnect and
// rejects pending calls with ErrDisconnected.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	conn := a.conn
	scheduled := a.reconnect != nil

	if conn == nil && !scheduled {
		a.stopped = true
		a.mu.Unlock()

		return nil
	}

	a.stopped = true
	a.conn = nil
	a.state = StateDisconnected
	a.reconnecting = false
	a.backoff.Reset()

	if a.reconnect != nil {
		a.reconnect.Stop()
		a.reconnect = nil
	}

	cancel := a.cancelRead
	a.cancelRead = nil
	a.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "disconnect")
	}

	if cancel != nil {
		cancel()
	}

	a.rejectPending(ErrDisconnected)
	a.disconnected.Emit(a.connectionEvent())
	a.logger.Info("Disconnected from gateway")

	if err != nil && !isClosed(err) {
		return err
	}

	return nil
}

// Send writes req without waiting for a response.
func (a *Adapter) Send(ctx context.Context, req *models.APIRequest) error {
	conn := a.current()
	if conn == nil {
		return ErrNotConnected
	}

	if err := a.throttle(ctx); err != nil {
		return err
	}

	return wsjson.Write(ctx, conn, req)
}

// throttle waits for the rate limiter, if one is configured.
func (a *Adapter) throttle(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}

	return a.limiter.Wait(ctx)
}

// Call writes req with an echo and waits for the response carrying it.
func (a *Adapter) Call(ctx context.Context, req *models.APIRequest) (*models.APIResponse, error) {
	conn := a.current()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if err := a.throttle(ctx); err != nil {
		return nil, err
	}

	out := *req
	if out.Echo == "" {
		out.Echo = newEcho()
	}

	ch := make(chan callResult, 1)

	a.mu.Lock()
	a.pending[out.Echo] = ch
	a.mu.Unlock()

	defer a.release(out.Echo)

	timer := time.NewTimer(a.opts.SyncTimeout)
	defer timer.Stop()

	if err := wsjson.Write(ctx, conn, &out); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%w waiting for echo=%s", ErrCallTimeout, out.Echo)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Adapter) OnConnected(fn func(protocol.ConnectionEvent)) protocol.Subscription {
	return a.connected.Subscribe(fn)
}

func (a *Adapter) OnDisconnected(fn func(protocol.ConnectionEvent)) protocol.Subscription {
	return a.disconnected.Subscribe(fn)
}

func (a *Adapter) OnError(fn func(protocol.ErrorEvent)) protocol.Subscription {
	return a.errs.Subscribe(fn)
}

func (a *Adapter) OnMessage(fn func(*models.ChatMessage)) protocol.Subscription {
	return a.messages.Subscribe(fn)
}

func (a *Adapter) OnMessageMine(fn func(*models.ChatMessage)) protocol.Subscription {
	return a.mine.Subscribe(fn)
}

func (a *Adapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			a.closed(conn, err)
			return
		}

		a.dispatch(data)
	}
}

var handlers = map[string]func(a *Adapter, f *frame){
	"message": func(a *Adapter, f *frame) {
		a.emitMessage(f, false, &a.messages)
	},
	"message_sent": func(a *Adapter, f *frame) {
		a.emitMessage(f, true, &a.mine)
	},
}

func (a *Adapter) dispatch(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		a.emitError(fmt.Errorf("decode frame: %w", err))
		return
	}

	if f.Echo != "" && a.resolve(string(f.Echo), data) {
		return
	}

	msgType := f.eventType()

	handle, ok := handlers[msgType]
	if !ok {
		a.logger.Debug("Dropping unhandled frame", "type", msgType)
		return
	}

	handle(a, &f)
}

func (a *Adapter) emitMessage(f *frame, isMine bool, subject *protocol.Subject[*models.ChatMessage]) {
	msg, err := f.chatMessage(isMine)
	if err != nil {
		a.emitError(fmt.Errorf("decode message: %w", err))
		return
	}

	subject.Emit(msg)
}

// resolve completes the pending call for echo. Echoes with no pending call,
// including late replies to timed out calls, are not consumed.
func (a *Adapter) resolve(echo string, data []byte) bool {
	a.mu.Lock()
	ch, ok := a.pending[echo]
	delete(a.pending, echo)
	a.mu.Unlock()

	if !ok {
		return false
	}

	var resp models.APIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		ch <- callResult{err: fmt.Errorf("decode response: %w", err)}
		return true
	}

	ch <- callResult{resp: &resp}

	return true
}

func (a *Adapter) release(echo string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.pending, echo)
}

func (a *Adapter) rejectPending(err error) {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[string]chan callResult)
	a.mu.Unlock()

	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}

// closed handles the end of conn's read loop. Closes initiated by
// Disconnect have already detached conn and are ignored here.
func (a *Adapter) closed(conn *websocket.Conn, err error) {
	a.mu.Lock()
	if a.conn != conn {
		a.mu.Unlock()
		return
	}

	a.conn = nil
	a.state = StateDisconnected

	if a.cancelRead != nil {
		a.cancelRead()
		a.cancelRead = nil
	}
	a.mu.Unlock()

	if websocket.CloseStatus(err) == -1 {
		a.emitError(err)
	}

	_ = conn.CloseNow()

	a.logger.Warn("Gateway connection closed", "error", err)
	a.rejectPending(fmt.Errorf("websocket closed: %w", err))
	a.disconnected.Emit(a.connectionEvent())
	a.scheduleReconnect()
}

// scheduleReconnect arms at most one reconnect timer. Each failed attempt
// schedules the next until the backoff stops.
func (a *Adapter) scheduleReconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !*a.opts.Reconnect || a.stopped || a.reconnecting || a.state == StateConnected {
		return
	}

	delay := a.backoff.NextBackOff()
	if delay == backoff.Stop {
		a.logger.Warn("Giving up reconnecting", "attempts", a.backoff.attempts-1)
		return
	}

	a.reconnecting = true
	a.state = StateReconnecting

	a.logger.Info("Scheduling reconnect", "attempt", a.backoff.attempts, "delay", delay)

	a.reconnect = time.AfterFunc(delay, func() {
		a.mu.Lock()
		a.reconnect = nil
		skip := a.stopped || a.state == StateConnected
		a.mu.Unlock()

		if skip {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), maxReconnectDelay)
		defer cancel()

		if err := a.dial(ctx); err != nil {
			a.emitError(err)

			a.mu.Lock()
			a.reconnecting = false
			a.mu.Unlock()

			a.scheduleReconnect()
		}
	})
}

func (a *Adapter) current() *websocket.Conn {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateConnected {
		return nil
	}

	return a.conn
}

func (a *Adapter) pendingCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.pending)
}

func (a *Adapter) emitError(err error) {
	a.logger.Debug("Adapter error", "error", err)
	a.errs.Emit(protocol.ErrorEvent{ID: a.id, Err: err, Timestamp: time.Now()})
}

func (a *Adapter) connectionEvent() protocol.ConnectionEvent {
	return protocol.ConnectionEvent{ID: a.id, Source: a.id, Timestamp: time.Now()}
}

func isClosed(err error) bool {
	return websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled)
}

const echoAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newEcho returns base36(unix millis) followed by six random base36 chars.
func newEcho() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = echoAlphabet[rand.IntN(len(echoAlphabet))]
	}

	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + string(suffix)
}
