package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/renflow/pkg/connectors"
	"github.com/dukex/renflow/pkg/eventbus"
	"github.com/dukex/renflow/pkg/events"
	"github.com/dukex/renflow/pkg/mocks"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/testutil"
	"github.com/dukex/renflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type execution struct {
	workflowNode string
	input        any
	bot          any
	connectors   any
}

// recorder executes every node as a passthrough and reports what it saw.
type recorder struct {
	runs chan execution
}

func (r *recorder) ExecuteNode(_ context.Context, _ string, input any, _ map[string]any, nctx *models.NodeContext) models.NodeResult {
	bot, _ := nctx.State.Get(models.GlobalKeyBot)
	conns, _ := nctx.State.Get(nodes.GlobalKeyConnectors)

	r.runs <- execution{workflowNode: nctx.NodeID, input: input, bot: bot, connectors: conns}

	return models.Succeeded(input)
}

func triggered(id, event string, params map[string]any) *models.CompiledWorkflow {
	wf := testutil.CreateTestWorkflow(id+"-entry", testutil.CompiledNode(id+"-entry", "note", nil))
	wf.ID = id
	wf.Trigger = models.Trigger{Type: "bot", Name: event, Params: params}

	return wf
}

func newDispatcher(t *testing.T, wfs ...*models.CompiledWorkflow) (*Dispatcher, *connectors.Manager, *recorder) {
	t.Helper()

	rec := &recorder{runs: make(chan execution, 16)}
	manager := connectors.NewManager(slog.Default())
	runner := workflow.NewRunner(workflow.NewEngine(rec, slog.Default()), slog.Default())

	d := New(workflow.NewRepository(wfs...), manager, runner, slog.Default(), WithMinDelay(workflow.NoDelay), WithTimeout(5*time.Second))

	return d, manager, rec
}

func next(t *testing.T, rec *recorder) execution {
	t.Helper()

	select {
	case e := <-rec.runs:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("no node executed")
		return execution{}
	}
}

func message(text string, mine bool) *models.ChatMessage {
	return &models.ChatMessage{
		MessageID:   "1",
		MessageType: models.MessageTypePrivate,
		UserID:      models.Int64(7),
		RawMessage:  text,
		Message:     []models.Segment{models.TextSegment(text)},
		IsMine:      mine,
	}
}

func TestDispatcher_AddBots(t *testing.T) {
	d, manager, _ := newDispatcher(t)

	err := d.AddBots([]models.BotConfig{
		{ID: "qq", Type: connectors.TypeNapcat, Address: "ws://127.0.0.1:3001", Token: "file"},
		{ID: "alt", Type: connectors.TypeOneBot, Address: "ws://127.0.0.1:3002"},
	}, map[string]string{"qq": "flag"})
	require.NoError(t, err)

	assert.Len(t, manager.All(), 2)

	adapter, ok := manager.Get("qq")
	require.True(t, ok)
	assert.Equal(t, connectors.TypeNapcat, adapter.Type())

	err = d.AddBots([]models.BotConfig{{ID: "x", Type: "telegram", Address: "ws://h"}}, nil)
	require.ErrorIs(t, err, connectors.ErrUnsupportedAdapterType)
}

func TestDispatcher_RoutesMessages(t *testing.T) {
	hello := triggered("hello", "message", map[string]any{"filterParam": "$", "filterMode": "regex", "regexExpression": "^hello"})
	mine := triggered("mine", "message_mine", map[string]any{"filterParam": "$", "filterMode": "regex", "regexExpression": ".", "includeSelf": true})

	d, manager, rec := newDispatcher(t, hello, mine)

	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Connect", mock.Anything).Return(nil)
	bot.On("Disconnect", mock.Anything).Return(nil)
	manager.Register("bot-1", bot)

	require.NoError(t, d.Start(t.Context()))
	require.NoError(t, d.Start(t.Context()))
	assert.Equal(t, 2, bot.MessageSubscribers())

	bot.EmitMessage(message("hello there", false))

	e := next(t, rec)
	assert.Equal(t, "hello-entry", e.workflowNode)
	assert.Same(t, bot, e.bot)
	assert.Same(t, manager, e.connectors)

	bot.EmitMessage(message("goodbye", false))
	bot.EmitMessageMine(message("sent by me", true))

	e = next(t, rec)
	assert.Equal(t, "mine-entry", e.workflowNode)

	require.NoError(t, d.Stop(t.Context()))
	assert.Equal(t, 0, bot.MessageSubscribers())

	select {
	case e := <-rec.runs:
		t.Fatalf("unexpected run of %s", e.workflowNode)
	default:
	}

	bot.AssertNumberOfCalls(t, "Connect", 1)
	bot.AssertNumberOfCalls(t, "Disconnect", 1)
}

func TestDispatcher_ConnectFailureIsLogged(t *testing.T) {
	d, manager, _ := newDispatcher(t)

	bad := mocks.NewMockBotAdapter("bad")
	bad.On("Connect", mock.Anything).Return(errors.New("refused"))
	bad.On("Disconnect", mock.Anything).Return(nil)
	manager.Register("bad", bad)

	good := mocks.NewMockBotAdapter("good")
	good.On("Connect", mock.Anything).Return(nil)
	good.On("Disconnect", mock.Anything).Return(nil)
	manager.Register("good", good)

	require.NoError(t, d.Start(t.Context()))
	good.AssertCalled(t, "Connect", mock.Anything)

	require.NoError(t, d.Stop(t.Context()))
}

func TestDispatcher_FireBypassesFilter(t *testing.T) {
	// A regex that would never match a chat message.
	wf := triggered("tick", "schedule", map[string]any{"filterParam": "$", "filterMode": "regex", "regexExpression": "^$never"})

	d, _, rec := newDispatcher(t, wf)

	d.Fire(t.Context(), "schedule", map[string]any{"cron": "@every 1m"})

	e := next(t, rec)
	assert.Equal(t, "tick-entry", e.workflowNode)
	assert.Equal(t, map[string]any{"cron": "@every 1m"}, e.input)
	assert.Nil(t, e.bot)

	d.Fire(t.Context(), "nothing-listens", nil)
	assert.Empty(t, rec.runs)
}

func TestDispatcher_FireWorkflowsConcurrently(t *testing.T) {
	var wg sync.WaitGroup

	d, _, rec := newDispatcher(t)
	wfs := []*models.CompiledWorkflow{triggered("a", "queue", nil), triggered("b", "queue", nil)}

	wg.Add(1)

	go func() {
		defer wg.Done()
		d.FireWorkflows(t.Context(), "queue", wfs, "payload")
	}()

	seen := []string{next(t, rec).workflowNode, next(t, rec).workflowNode}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a-entry", "b-entry"}, seen)
}

func TestDispatcher_Run(t *testing.T) {
	d, _, _ := newDispatcher(t, triggered("one", "message", nil))

	result, err := d.Run(t.Context(), "one", "input")
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, err = d.Run(t.Context(), "missing", nil)
	require.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []events.EventType
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = append(p.keys, key)
	p.events = append(p.events, event.GetType())

	return nil
}

func TestDispatcher_PublishesConnectionChanges(t *testing.T) {
	pub := &recordingPublisher{}

	manager := connectors.NewManager(slog.Default())
	runner := workflow.NewRunner(workflow.NewEngine(&recorder{runs: make(chan execution, 1)}, slog.Default()), slog.Default())
	d := New(workflow.NewRepository(), manager, runner, slog.Default(), WithPublisher(pub))

	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Connect", mock.Anything).Return(nil)
	bot.On("Disconnect", mock.Anything).Return(nil)
	manager.Register("bot-1", bot)

	require.NoError(t, d.Start(t.Context()))

	bot.EmitConnected()
	bot.EmitDisconnected()

	require.NoError(t, d.Stop(t.Context()))

	bot.EmitConnected()

	assert.Equal(t, []string{"bot-1", "bot-1"}, pub.keys)
	assert.Equal(t, []events.EventType{events.AdapterConnectedEvent, events.AdapterDisconnectedEvent}, pub.events)
}
