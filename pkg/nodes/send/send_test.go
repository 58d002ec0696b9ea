package send

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/renflow/pkg/mocks"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/dukex/renflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func groupMessage() *models.ChatMessage {
	return &models.ChatMessage{
		MessageType: models.MessageTypeGroup,
		SelfID:      10001,
		GroupID:     models.Int64(555),
		UserID:      models.Int64(42),
		RawMessage:  "ping",
		Sender:      models.Sender{UserID: 42, Nickname: "ren"},
	}
}

func sentTo(check func(models.APIParams) bool) any {
	return mock.MatchedBy(func(req *models.APIRequest) bool {
		return req.Action == ActionSendMessage && check(req.Params)
	})
}

func TestTextNode_RepliesToGroup(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Call", mock.Anything, sentTo(func(p models.APIParams) bool {
		return p.GroupID != nil && *p.GroupID == 555 && p.UserID == nil &&
			models.TextContent(p.Message) == "pong to ren"
	})).Return(&models.APIResponse{Status: "ok"}, nil)

	node, err := NewTextNode("reply", map[string]any{"text": "pong to {trigger.sender.nickname}"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("reply", TextNodeType, map[string]any{
		models.GlobalKeyBot:     bot,
		models.GlobalKeyTrigger: groupMessage(),
	})

	result, err := node.Execute(context.Background(), nctx, nil)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, map[string]any{"text": "pong to ren", "sent": true, "message": sentMessage}, result.Output)
	bot.AssertExpectations(t)
}

func TestTextNode_RepliesToPrivatePeer(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Call", mock.Anything, sentTo(func(p models.APIParams) bool {
		return p.UserID != nil && *p.UserID == 42 && p.GroupID == nil
	})).Return(&models.APIResponse{}, nil)

	node, err := NewTextNode("reply", map[string]any{"text": "hi"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("reply", TextNodeType, map[string]any{
		models.GlobalKeyBot: bot,
		models.GlobalKeyTrigger: &models.ChatMessage{
			MessageType: models.MessageTypePrivate,
			UserID:      models.Int64(42),
		},
	})

	result, err := node.Execute(context.Background(), nctx, nil)
	require.NoError(t, err)
	assert.True(t, result.Success, result.Error)
	bot.AssertExpectations(t)
}

func TestTextNode_NonZeroRetcodeFails(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Call", mock.Anything, mock.Anything).Return(&models.APIResponse{RetCode: 1200, Message: "muted"}, nil)

	node, err := NewTextNode("reply", map[string]any{"text": "hi"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("reply", TextNodeType, map[string]any{
		models.GlobalKeyBot:     bot,
		models.GlobalKeyTrigger: groupMessage(),
	})

	result, err := node.Execute(context.Background(), nctx, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "1200")
	assert.Contains(t, result.Error, "muted")
}

func TestTextNode_CallError(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("call timed out"))

	node, err := NewTextNode("reply", map[string]any{"text": "hi"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("reply", TextNodeType, map[string]any{
		models.GlobalKeyBot:     bot,
		models.GlobalKeyTrigger: groupMessage(),
	})

	result, _ := node.Execute(context.Background(), nctx, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "call timed out")
}

func TestTextNode_NoBot(t *testing.T) {
	node, err := NewTextNode("reply", map[string]any{"text": "hi"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("reply", TextNodeType, nil)

	result, _ := node.Execute(context.Background(), nctx, nil)
	assert.False(t, result.Success)
	assert.Equal(t, nodes.ErrNoBot.Error(), result.Error)
}

type lookup map[string]protocol.BotAdapter

func (l lookup) Get(id string) (protocol.BotAdapter, bool) {
	b, ok := l[id]

	return b, ok
}

func TestMessageNode_ComposesSegments(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Call", mock.Anything, sentTo(func(p models.APIParams) bool {
		return p.GroupID != nil && *p.GroupID == 777 &&
			len(p.Message) == 2 &&
			p.Message[0].Type == models.SegmentText && p.Message[0].Data["text"] == "score: 9" &&
			p.Message[1].Type == models.SegmentImage && p.Message[1].Data["file"] == "https://x/y.png"
	})).Return(&models.APIResponse{}, nil)

	node, err := NewMessageNode("msg", map[string]any{
		"targetType": "group",
		"target":     "{group}",
		"msgList": []any{
			map[string]any{"value": "text", "data": "score: {score}"},
			map[string]any{"value": "image", "data": "https://x/y.png"},
			map[string]any{"value": "poke", "data": ""},
		},
	})
	require.NoError(t, err)

	nctx, rec := testutil.NewNodeContext("msg", MessageNodeType, map[string]any{
		models.GlobalKeyBot:     bot,
		models.GlobalKeyTrigger: groupMessage(),
	})

	result, err := node.Execute(context.Background(), nctx, map[string]any{"group": 777, "score": 9})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Len(t, rec.Messages(), 1)
	bot.AssertExpectations(t)
}

func TestMessageNode_DefaultTargetFollowsTrigger(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")
	bot.On("Call", mock.Anything, sentTo(func(p models.APIParams) bool {
		return p.UserID != nil && *p.UserID == 555
	})).Return(&models.APIResponse{}, nil)

	node, err := NewMessageNode("msg", map[string]any{
		"msgList": []any{map[string]any{"value": "text", "data": "hello"}},
	})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("msg", MessageNodeType, map[string]any{
		models.GlobalKeyBot:     bot,
		models.GlobalKeyTrigger: groupMessage(),
	})

	result, _ := node.Execute(context.Background(), nctx, nil)
	assert.True(t, result.Success, result.Error)
	bot.AssertExpectations(t)
}

func TestMessageNode_SenderSelectsConnector(t *testing.T) {
	home := mocks.NewMockBotAdapter("bot-1")
	other := mocks.NewMockBotAdapter("bot-2")
	other.On("Call", mock.Anything, mock.Anything).Return(&models.APIResponse{}, nil)

	node, err := NewMessageNode("msg", map[string]any{
		"sender": "bot-2",
		"target": "42",
		"msgList": []any{map[string]any{"value": "text", "data": "relay"}},
	})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("msg", MessageNodeType, map[string]any{
		models.GlobalKeyBot:      home,
		nodes.GlobalKeyConnectors: lookup{"bot-1": home, "bot-2": other},
	})

	result, _ := node.Execute(context.Background(), nctx, nil)
	assert.True(t, result.Success, result.Error)
	other.AssertExpectations(t)
	home.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestMessageNode_InvalidTarget(t *testing.T) {
	bot := mocks.NewMockBotAdapter("bot-1")

	node, err := NewMessageNode("msg", map[string]any{"target": "someone"})
	require.NoError(t, err)

	nctx, _ := testutil.NewNodeContext("msg", MessageNodeType, map[string]any{models.GlobalKeyBot: bot})

	result, _ := node.Execute(context.Background(), nctx, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid target id")
}

func TestNewMessageNode_InvalidTargetType(t *testing.T) {
	_, err := NewMessageNode("msg", map[string]any{"targetType": "channel"})
	require.Error(t, err)
}
