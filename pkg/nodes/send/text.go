package send

import (
	"context"
	"errors"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/template"
)

const TextNodeType = "send-text"

// TextNode replies with plain text to the chat the run was triggered from.
type TextNode struct {
	id   string
	text string
}

func NewTextNode(id string, config map[string]any) (*TextNode, error) {
	text, ok := config["text"].(string)
	if !ok {
		return nil, errors.New("missing required field 'text'")
	}

	return &TextNode{id: id, text: text}, nil
}

func (n *TextNode) ID() string {
	return n.id
}

func (n *TextNode) Type() string {
	return TextNodeType
}

func (n *TextNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	bot, err := nodes.Bot(nctx)
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	msg, err := nodes.TriggerMessage(nctx)
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	text, err := template.Fill(n.text, scopeOf(nctx, input))
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	params := models.APIParams{Message: []models.Segment{models.TextSegment(text)}}

	switch {
	case msg.MessageType == models.MessageTypeGroup && msg.GroupID != nil:
		params.GroupID = msg.GroupID
	case msg.MessageType == models.MessageTypeGroup && msg.UserID != nil:
		params.GroupID = msg.UserID
	case msg.GroupID != nil:
		params.UserID = msg.GroupID
	case msg.UserID != nil:
		params.UserID = msg.UserID
	default:
		return models.Failed("trigger message has no group or user id"), nil
	}

	if err := deliver(ctx, bot, params); err != nil {
		return models.Failed(err.Error()), nil
	}

	return models.Succeeded(map[string]any{
		"text":    text,
		"sent":    true,
		"message": sentMessage,
	}), nil
}
