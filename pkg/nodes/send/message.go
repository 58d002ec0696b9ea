package send

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/template"
)

const MessageNodeType = "send-message"

const (
	DefaultSender = "{trigger.selfId}"
	DefaultTarget = "{trigger.targetId}"
)

// Item is one entry of the msgList param.
type Item struct {
	Value string
	Data  string
}

// MessageNode composes text and image segments and sends them to a private
// or group target, optionally through a different bot than the one that
// triggered the run.
type MessageNode struct {
	id         string
	sender     string
	targetType models.MessageType
	target     string
	items      []Item
}

func NewMessageNode(id string, config map[string]any) (*MessageNode, error) {
	targetType := models.MessageType(nodes.String(config, "targetType", string(models.MessageTypePrivate)))
	if targetType != models.MessageTypePrivate && targetType != models.MessageTypeGroup {
		return nil, fmt.Errorf("invalid targetType '%s' (must be private or group)", targetType)
	}

	var items []Item

	switch raw := config["msgList"].(type) {
	case nil:
	case []any:
		for i, entry := range raw {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("msgList[%d] must be an object", i)
			}

			items = append(items, Item{
				Value: nodes.String(m, "value", ""),
				Data:  nodes.String(m, "data", ""),
			})
		}
	default:
		return nil, fmt.Errorf("msgList must be a list")
	}

	return &MessageNode{
		id:         id,
		sender:     nodes.String(config, "sender", DefaultSender),
		targetType: targetType,
		target:     nodes.String(config, "target", DefaultTarget),
		items:      items,
	}, nil
}

func (n *MessageNode) ID() string {
	return n.id
}

func (n *MessageNode) Type() string {
	return MessageNodeType
}

func (n *MessageNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	scope := scopeOf(nctx, input)
	msg, _ := nodes.TriggerMessage(nctx)

	sender, err := template.Fill(n.sender, scope, template.EmptyMissing())
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	bot, err := nodes.BotByID(nctx, sender)
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	target, err := n.resolveTarget(scope, msg)
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	segments := make([]models.Segment, 0, len(n.items))

	for _, item := range n.items {
		data := item.Data
		if strings.Contains(data, "{") && strings.Contains(data, "}") {
			if data, err = template.Fill(data, scope); err != nil {
				return models.Failed(err.Error()), nil
			}
		}

		switch item.Value {
		case string(models.SegmentText):
			segments = append(segments, models.TextSegment(data))
		case string(models.SegmentImage):
			segments = append(segments, models.ImageSegment(data))
		default:
			nctx.Log(models.LogLevelWarn, fmt.Sprintf("skipping unsupported segment type '%s'", item.Value), nil)
		}
	}

	params := models.APIParams{Message: segments}
	if n.targetType == models.MessageTypeGroup {
		params.GroupID = &target
	} else {
		params.UserID = &target
	}

	if err := deliver(ctx, bot, params); err != nil {
		return models.Failed(err.Error()), nil
	}

	return models.Succeeded(map[string]any{
		"sent":    true,
		"message": sentMessage,
	}), nil
}

// resolveTarget renders the target id. The default target follows the
// triggering chat, preferring the peer and falling back to the group.
func (n *MessageNode) resolveTarget(scope template.Scope, msg *models.ChatMessage) (int64, error) {
	if strings.Contains(n.target, DefaultTarget) && msg != nil {
		switch {
		case msg.TargetID != nil:
			return *msg.TargetID, nil
		case msg.GroupID != nil:
			return *msg.GroupID, nil
		}
	}

	rendered, err := template.Fill(n.target, scope)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(strings.TrimSpace(rendered), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target id '%s'", rendered)
	}

	return id, nil
}
