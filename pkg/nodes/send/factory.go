package send

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

// TextNodeFactory creates TextNode instances.
type TextNodeFactory struct{}

func (f *TextNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewTextNode(id, config)
}

func (f *TextNodeFactory) ID() string {
	return TextNodeType
}

func (f *TextNodeFactory) Name() string {
	return "Send Text"
}

func (f *TextNodeFactory) Description() string {
	return "Replies with a text message to the chat that triggered the run"
}

func (f *TextNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "bot",
		Params: []models.ParamSpec{
			{Key: "text", Label: "Text", Type: "textarea", Required: true},
		},
		Output: map[string]any{
			"text":    "string",
			"sent":    "boolean",
			"message": "string",
		},
	}
}

func (f *TextNodeFactory) Schema() map[string]any {
	return nodes.SchemaFor(f.Metadata())
}

func NewTextNodeFactory() protocol.NodeFactory {
	return &TextNodeFactory{}
}

// MessageNodeFactory creates MessageNode instances.
type MessageNodeFactory struct{}

func (f *MessageNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewMessageNode(id, config)
}

func (f *MessageNodeFactory) ID() string {
	return MessageNodeType
}

func (f *MessageNodeFactory) Name() string {
	return "Send Message"
}

func (f *MessageNodeFactory) Description() string {
	return "Composes text and image segments and sends them to a user or group, through any connected bot"
}

func (f *MessageNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "bot",
		Params: []models.ParamSpec{
			{Key: "settings", Type: models.ParamTypeSettings},
			{Key: "sender", Label: "Sender bot", Type: "input", Required: true, Default: DefaultSender},
			{
				Key: "targetType", Label: "Target type", Type: "select", Required: true,
				Default: string(models.MessageTypePrivate), Options: []any{"private", "group"},
			},
			{Key: "target", Label: "Target", Type: "input", Required: true, Default: DefaultTarget},
			{Key: "msgList", Label: "Segments", Type: "list"},
		},
		Output: map[string]any{
			"sent":    "boolean",
			"message": "string",
		},
	}
}

func (f *MessageNodeFactory) Schema() map[string]any {
	schema := nodes.SchemaFor(f.Metadata())
	props := schema["properties"].(map[string]any)
	props["targetType"].(map[string]any)["enum"] = []string{"private", "group"}
	props["msgList"] = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": "string"},
				"data":  map[string]any{"type": []string{"string", "number"}},
			},
		},
	}

	return schema
}

func NewMessageNodeFactory() protocol.NodeFactory {
	return &MessageNodeFactory{}
}
