package htmlrender

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

// HTMLRenderNodeFactory creates HTMLRenderNode instances that share one
// Renderer.
type HTMLRenderNodeFactory struct {
	renderer Renderer
}

type FactoryOption func(*HTMLRenderNodeFactory)

// WithRenderer replaces the headless Chrome renderer.
func WithRenderer(r Renderer) FactoryOption {
	return func(f *HTMLRenderNodeFactory) { f.renderer = r }
}

func (f *HTMLRenderNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewHTMLRenderNode(id, config, f.renderer)
}

func (f *HTMLRenderNodeFactory) ID() string {
	return NodeType
}

func (f *HTMLRenderNodeFactory) Name() string {
	return "Render HTML"
}

func (f *HTMLRenderNodeFactory) Description() string {
	return "Fills an HTML template from the run state and renders it to a PNG data URL"
}

func (f *HTMLRenderNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "output",
		Params: []models.ParamSpec{
			{Key: "template", Label: "Template", Type: "textarea", Required: true},
			{Key: "width", Label: "Width", Type: "number", Default: float64(DefaultWidth)},
			{Key: "height", Label: "Height", Type: "number", Default: float64(DefaultHeight)},
			{Key: "timeout", Label: "Timeout (ms)", Type: "number", Default: float64(DefaultTimeout.Milliseconds())},
		},
		Output: map[string]any{"image": "string"},
	}
}

func (f *HTMLRenderNodeFactory) Schema() map[string]any {
	return nodes.SchemaFor(f.Metadata())
}

func NewHTMLRenderNodeFactory(opts ...FactoryOption) protocol.NodeFactory {
	f := &HTMLRenderNodeFactory{renderer: ChromeRenderer{}}
	for _, opt := range opts {
		opt(f)
	}

	return f
}
