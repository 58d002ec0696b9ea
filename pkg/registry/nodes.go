package registry

import (
	"github.com/dukex/renflow/pkg/nodes/command"
	"github.com/dukex/renflow/pkg/nodes/conditional"
	"github.com/dukex/renflow/pkg/nodes/custom"
	"github.com/dukex/renflow/pkg/nodes/htmlrender"
	"github.com/dukex/renflow/pkg/nodes/httprequest"
	"github.com/dukex/renflow/pkg/nodes/log"
	"github.com/dukex/renflow/pkg/nodes/merge"
	"github.com/dukex/renflow/pkg/nodes/note"
	"github.com/dukex/renflow/pkg/nodes/send"
	switchnode "github.com/dukex/renflow/pkg/nodes/switch"
	"github.com/dukex/renflow/pkg/nodes/transform"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes() {
	// Output
	r.RegisterNode(log.NewLogNodeFactory())
	r.RegisterNode(htmlrender.NewHTMLRenderNodeFactory())

	// Flow
	r.RegisterNode(conditional.NewConditionalNodeFactory())
	r.RegisterNode(switchnode.NewSwitchNodeFactory())
	r.RegisterNode(merge.NewMergeNodeFactory())

	// Data
	r.RegisterNode(note.NewNoteNodeFactory())
	r.RegisterNode(command.NewCommandNodeFactory())
	r.RegisterNode(transform.NewTransformNodeFactory())

	// Network
	r.RegisterNode(httprequest.NewHTTPRequestNodeFactory())

	// Bot
	r.RegisterNode(send.NewTextNodeFactory())
	r.RegisterNode(send.NewMessageNodeFactory())

	// Custom
	r.RegisterNode(custom.NewCustomJSNodeFactory())
}
