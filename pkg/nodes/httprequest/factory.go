package httprequest

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
)

// HTTPRequestNodeFactory creates HTTPRequestNode instances.
type HTTPRequestNodeFactory struct{}

// Create creates a new HTTPRequestNode instance.
func (f *HTTPRequestNodeFactory) Create(ctx context.Context, id string, config map[string]any) (models.Node, error) {
	return NewHTTPRequestNode(id, config)
}

// ID returns the factory ID.
func (f *HTTPRequestNodeFactory) ID() string {
	return NodeType
}

// Name returns the factory name.
func (f *HTTPRequestNodeFactory) Name() string {
	return "HTTP Request"
}

// Description returns the factory description.
func (f *HTTPRequestNodeFactory) Description() string {
	return "Performs an HTTP request and returns the response, retrying on network failures"
}

func (f *HTTPRequestNodeFactory) Metadata() models.NodeMetadata {
	return models.NodeMetadata{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Category:    "network",
		Params: []models.ParamSpec{
			{
				Key: "method", Label: "Method", Type: "select", Default: "GET",
				Options: []any{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			{
				Key: "url", Label: "URL", Type: "input", Required: true,
				Description: "Placeholders like {trigger.userId} must all resolve",
			},
			{Key: "headers", Label: "Headers (JSON)", Type: "json", Default: "{}"},
			{Key: "query", Label: "Query (JSON)", Type: "json", Default: "{}"},
			{Key: "body", Label: "Body (JSON or text)", Type: "textarea"},
			{Key: "timeout", Label: "Timeout (ms)", Type: "number", Default: 10000},
			{Key: "retries", Label: "Retries", Type: "number", Default: 0},
			{Key: "responseType", Label: "Response type", Type: "select", Default: "json", Options: []any{"json", "text"}},
		},
		Output: map[string]any{
			"status":   "number",
			"headers":  "object",
			"body":     "any",
			"duration": "number",
		},
	}
}

// Schema returns the JSON schema for HTTP request node configuration.
func (f *HTTPRequestNodeFactory) Schema() map[string]any {
	schema := nodes.SchemaFor(f.Metadata())
	schema["required"] = []string{"url"}
	schema["examples"] = []map[string]any{
		{"url": "https://api.github.com/users/{trigger.rawMessage}", "method": "GET"},
		{
			"url":     "https://hooks.example.com/notify",
			"method":  "POST",
			"headers": `{"Authorization": "Bearer token"}`,
			"body":    `{"text": "hello"}`,
			"retries": 2,
		},
	}

	return schema
}

// NewHTTPRequestNodeFactory creates a new factory instance.
func NewHTTPRequestNodeFactory() protocol.NodeFactory {
	return &HTTPRequestNodeFactory{}
}
