// Package htmlrender provides the html-render node, which screenshots an
// HTML template with headless Chrome.
package htmlrender

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/template"
)

const (
	NodeType = "html-render"

	DefaultWidth   = 800
	DefaultHeight  = 600
	DefaultTimeout = 30 * time.Second

	dataURLPrefix = "data:image/png;base64,"
)

// Renderer turns an HTML document into PNG bytes of a width x height
// viewport.
type Renderer interface {
	Render(ctx context.Context, html string, width, height int) ([]byte, error)
}

// ChromeRenderer starts a headless Chrome per render. It needs a Chrome or
// Chromium binary on PATH.
type ChromeRenderer struct{}

func (ChromeRenderer) Render(ctx context.Context, html string, width, height int) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var buf []byte

	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(html))),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, err
	}

	return buf, nil
}

type HTMLRenderNode struct {
	id       string
	template string
	width    int
	height   int
	timeout  time.Duration
	renderer Renderer
}

func NewHTMLRenderNode(id string, config map[string]any, renderer Renderer) (*HTMLRenderNode, error) {
	tpl := nodes.String(config, "template", "")
	if tpl == "" {
		return nil, errors.New("missing required field 'template'")
	}

	if renderer == nil {
		renderer = ChromeRenderer{}
	}

	return &HTMLRenderNode{
		id:       id,
		template: tpl,
		width:    int(nodes.Number(config, "width", DefaultWidth)),
		height:   int(nodes.Number(config, "height", DefaultHeight)),
		timeout:  nodes.Millis(config, "timeout", DefaultTimeout),
		renderer: renderer,
	}, nil
}

func (n *HTMLRenderNode) ID() string   { return n.id }
func (n *HTMLRenderNode) Type() string { return NodeType }

// Execute fills {path} placeholders, leaving unresolved ones such as CSS
// blocks untouched, then renders the page.
func (n *HTMLRenderNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	scope := template.Scope{Input: input}
	if nctx != nil {
		scope.State = nctx.State
	}

	html, err := template.Fill(n.template, scope)
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	png, err := n.renderer.Render(ctx, html, n.width, n.height)
	if err != nil {
		return models.Failed(fmt.Sprintf("render failed: %v", err)), nil
	}

	nctx.Log(models.LogLevelLog, fmt.Sprintf("rendered %d bytes", len(png)), nil)

	return models.Succeeded(map[string]any{
		"image": dataURLPrefix + base64.StdEncoding.EncodeToString(png),
	}), nil
}
