package htmlrender

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/dukex/renflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	html          string
	width, height int
	err           error
}

func (f *fakeRenderer) Render(_ context.Context, html string, width, height int) ([]byte, error) {
	f.html, f.width, f.height = html, width, height
	if f.err != nil {
		return nil, f.err
	}

	return []byte("png"), nil
}

func TestNewHTMLRenderNode_MissingTemplate(t *testing.T) {
	_, err := NewHTMLRenderNode("r", map[string]any{}, &fakeRenderer{})
	require.Error(t, err)
}

func TestHTMLRenderNode_Execute(t *testing.T) {
	renderer := &fakeRenderer{}

	node, err := NewHTMLRenderNode("r", map[string]any{
		"template": `<style>p { color: red }</style><p>{weather.city}: {weather.temp}</p><i>{missing.path}</i>`,
		"width":    float64(400),
	}, renderer)
	require.NoError(t, err)

	nctx, rec := testutil.NewNodeContext("r", NodeType, map[string]any{
		"weather": map[string]any{"city": "Hangzhou", "temp": 21},
	})

	result, err := node.Execute(t.Context(), nctx, nil)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, `<style>p { color: red }</style><p>Hangzhou: 21</p><i>{missing.path}</i>`, renderer.html)
	assert.Equal(t, 400, renderer.width)
	assert.Equal(t, DefaultHeight, renderer.height)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("png")), output["image"])
	assert.Len(t, rec.Messages(), 1)
}

func TestHTMLRenderNode_RenderFailure(t *testing.T) {
	node, err := NewHTMLRenderNode("r", map[string]any{"template": "<p>hi</p>"}, &fakeRenderer{err: errors.New("chrome not found")})
	require.NoError(t, err)

	result, err := node.Execute(t.Context(), nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "render failed: chrome not found")
}

func TestFactory_UsesRenderer(t *testing.T) {
	renderer := &fakeRenderer{}
	f := NewHTMLRenderNodeFactory(WithRenderer(renderer))

	assert.Equal(t, NodeType, f.ID())
	assert.Contains(t, f.Schema()["properties"], "template")

	node, err := f.Create(t.Context(), "r", map[string]any{"template": "<b>{text}</b>"})
	require.NoError(t, err)

	result, err := node.Execute(t.Context(), nil, map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "<b>hi</b>", renderer.html)
}
