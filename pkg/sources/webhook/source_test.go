package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/testutil"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hooked(id, path, method string) *models.CompiledWorkflow {
	wf := testutil.CreateTestWorkflow("a", testutil.CompiledNode("a", "note", nil))
	wf.ID = id
	wf.Trigger = models.Trigger{Type: "webhook", Params: map[string]any{"path": path, "method": method}}

	return wf
}

type delivery struct {
	ids     []string
	payload map[string]any
}

func newApp(s *Source) *fiber.App {
	app := fiber.New()
	app.All(Prefix+"/*", s.Handle)

	return app
}

func TestNew(t *testing.T) {
	s, err := New([]*models.CompiledWorkflow{
		hooked("a", "/deploy", ""),
		hooked("b", "deploy/", "post"),
		hooked("c", "", ""),
		testutil.CreateTestWorkflow("a", testutil.CompiledNode("a", "note", nil)),
	}, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len())
	assert.Len(t, s.routes["/deploy"].workflows, 2)

	_, err = New([]*models.CompiledWorkflow{hooked("a", "/x", "GET"), hooked("b", "/x", "POST")}, slog.Default())
	require.Error(t, err)
}

func TestSource_Handle(t *testing.T) {
	s, err := New([]*models.CompiledWorkflow{hooked("deployer", "/deploy", "")}, slog.Default())
	require.NoError(t, err)

	got := make(chan delivery, 1)

	require.NoError(t, s.Start(t.Context(), func(_ context.Context, event string, wfs []*models.CompiledWorkflow, p any) {
		assert.Equal(t, EventName, event)

		payload, _ := p.(map[string]any)
		got <- delivery{ids: []string{wfs[0].ID}, payload: payload}
	}))

	app := newApp(s)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/deploy?env=prod", strings.NewReader(`{"ref":"main"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case d := <-got:
		assert.Equal(t, []string{"deployer"}, d.ids)
		assert.Equal(t, map[string]any{"ref": "main"}, d.payload["body"])
		assert.Equal(t, map[string]any{"env": "prod"}, d.payload["query"])
		assert.Equal(t, http.MethodPost, d.payload["method"])
		assert.Equal(t, "/deploy", d.payload["path"])
	case <-time.After(3 * time.Second):
		t.Fatal("webhook did not fire")
	}

	require.NoError(t, s.Stop(t.Context()))
}

func TestSource_HandleRejects(t *testing.T) {
	s, err := New([]*models.CompiledWorkflow{hooked("deployer", "/deploy", "")}, slog.Default())
	require.NoError(t, err)

	app := newApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhooks/deploy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, s.Start(t.Context(), func(context.Context, string, []*models.CompiledWorkflow, any) {}))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/deploy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/webhooks/other", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, s.Stop(t.Context()))
	require.NoError(t, s.Stop(t.Context()))
}
