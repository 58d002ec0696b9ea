package models

import (
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalState_MergeObject(t *testing.T) {
	s := NewGlobalState(map[string]any{"n1": map[string]any{"a": 1, "b": 1}})

	s.MergeObject("n1", map[string]any{"b": 2, "c": 3})

	v, ok := s.Get("n1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, v)
}

func TestGlobalState_MergeObjectReplacesScalar(t *testing.T) {
	s := NewGlobalState(nil)
	s.Set("n1", "text")

	s.MergeObject("n1", map[string]any{"a": 1})

	v, _ := s.Get("n1")
	assert.Equal(t, map[string]any{"a": 1}, v)
}

func TestGlobalState_SnapshotIsCopy(t *testing.T) {
	s := NewGlobalState(map[string]any{"x": 1})

	snap := s.Snapshot()
	s.Set("y", 2)

	assert.NotContains(t, snap, "y")
}

func TestGlobalState_ConcurrentWrites(t *testing.T) {
	s := NewGlobalState(nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.Set("k", i)
			s.MergeObject("obj", map[string]any{"v": i})
		}()
	}

	wg.Wait()

	_, ok := s.Get("k")
	assert.True(t, ok)
}

func TestChatMessage_TextContent(t *testing.T) {
	m := &ChatMessage{Message: []Segment{
		TextSegment("hello "),
		ImageSegment("http://x/y.png"),
		TextSegment("world"),
	}}

	assert.Equal(t, "hello world", m.TextContent())
}

func TestTrigger_Matches(t *testing.T) {
	tr := Trigger{Name: "message", Label: "收到消息"}

	assert.True(t, tr.Matches("message"))
	assert.True(t, tr.Matches("收到消息"))
	assert.False(t, tr.Matches("message_mine"))
	assert.False(t, Trigger{}.Matches(""))
}

func TestEditorEdge_Condition(t *testing.T) {
	assert.Equal(t, "yes", (&EditorEdge{Data: map[string]any{"condition": "yes"}}).Condition())
	assert.Equal(t, "true", (&EditorEdge{Data: map[string]any{"condition": true}}).Condition())
	assert.Empty(t, (&EditorEdge{}).Condition())
}

func TestBotConfig_Validation(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.Struct(BotConfig{ID: "b1", Type: "napcat", Address: "ws://127.0.0.1:3001"})
	require.NoError(t, err)

	err = v.Struct(BotConfig{ID: "b1", Type: "napcat"})
	require.Error(t, err)
}
