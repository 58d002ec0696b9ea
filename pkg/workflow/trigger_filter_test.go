package workflow

import (
	"testing"

	"github.com/dukex/renflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatMessage(text string, mine bool) *models.ChatMessage {
	return &models.ChatMessage{
		MessageID:   "1",
		MessageType: models.MessageTypeGroup,
		SelfID:      10,
		GroupID:     models.Int64(20),
		UserID:      models.Int64(30),
		RawMessage:  text,
		Message:     []models.Segment{models.TextSegment(text)},
		IsMine:      mine,
	}
}

func TestShouldRun_Regex(t *testing.T) {
	params := map[string]any{"filterParam": "$", "filterMode": "regex", "regexExpression": "^hello"}

	ok, err := ShouldRun(params, chatMessage("hello world", false))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ShouldRun(params, chatMessage("goodbye", false))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldRun_InvalidRegex(t *testing.T) {
	params := map[string]any{"filterMode": "regex", "regexExpression": "("}

	_, err := ShouldRun(params, chatMessage("x", false))
	require.Error(t, err)
	assert.ErrorIs(t, err, &TriggerEvalError{})
}

func TestShouldRun_Shell(t *testing.T) {
	params := map[string]any{
		"filterParam":  "$",
		"filterMode":   "shell",
		"prefix":       "/",
		"shellCommand": "weather today",
	}

	tests := []struct {
		text string
		want bool
	}{
		{"/weather today --city 'New York'", true},
		{"/weather today", true},
		{"/ weather today extra", true},
		{"/weather", false},
		{"/weather tomorrow", false},
		{"weather today", false},
		{"/weather 'today", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ok, err := ShouldRun(params, chatMessage(tt.text, false))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestShouldRun_SelfMessages(t *testing.T) {
	params := map[string]any{"filterMode": "regex", "regexExpression": "."}

	_, err := ShouldRun(params, chatMessage("mine", true))
	require.ErrorIs(t, err, ErrSelfMessage)

	params["includeSelf"] = true

	ok, err := ShouldRun(params, chatMessage("mine", true))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldRun_NonMessagePayloads(t *testing.T) {
	params := map[string]any{"filterMode": "regex", "regexExpression": "."}

	ok, err := ShouldRun(params, map[string]any{"rawMessage": "hi"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ShouldRun(nil, chatMessage("hi", false))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldRun_FilterParamMustSelectOne(t *testing.T) {
	msg := chatMessage("hi", false)

	ok, err := ShouldRun(map[string]any{"filterParam": "$.sender", "filterMode": "regex", "regexExpression": "hi"}, msg)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ShouldRun(map[string]any{"filterParam": "$.missing", "filterMode": "regex", "regexExpression": "hi"}, msg)
	require.NoError(t, err)
	assert.False(t, ok)

	msg.Message = append(msg.Message, models.TextSegment("!"))

	ok, err = ShouldRun(map[string]any{"filterParam": "$.message[*]", "filterMode": "regex", "regexExpression": "hi"}, msg)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ShouldRun(map[string]any{"filterParam": "$..text"}, msg)
	require.ErrorIs(t, err, ErrUnsupportedFilterPath)
}

func TestGJSONPath(t *testing.T) {
	tests := []struct {
		in       string
		path     string
		wildcard bool
	}{
		{"", "", false},
		{"$", "", false},
		{"$.sender.userId", "sender.userId", false},
		{"$.message[0].data", "message.0.data", false},
		{"$['sender']['nickname']", "sender.nickname", false},
		{"$.message[*]", "message", true},
		{"$.message[*].type", "message.#.type", true},
		{"$[*]", "@this", true},
		{"$.message.*", "message", true},
		{"$['a.b']", `a\.b`, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path, wildcard, err := gjsonPath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.wildcard, wildcard)
		})
	}
}
