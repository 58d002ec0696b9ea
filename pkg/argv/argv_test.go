package argv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   Args
	}{
		{
			name:   "positionals only",
			tokens: []string{"weather", "tokyo"},
			want:   Args{"_": []string{"weather", "tokyo"}},
		},
		{
			name:   "long flag with value",
			tokens: []string{"weather", "--city", "tokyo", "--days=3"},
			want:   Args{"_": []string{"weather"}, "city": "tokyo", "days": 3.0},
		},
		{
			name:   "boolean and negated flags",
			tokens: []string{"--verbose", "--no-color", "run"},
			want:   Args{"_": []string{"run"}, "verbose": true, "color": false},
		},
		{
			name:   "short flag cluster",
			tokens: []string{"-abc", "val", "x"},
			want:   Args{"_": []string{"x"}, "a": true, "b": true, "c": "val"},
		},
		{
			name:   "double dash stops parsing",
			tokens: []string{"echo", "--", "--not-a-flag"},
			want:   Args{"_": []string{"echo", "--not-a-flag"}},
		},
		{
			name:   "negative number is a value",
			tokens: []string{"--offset", "-5"},
			want:   Args{"_": []string{}, "offset": -5.0},
		},
		{
			name:   "repeated flag collects",
			tokens: []string{"--tag", "a", "--tag", "b"},
			want:   Args{"_": []string{}, "tag": []any{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.tokens))
		})
	}
}

func TestArgs_HasPrefix(t *testing.T) {
	msg := Parse([]string{"weather", "tokyo", "--days", "3"})

	assert.True(t, msg.HasPrefix(Parse([]string{"weather"})))
	assert.True(t, msg.HasPrefix(Parse(nil)))
	assert.False(t, msg.HasPrefix(Parse([]string{"weather", "osaka"})))
	assert.False(t, msg.HasPrefix(Parse([]string{"weather", "tokyo", "now"})))
}
