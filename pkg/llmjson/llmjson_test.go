package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fields   []string
		strategy Strategy
		key      string
		want     any
	}{
		{
			name:     "clean JSON",
			raw:      `{"scene_title": "Ash"}`,
			strategy: StrategyDirect,
			key:      "scene_title",
			want:     "Ash",
		},
		{
			name:     "markdown fence",
			raw:      "```json\n{\"scene_title\": \"Ash\"}\n```",
			strategy: StrategyDirect,
			key:      "scene_title",
			want:     "Ash",
		},
		{
			name:     "raw newline inside string",
			raw:      "{\"prose\": \"line one\nline two\"}",
			strategy: StrategyEscaped,
			key:      "prose",
			want:     "line one\nline two",
		},
		{
			name:     "prose around the object",
			raw:      "Here is the plan you asked for:\n{\"pacing\": \"fast\", \"note\": \"a {brace} inside\"} hope it helps",
			strategy: StrategyBalanced,
			key:      "pacing",
			want:     "fast",
		},
		{
			name:     "aside in braces before the object",
			raw:      "Notes {draft two} follow.\n{\"pacing\": \"slow\"}",
			fields:   []string{"pacing"},
			strategy: StrategyBalanced,
			key:      "pacing",
			want:     "slow",
		},
		{
			name:     "truncated object with closed child keeps top-level fields",
			raw:      `{"score": 8.5, "approved": false, "issues": [{"kind": "pacing"}], "rewrite_instructions": "tighten the`,
			fields:   []string{"score", "approved", "issues", "rewrite_instructions"},
			strategy: StrategyFields,
			key:      "score",
			want:     8.5,
		},
		{
			name:     "truncated object falls back to fields",
			raw:      `{"score": 7.5, "approved": true, "feedback": "tighten the ending`,
			fields:   []string{"score", "approved", "feedback"},
			strategy: StrategyFields,
			key:      "score",
			want:     7.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Extract(tt.raw, tt.fields...)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Equal(t, tt.want, res.Data[tt.key])
		})
	}
}

func TestExtractNothing(t *testing.T) {
	_, err := Extract("the model refused", "prose")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestDecodeFieldFallback(t *testing.T) {
	var out struct {
		Score    float64 `json:"score"`
		Approved bool    `json:"approved"`
		Feedback string  `json:"feedback"`
		Choices  []struct {
			ID string `json:"id"`
		} `json:"choices"`
	}
	raw := `{"score": 4, "approved": false, "choices": [{"id": "a"}, {"id": "b"}], "feedback": "cut`
	strategy, err := Decode(raw, &out, "score", "approved", "feedback", "choices")
	require.NoError(t, err)
	assert.Equal(t, StrategyFields, strategy)
	assert.Equal(t, 4.0, out.Score)
	assert.False(t, out.Approved)
	assert.Equal(t, "cut", out.Feedback)
	assert.Len(t, out.Choices, 2)
}

func TestBalancedObjectIgnoresBracesInStrings(t *testing.T) {
	obj, ok := BalancedObject(`noise {"a": "}"} tail`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "}"}`, obj)
}

func TestDecodeTruncatedParentIgnoresChild(t *testing.T) {
	var out struct {
		Score  float64 `json:"score"`
		Issues []struct {
			Kind string `json:"kind"`
		} `json:"issues"`
		RewriteInstructions string `json:"rewrite_instructions"`
	}
	raw := `{"score": 8.5, "issues": [{"kind": "pacing"}], "rewrite_instructions": "tighten the`
	strategy, err := Decode(raw, &out, "score", "issues", "rewrite_instructions")
	require.NoError(t, err)
	assert.Equal(t, StrategyFields, strategy)
	assert.Equal(t, 8.5, out.Score)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "pacing", out.Issues[0].Kind)
	assert.Equal(t, "tighten the", out.RewriteInstructions)
}

func TestTopLevelObjectsStopsAtUnclosedObject(t *testing.T) {
	assert.Empty(t, TopLevelObjects(`{"outer": {"inner": 1}, "cut`))
	assert.Equal(t, []string{`{"a": 1}`, `{"b": 2}`}, TopLevelObjects(`x {"a": 1} y {"b": 2} z`))

	_, ok := BalancedObject(`{"outer": {"inner": 1}, "cut`)
	assert.False(t, ok)
}
