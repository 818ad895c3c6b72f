package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "bare", input: `{"a":1}`, want: `{"a":1}`, wantOK: true},
		{
			name:   "markdown_fence",
			input:  "```json\n{\"foods\":[]}\n```",
			want:   `{"foods":[]}`,
			wantOK: true,
		},
		{
			name:   "prose_prefix_and_suffix",
			input:  "Sure! Here is the analysis: {\"meal\":\"lunch\"} Let me know if you need more.",
			want:   `{"meal":"lunch"}`,
			wantOK: true,
		},
		{
			name:   "nested",
			input:  `x {"n":{"m":{"k":1}}} y`,
			want:   `{"n":{"m":{"k":1}}}`,
			wantOK: true,
		},
		{
			name:   "braces_inside_strings",
			input:  `{"label":"curly } brace {","q":"\"}"}`,
			want:   `{"label":"curly } brace {","q":"\"}"}`,
			wantOK: true,
		},
		{
			name:   "first_of_two",
			input:  `{"a":1} and {"b":2}`,
			want:   `{"a":1}`,
			wantOK: true,
		},
		{
			name:   "unbalanced_prefix_then_object",
			input:  `oops { not closed {"a":1}`,
			want:   `{"a":1}`,
			wantOK: true,
		},
		{name: "no_object", input: "I could not identify any food.", wantOK: false},
		{name: "only_open", input: "{{{", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObject(t *testing.T) {
	t.Parallel()

	obj, err := DecodeObject("```json\n{\"calories\": 80.5}\n```")
	require.NoError(t, err)
	assert.Equal(t, json.Number("80.5"), obj["calories"])

	_, err = DecodeObject("no json here")
	require.Error(t, err)

	obj, err = DecodeObject("Estimated values use {calories} in kcal.\n```json\n{\"meal\":\"lunch\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "lunch", obj["meal"])

	obj, err = DecodeObject(`{"outer": {oops} } then {"calories": 1}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), obj["calories"])

	_, err = DecodeObject(`{"a": tru}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse provider JSON")
}
