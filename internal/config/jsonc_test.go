package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Len(t, normalized, len(input))
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")

	var out map[string]any
	require.NoError(t, decodeStrict(normalized, &out))
	require.Equal(t, []any{"one", "two"}, out["items"])
}

func TestNormalizeJSONCKeepsCommentLikeTextInsideStrings(t *testing.T) {
	normalized, err := normalizeJSONC(`{"value":"contains // and /* comment-like */ text, }",}`)
	require.NoError(t, err)
	require.Contains(t, normalized, `"contains // and /* comment-like */ text, }"`)
}

func TestNormalizeJSONCHandlesEscapedQuotes(t *testing.T) {
	normalized, err := normalizeJSONC(`{"v":"say \"hi\" // still string"} // tail`)
	require.NoError(t, err)
	require.Contains(t, normalized, `\"hi\" // still string`)
	require.NotContains(t, normalized, "tail")
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.ErrorContains(t, err, "unterminated block comment")
}

func TestDecodeStrictRejectsExtraPayload(t *testing.T) {
	var out map[string]any
	err := decodeStrict(`{"one":1}{"two":2}`, &out)
	require.ErrorContains(t, err, "multiple JSON values")
}

func TestLineCol(t *testing.T) {
	content := "line1\nline2\nline3"

	line, col := lineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = lineCol(content, 8)
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = lineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}
