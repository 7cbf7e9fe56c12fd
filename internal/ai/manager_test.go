package ai

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionDrafts(t *testing.T) {
	raw := "```json\n[{\"question_text\": \"What is RAG?\", \"options\": [\"A\", \"B\"], \"answer\": \"A\"}]\n```"
	drafts, err := ParseQuestionDrafts(raw)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "What is RAG?", drafts[0].QuestionText)
	assert.Equal(t, []string{"A", "B"}, drafts[0].Options)
	assert.Equal(t, "A", drafts[0].Answer)
}

func TestParseQuestionDraftsBadJSON(t *testing.T) {
	_, err := ParseQuestionDrafts("I cannot generate questions from this.")
	assert.Error(t, err)
}

func TestParseStringArray(t *testing.T) {
	got, err := ParseStringArray("```json\n[\"Q1\", \"Q2\", \"Q3\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, got)
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	korean := strings.Repeat("안녕하세요", 100) // 15 bytes per repetition

	for _, max := range []int{1, 2, 3, 4, 16, 17, 100, 1499, 1500} {
		got := truncateOnRuneBoundary(korean, max)
		assert.LessOrEqual(t, len(got), max)
		assert.True(t, utf8.ValidString(got), "max=%d", max)
	}

	assert.Equal(t, "abc", truncateOnRuneBoundary("abcdef", 3))
	assert.Equal(t, "short", truncateOnRuneBoundary("short", 100))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "# Title", stripFences("```markdown\n# Title\n```"))
	assert.Equal(t, "plain", stripFences("plain"))
}
