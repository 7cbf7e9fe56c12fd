package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMarkdownEmpty(t *testing.T) {
	assert.Empty(t, ChunkMarkdown(""))
}

func TestChunkMarkdownKeepsHeadingContext(t *testing.T) {
	md := "# Photosynthesis\n\nPlants convert light into energy.\n\n## Dark reactions\n\nThe Calvin cycle fixes carbon."
	chunks := ChunkMarkdown(md)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "Heading: Photosynthesis")
	assert.Contains(t, chunks[0].Content, "light into energy")
	assert.Contains(t, chunks[1].Content, "Heading: Dark reactions")
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestChunkMarkdownSplitsLongSections(t *testing.T) {
	para := strings.Repeat("word ", 120)
	md := "# Long\n\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para
	chunks := ChunkMarkdown(md)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		// overlap can push a chunk slightly past the cap, never double it
		assert.Less(t, c.Tokens, 2*chunkMaxTokens)
	}
}

func TestChunkMarkdownOverlap(t *testing.T) {
	var parts []string
	for i := 0; i < 10; i++ {
		parts = append(parts, "sentence-"+strings.Repeat("x", i+1)+" "+strings.Repeat("filler ", 60))
	}
	md := strings.Join(parts, "\n\n")
	chunks := ChunkMarkdown(md)
	require.Greater(t, len(chunks), 1)
	// the tail of chunk n should reappear at the head of chunk n+1
	first := chunks[0].Content
	lastLine := first[strings.LastIndex(first, "sentence-"):]
	marker := lastLine[:strings.Index(lastLine, " ")]
	assert.Contains(t, chunks[1].Content, marker)
}

func TestChunkMarkdownCodeBlock(t *testing.T) {
	md := "## Usage\n\nInstall it first.\n\n```go\nfunc main() {}\n```"
	chunks := ChunkMarkdown(md)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "```go")
	assert.Contains(t, chunks[0].Content, "func main() {}")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 2, estimateTokens("two words"))
	assert.Equal(t, 3, estimateTokens("한글"))
	assert.Equal(t, 0, estimateTokens(""))
}
