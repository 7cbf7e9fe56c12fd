package ai

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	chunkMaxTokens     = 400
	chunkOverlapTokens = 80
)

// Chunk is one retrievable passage cut from a page's markdown.
type Chunk struct {
	Content  string
	Position int
	Tokens   int
}

// ChunkMarkdown splits page markdown into passages along block boundaries,
// keeping the nearest H1/H2 heading as context and carrying a small tail
// overlap between adjacent passages so claims cut at a boundary stay findable.
func ChunkMarkdown(markdown string) []Chunk {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var chunks []Chunk
	var current []string
	var currentTokens int
	var heading string
	position := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, "\n\n")
		if heading != "" {
			content = "Heading: " + heading + "\n" + content
		}
		chunks = append(chunks, Chunk{
			Content:  content,
			Position: position,
			Tokens:   estimateTokens(content),
		})
		position++

		if len(current) > 1 {
			overlapTokens := 0
			var overlap []string
			for i := len(current) - 1; i >= 0; i-- {
				t := estimateTokens(current[i])
				if overlapTokens+t > chunkOverlapTokens {
					break
				}
				overlapTokens += t
				overlap = append([]string{current[i]}, overlap...)
			}
			current = overlap
			currentTokens = overlapTokens
		} else {
			current = nil
			currentTokens = 0
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level <= 2 {
				flush()
				current = nil
				currentTokens = 0
				heading = string(n.Text(reader.Source()))
				continue
			}
			txt := string(n.Text(reader.Source()))
			current = append(current, txt)
			currentTokens += estimateTokens(txt)
		case *ast.FencedCodeBlock:
			lang := string(n.Language(reader.Source()))
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(reader.Source()))
			}
			block := "```" + lang + "\n" + code.String() + "\n```"
			tokens := estimateTokens(block)
			if currentTokens > 0 && currentTokens+tokens > chunkMaxTokens {
				flush()
			}
			current = append(current, block)
			currentTokens += tokens
		default:
			txt := extractText(node, reader.Source())
			if txt == "" {
				continue
			}
			tokens := estimateTokens(txt)
			if currentTokens > 0 && currentTokens+tokens > chunkMaxTokens {
				flush()
			}
			current = append(current, txt)
			currentTokens += tokens
		}
	}
	flush()
	return chunks
}

// estimateTokens counts words for latin text plus one token per non-ASCII
// rune, which tracks CJK content closely enough for chunk budgeting.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
