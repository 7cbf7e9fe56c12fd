package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type ManagerConfig struct {
	// Timeout bounds every generation call; zero means no bound.
	Timeout time.Duration
	// MaxInputChars truncates oversized prompts instead of failing them.
	MaxInputChars int
	// Language is the target language for translation and generated study
	// material (quiz questions, suggested questions).
	Language string
}

// Manager owns every prompt this system sends to the generation capability.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if cfg.Language == "" {
		cfg.Language = "Korean"
	}
	return &Manager{generator: generator, embedder: embedder, cfg: cfg}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) EmbedModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// Answer produces a grounded reply. Context lines are pre-tagged with
// [Document ID: ..., Page: ...] markers and the prompt instructs the model to
// repeat those markers verbatim after each sourced claim.
func (m *Manager) Answer(ctx context.Context, grounding string, history string, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a professional AI assistant that answers based on the user's uploaded documents.
Answer the [Question] using only the [Context] below.
If the answer is not in the [Context], say so honestly.
Every sentence in the [Context] is prefixed with its source marker in the exact form [Document ID: <id>, Page: <n>].
At the end of each sourced claim in your answer, repeat the matching marker verbatim, keeping the exact text "Document ID:" and "Page:". Use a page range like [Document ID: <id>, Page: 3-5] when a claim spans consecutive pages.
Markdown rules for the answer:
- Use headings of level H3 (###) or below only.

[Context]:
%s

[Conversation so far]:
%s

[Question]:
%s

[Answer]:`, grounding, history, question)
	return m.generateText(ctx, prompt)
}

// FormatPage turns raw extracted page text into clean markdown.
func (m *Manager) FormatPage(ctx context.Context, raw string) (string, error) {
	prompt := fmt.Sprintf(`You are a professional document formatter.
Convert the following raw text into clean, structured Markdown.
Guidelines:
1. Lists: Convert bullet points into proper Markdown lists.
2. Headers: Identify and apply Markdown headers.
3. Emphasis: Use bold for key terms.
4. Cleanliness: Remove excessive newlines.
5. Content: Do NOT summarize. Keep all info.
IMPORTANT: Return ONLY the raw Markdown text. Do NOT wrap in code blocks.
Raw Text: %s`, raw)
	res, err := m.generateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return stripFences(res), nil
}

// Translate renders page markdown into the configured target language,
// preserving markdown structure. Text already in the target language comes
// back unchanged.
func (m *Manager) Translate(ctx context.Context, markdown string) (string, error) {
	prompt := fmt.Sprintf(`You are a professional translator.
Translate the following Markdown text into %s.
Guidelines:
1. Structure: PRESERVE Markdown structure exactly.
2. Already translated: If the text is already in %s, return it unchanged.
3. Formatting: Insert line breaks for readability.
4. Tone: Professional.
IMPORTANT: Return ONLY the raw %s Markdown text. Do NOT wrap in code blocks.
Markdown Text: %s`, m.cfg.Language, m.cfg.Language, m.cfg.Language, markdown)
	res, err := m.generateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return stripFences(res), nil
}

// QuestionDraft is the JSON shape the generation capability is asked to emit
// for quizzes and flashcards.
type QuestionDraft struct {
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
}

func (m *Manager) GenerateQuestions(ctx context.Context, grounding string, num int, quizType string) ([]QuestionDraft, error) {
	var prompt string
	if quizType == "FLASHCARD" {
		prompt = fmt.Sprintf(`Generate %d flashcards (term/definition) in %s JSON from Context.
Format: [{"question_text": "Term", "options": [], "answer": "Definition"}]
Return ONLY the JSON array.
Context: %s`, num, m.cfg.Language, grounding)
	} else {
		prompt = fmt.Sprintf(`Generate %d multiple-choice questions in %s JSON from Context.
Format: [{"question_text": "", "options": ["A","B","C","D"], "answer": "Correct Option"}]
The "answer" value must appear verbatim in "options".
Return ONLY the JSON array.
Context: %s`, num, m.cfg.Language, grounding)
	}
	res, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseQuestionDrafts(res)
}

func (m *Manager) SuggestQuestions(ctx context.Context, grounding string, count int) ([]string, error) {
	prompt := fmt.Sprintf(`Generate %d %s follow-up questions based on the context.
Output JSON Array of strings: ["Q1", "Q2", "Q3"]
Context: %s`, count, m.cfg.Language, grounding)
	res, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	questions, err := ParseStringArray(res)
	if err != nil {
		return nil, err
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	if m.cfg.MaxInputChars > 0 && len(prompt) > m.cfg.MaxInputChars {
		prompt = truncateOnRuneBoundary(prompt, m.cfg.MaxInputChars)
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	return m.generator.Generate(ctx, prompt)
}

// truncateOnRuneBoundary cuts s to at most max bytes without splitting a
// multi-byte rune. Most of this system's content is non-ASCII.
func truncateOnRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ParseQuestionDrafts decodes a model response expected to hold a JSON array
// of question objects, tolerating markdown code fences around it.
func ParseQuestionDrafts(raw string) ([]QuestionDraft, error) {
	cleaned := stripFences(raw)
	var drafts []QuestionDraft
	if err := json.Unmarshal([]byte(cleaned), &drafts); err != nil {
		return nil, fmt.Errorf("parse question json: %w", err)
	}
	return drafts, nil
}

// ParseStringArray decodes a model response expected to hold a JSON array of
// strings, tolerating markdown code fences around it.
func ParseStringArray(raw string) ([]string, error) {
	cleaned := stripFences(raw)
	var items []string
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("parse string array json: %w", err)
	}
	return items, nil
}

func stripFences(text string) string {
	replacer := strings.NewReplacer("```json", "", "```markdown", "", "```", "")
	return strings.TrimSpace(replacer.Replace(text))
}
