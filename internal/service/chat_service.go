package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/model"
	"github.com/lectern-app/lectern/internal/pkg/citation"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

const (
	snippetLen       = 100
	historyWindow    = 20
	suggestSeedQuery = "summary overview main topics"
	suggestCacheSize = 512
	suggestCount     = 3

	// persistTimeout bounds the writes that finish a completed generation
	// after the requesting client has gone away.
	persistTimeout = 10 * time.Second

	askLockStripes = 64
)

var defaultSuggestions = []string{
	"What are the main topics covered in these documents?",
	"Can you summarize the key points?",
	"What should I focus on when studying this material?",
}

type messageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	ListByProject(ctx context.Context, projectID string) ([]model.Message, error)
	ListRecent(ctx context.Context, projectID string, limit int) ([]model.Message, error)
	LastAssistant(ctx context.Context, projectID string) (*model.Message, error)
}

type pageRetriever interface {
	Query(ctx context.Context, projectID string, text string, k int) ([]model.PageRef, error)
}

type answerer interface {
	Answer(ctx context.Context, grounding string, history string, question string) (string, error)
	SuggestQuestions(ctx context.Context, grounding string, count int) ([]string, error)
}

type processedCounter interface {
	CountProcessed(ctx context.Context, projectID string) (int, error)
}

// ChatService answers questions over a project's indexed documents and keeps
// the per-project conversation log.
type ChatService struct {
	messages messageStore
	index    pageRetriever
	ai       answerer
	docs     processedCounter

	chatTopK    int
	suggestTopK int

	// suggestCache avoids re-running retrieval and generation when a client
	// re-opens the same project shortly after.
	suggestCache *expirable.LRU[string, []string]

	// askLocks are striped by project id so memory stays fixed no matter how
	// many projects come and go over the server's lifetime.
	askLocks [askLockStripes]sync.Mutex
}

func NewChatService(messages messageStore, index pageRetriever, aiSvc answerer, docs processedCounter, chatTopK, suggestTopK int) *ChatService {
	return &ChatService{
		messages:     messages,
		index:        index,
		ai:           aiSvc,
		docs:         docs,
		chatTopK:     chatTopK,
		suggestTopK:  suggestTopK,
		suggestCache: expirable.NewLRU[string, []string](suggestCacheSize, nil, 10*time.Minute),
	}
}

// projectLock serializes asks within one project so that each user message
// and its assistant reply land as an adjacent pair in the log. Stripe
// collisions only over-serialize across projects, never under-serialize
// within one.
func (s *ChatService) projectLock(projectID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(projectID))
	return &s.askLocks[h.Sum32()%askLockStripes]
}

// Ask records the question, retrieves grounding pages, generates a cited
// answer and records it. The user message persists before generation starts:
// a failed generation leaves the question in the log for the client to retry
// against, with no assistant reply.
func (s *ChatService) Ask(ctx context.Context, projectID string, question string) (*model.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", appErr.ErrInvalid)
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.messages.ListRecent(ctx, projectID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := &model.Message{
		ID:        newID(),
		ProjectID: projectID,
		Role:      model.MessageRoleUser,
		Content:   question,
		Ctime:     nowMilli(),
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist question: %w", err)
	}

	refs, err := s.index.Query(ctx, projectID, question, s.chatTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve grounding: %w", err)
	}

	answer, err := s.ai.Answer(ctx, buildGrounding(refs), renderHistory(history), question)
	if err != nil {
		return nil, mapGenerationErr(err)
	}

	// The client may have disconnected while the model was generating. A
	// completed answer is still written; only the response is lost.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	assistantMsg := &model.Message{
		ID:        newID(),
		ProjectID: projectID,
		Role:      model.MessageRoleAssistant,
		Content:   answer,
		Sources:   buildSources(answer, refs),
		Ctime:     nowMilli(),
	}
	if err := s.messages.Create(persistCtx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}
	return assistantMsg, nil
}

// History returns the full conversation in chronological order.
func (s *ChatService) History(ctx context.Context, projectID string) ([]model.Message, error) {
	return s.messages.ListByProject(ctx, projectID)
}

// SuggestQuestions proposes starter questions for a project. An empty corpus
// gets fixed starters; generation failures degrade to an empty list rather
// than erroring, since the feature is purely advisory.
func (s *ChatService) SuggestQuestions(ctx context.Context, projectID string) []string {
	if cached, ok := s.suggestCache.Get(projectID); ok {
		return cached
	}
	count, err := s.docs.CountProcessed(ctx, projectID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("count processed documents failed", zap.String("project_id", projectID), zap.Error(err))
		return []string{}
	}
	if count == 0 {
		return defaultSuggestions
	}
	refs, err := s.index.Query(ctx, projectID, s.suggestSeed(ctx, projectID), s.suggestTopK)
	if err != nil {
		logutil.GetLogger(ctx).Warn("suggestion retrieval failed", zap.String("project_id", projectID), zap.Error(err))
		return []string{}
	}
	if len(refs) == 0 {
		return defaultSuggestions
	}
	questions, err := s.ai.SuggestQuestions(ctx, buildGrounding(refs), suggestCount)
	if err != nil {
		logutil.GetLogger(ctx).Warn("suggest questions failed", zap.String("project_id", projectID), zap.Error(err))
		return []string{}
	}
	s.suggestCache.Add(projectID, questions)
	return questions
}

// suggestSeed steers suggestion retrieval toward whatever the conversation
// last covered, falling back to a generic probe on a fresh project.
func (s *ChatService) suggestSeed(ctx context.Context, projectID string) string {
	last, err := s.messages.LastAssistant(ctx, projectID)
	if err != nil || strings.TrimSpace(last.Content) == "" {
		return suggestSeedQuery
	}
	return last.Content
}

// buildGrounding renders retrieved pages as context lines carrying the
// citation marker the model is told to repeat.
func buildGrounding(refs []model.PageRef) string {
	var sb strings.Builder
	for _, ref := range refs {
		sb.WriteString(citation.Format(ref.DocumentID, ref.PageNumber))
		sb.WriteString(" ")
		sb.WriteString(ref.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// buildSources keeps only the retrieved pages the answer actually cites,
// deduplicated per document+page, in citation order.
func buildSources(answer string, refs []model.PageRef) []model.MessageSource {
	cited := citation.Parse(answer)
	if len(cited) == 0 {
		return nil
	}
	byKey := make(map[string]model.PageRef, len(refs))
	for _, ref := range refs {
		byKey[fmt.Sprintf("%s:%d", ref.DocumentID, ref.PageNumber)] = ref
	}
	seen := make(map[string]struct{})
	var sources []model.MessageSource
	for _, c := range cited {
		for page := c.PageStart; page <= c.PageEnd; page++ {
			key := fmt.Sprintf("%s:%d", c.DocumentID, page)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			ref, ok := byKey[key]
			if !ok {
				continue
			}
			sources = append(sources, model.MessageSource{
				DocumentID:     ref.DocumentID,
				Page:           ref.PageNumber,
				Name:           ref.DocumentName,
				ContentSnippet: snippet(ref.Content),
			})
		}
	}
	return sources
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLen {
		return content
	}
	return string(runes[:snippetLen]) + "..."
}

func renderHistory(messages []model.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func mapGenerationErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: generation timed out", appErr.ErrTimeout)
	case errors.Is(err, ai.ErrUnavailable):
		return fmt.Errorf("%w: %v", appErr.ErrAIUnavailable, err)
	default:
		return err
	}
}
