package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []*model.Message
}

func (f *fakeMessageStore) Create(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMessageStore) ListByProject(ctx context.Context, projectID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.ProjectID == projectID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListRecent(ctx context.Context, projectID string, limit int) ([]model.Message, error) {
	all, _ := f.ListByProject(ctx, projectID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeMessageStore) LastAssistant(ctx context.Context, projectID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ProjectID == projectID && f.messages[i].Role == model.MessageRoleAssistant {
			return f.messages[i], nil
		}
	}
	return nil, appErr.ErrNotFound
}

type fakeRetriever struct {
	mu      sync.Mutex
	refs    []model.PageRef
	err     error
	queries []string
}

func (f *fakeRetriever) Query(ctx context.Context, projectID string, text string, k int) ([]model.PageRef, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.refs) > k {
		return f.refs[:k], nil
	}
	return f.refs, nil
}

type fakeAnswerer struct {
	answer       string
	answerErr    error
	suggestions  []string
	suggestErr   error
	suggestCalls int
	onAnswer     func()
}

func (f *fakeAnswerer) Answer(ctx context.Context, grounding string, history string, question string) (string, error) {
	if f.onAnswer != nil {
		f.onAnswer()
	}
	if f.answerErr != nil {
		return "", f.answerErr
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "echo: " + question, nil
}

func (f *fakeAnswerer) SuggestQuestions(ctx context.Context, grounding string, count int) ([]string, error) {
	f.suggestCalls++
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.suggestions, nil
}

type fakeCounter struct {
	n   int
	err error
}

func (f *fakeCounter) CountProcessed(ctx context.Context, projectID string) (int, error) {
	return f.n, f.err
}

func refFixture() []model.PageRef {
	return []model.PageRef{
		{DocumentID: "docA", DocumentName: "a.pdf", PageNumber: 3, Content: strings.Repeat("alpha ", 30), Score: 0.9},
		{DocumentID: "docB", DocumentName: "b.pdf", PageNumber: 1, Content: "short beta content", Score: 0.8},
	}
}

func TestAskPersistsPairAndSources(t *testing.T) {
	store := &fakeMessageStore{}
	answer := "Alpha is covered here. [Document ID: docA, Page: 3]"
	svc := NewChatService(store, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{answer: answer}, &fakeCounter{n: 1}, 8, 5)

	msg, err := svc.Ask(context.Background(), "proj1", "what is alpha?")
	require.NoError(t, err)
	assert.Equal(t, model.MessageRoleAssistant, msg.Role)
	assert.Equal(t, answer, msg.Content)

	require.Len(t, store.messages, 2)
	assert.Equal(t, model.MessageRoleUser, store.messages[0].Role)
	assert.Equal(t, "what is alpha?", store.messages[0].Content)

	require.Len(t, msg.Sources, 1)
	src := msg.Sources[0]
	assert.Equal(t, "docA", src.DocumentID)
	assert.Equal(t, 3, src.Page)
	assert.Equal(t, "a.pdf", src.Name)
	assert.True(t, strings.HasSuffix(src.ContentSnippet, "..."))
	assert.Len(t, []rune(strings.TrimSuffix(src.ContentSnippet, "...")), 100)
}

func TestAskShortContentSnippetNotTruncated(t *testing.T) {
	store := &fakeMessageStore{}
	answer := "Beta. [Document ID: docB, Page: 1]"
	svc := NewChatService(store, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{answer: answer}, &fakeCounter{n: 1}, 8, 5)

	msg, err := svc.Ask(context.Background(), "proj1", "beta?")
	require.NoError(t, err)
	require.Len(t, msg.Sources, 1)
	assert.Equal(t, "short beta content", msg.Sources[0].ContentSnippet)
}

func TestAskEmptyCorpusAnswersWithoutSources(t *testing.T) {
	store := &fakeMessageStore{}
	svc := NewChatService(store, &fakeRetriever{}, &fakeAnswerer{answer: "I do not have documents to cite."}, &fakeCounter{n: 0}, 8, 5)

	msg, err := svc.Ask(context.Background(), "proj1", "anything there?")
	require.NoError(t, err)
	assert.Empty(t, msg.Sources)
}

func TestAskGenerationFailureKeepsQuestionOnly(t *testing.T) {
	store := &fakeMessageStore{}
	svc := NewChatService(store, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{answerErr: ai.ErrUnavailable}, &fakeCounter{n: 1}, 8, 5)

	_, err := svc.Ask(context.Background(), "proj1", "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr.ErrAIUnavailable)
	require.Len(t, store.messages, 1)
	assert.Equal(t, model.MessageRoleUser, store.messages[0].Role)
}

func TestAskClientDisconnectStillPersistsAnswer(t *testing.T) {
	store := &fakeMessageStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &fakeAnswerer{answer: "The answer survived.", onAnswer: cancel}
	svc := NewChatService(store, &fakeRetriever{refs: refFixture()}, gen, &fakeCounter{n: 1}, 8, 5)

	msg, err := svc.Ask(ctx, "proj1", "slow question")
	require.NoError(t, err)
	assert.Equal(t, "The answer survived.", msg.Content)
	require.Len(t, store.messages, 2)
	assert.Equal(t, model.MessageRoleAssistant, store.messages[1].Role)
}

func TestAskTimeoutMapped(t *testing.T) {
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{answerErr: context.DeadlineExceeded}, &fakeCounter{n: 1}, 8, 5)

	_, err := svc.Ask(context.Background(), "proj1", "q")
	assert.ErrorIs(t, err, appErr.ErrTimeout)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{}, &fakeAnswerer{}, &fakeCounter{}, 8, 5)
	_, err := svc.Ask(context.Background(), "proj1", "   ")
	assert.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestProjectLockStableAndBounded(t *testing.T) {
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{}, &fakeAnswerer{}, &fakeCounter{}, 8, 5)

	assert.Same(t, svc.projectLock("proj1"), svc.projectLock("proj1"))

	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10*askLockStripes; i++ {
		seen[svc.projectLock(fmt.Sprintf("project-%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), askLockStripes)
}

func TestAskConcurrentPairsStayAdjacent(t *testing.T) {
	store := &fakeMessageStore{}
	svc := NewChatService(store, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{}, &fakeCounter{n: 1}, 8, 5)

	const askers = 8
	var wg sync.WaitGroup
	for i := 0; i < askers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Ask(context.Background(), "proj1", fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.messages, askers*2)
	for i := 0; i < len(store.messages); i += 2 {
		user := store.messages[i]
		assistant := store.messages[i+1]
		require.Equal(t, model.MessageRoleUser, user.Role)
		require.Equal(t, model.MessageRoleAssistant, assistant.Role)
		assert.Equal(t, "echo: "+user.Content, assistant.Content)
	}
}

func TestSuggestQuestionsEmptyCorpusReturnsDefaults(t *testing.T) {
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{}, &fakeAnswerer{}, &fakeCounter{n: 0}, 8, 5)
	got := svc.SuggestQuestions(context.Background(), "proj1")
	assert.Equal(t, defaultSuggestions, got)
}

func TestSuggestQuestionsGenerationFailureReturnsEmpty(t *testing.T) {
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{suggestErr: errors.New("down")}, &fakeCounter{n: 2}, 8, 5)
	got := svc.SuggestQuestions(context.Background(), "proj1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSuggestQuestionsRetrievalFailureReturnsEmpty(t *testing.T) {
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{err: errors.New("index down")}, &fakeAnswerer{}, &fakeCounter{n: 2}, 8, 5)
	got := svc.SuggestQuestions(context.Background(), "proj1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSuggestQuestionsHappyPath(t *testing.T) {
	want := []string{"What is alpha?", "How does beta relate?", "Summarize chapter 1"}
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{refs: refFixture()}, &fakeAnswerer{suggestions: want}, &fakeCounter{n: 2}, 8, 5)
	got := svc.SuggestQuestions(context.Background(), "proj1")
	assert.Equal(t, want, got)
}

func TestSuggestQuestionsSeededByLastAssistantMessage(t *testing.T) {
	store := &fakeMessageStore{messages: []*model.Message{
		{ID: "m1", ProjectID: "proj1", Role: model.MessageRoleUser, Content: "what is alpha?"},
		{ID: "m2", ProjectID: "proj1", Role: model.MessageRoleAssistant, Content: "Alpha is the first topic."},
	}}
	retriever := &fakeRetriever{refs: refFixture()}
	svc := NewChatService(store, retriever, &fakeAnswerer{suggestions: []string{"q1"}}, &fakeCounter{n: 2}, 8, 5)

	svc.SuggestQuestions(context.Background(), "proj1")
	require.Len(t, retriever.queries, 1)
	assert.Equal(t, "Alpha is the first topic.", retriever.queries[0])
}

func TestSuggestQuestionsGenericSeedWithoutHistory(t *testing.T) {
	retriever := &fakeRetriever{refs: refFixture()}
	svc := NewChatService(&fakeMessageStore{}, retriever, &fakeAnswerer{suggestions: []string{"q1"}}, &fakeCounter{n: 2}, 8, 5)

	svc.SuggestQuestions(context.Background(), "proj1")
	require.Len(t, retriever.queries, 1)
	assert.Equal(t, suggestSeedQuery, retriever.queries[0])
}

func TestSuggestQuestionsCachedAcrossCalls(t *testing.T) {
	gen := &fakeAnswerer{suggestions: []string{"q1"}}
	svc := NewChatService(&fakeMessageStore{}, &fakeRetriever{refs: refFixture()}, gen, &fakeCounter{n: 2}, 8, 5)

	first := svc.SuggestQuestions(context.Background(), "proj1")
	second := svc.SuggestQuestions(context.Background(), "proj1")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.suggestCalls)
}
