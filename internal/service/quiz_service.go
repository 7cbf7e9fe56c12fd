package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

// quizProbeQuery biases retrieval toward definition-heavy passages, which
// make better quiz material than narrative ones.
const quizProbeQuery = "important key concepts and definitions summary"

const (
	minQuizQuestions = 1
	maxQuizQuestions = 20
)

type quizStore interface {
	Create(ctx context.Context, quiz *model.Quiz) error
	ListByProject(ctx context.Context, projectID string) ([]model.Quiz, error)
	Get(ctx context.Context, projectID, quizID string) (*model.Quiz, error)
}

type questionGenerator interface {
	GenerateQuestions(ctx context.Context, grounding string, num int, quizType string) ([]ai.QuestionDraft, error)
}

// QuizService generates quizzes and flashcard decks from a project's indexed
// documents and persists them for review.
type QuizService struct {
	quizzes quizStore
	index   pageRetriever
	ai      questionGenerator
	docs    processedCounter
	topK    int
}

func NewQuizService(quizzes quizStore, index pageRetriever, aiSvc questionGenerator, docs processedCounter, topK int) *QuizService {
	return &QuizService{quizzes: quizzes, index: index, ai: aiSvc, docs: docs, topK: topK}
}

// Generate builds a quiz of numQuestions over the project's processed
// documents and stores it atomically with its questions.
func (s *QuizService) Generate(ctx context.Context, projectID string, quizType string, numQuestions int) (*model.Quiz, error) {
	if quizType != model.QuizTypeMultipleChoice && quizType != model.QuizTypeFlashcard {
		return nil, fmt.Errorf("%w: unknown quiz type %q", appErr.ErrInvalid, quizType)
	}
	if numQuestions < minQuizQuestions || numQuestions > maxQuizQuestions {
		return nil, fmt.Errorf("%w: question count must be between %d and %d", appErr.ErrInvalid, minQuizQuestions, maxQuizQuestions)
	}

	count, err := s.docs.CountProcessed(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no processed documents in project", appErr.ErrInsufficientContent)
	}

	refs, err := s.index.Query(ctx, projectID, quizProbeQuery, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve quiz material: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no indexed content available", appErr.ErrInsufficientContent)
	}

	drafts, err := s.ai.GenerateQuestions(ctx, buildGrounding(interleaveByDocument(refs)), numQuestions, quizType)
	if err != nil {
		return nil, mapGenerationErr(err)
	}
	if err := validateDrafts(drafts, quizType); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		ID:        newID(),
		ProjectID: projectID,
		Title:     quizTitle(quizType, len(drafts)),
		QuizType:  quizType,
		Ctime:     nowMilli(),
	}
	for _, d := range drafts {
		quiz.Questions = append(quiz.Questions, model.Question{
			ID:           newID(),
			QuizID:       quiz.ID,
			QuestionText: d.QuestionText,
			Options:      d.Options,
			Answer:       d.Answer,
		})
	}
	// A finished quiz outlives the request that asked for it.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()
	if err := s.quizzes.Create(persistCtx, quiz); err != nil {
		return nil, fmt.Errorf("persist quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizService) List(ctx context.Context, projectID string) ([]model.Quiz, error) {
	return s.quizzes.ListByProject(ctx, projectID)
}

func (s *QuizService) Get(ctx context.Context, projectID, quizID string) (*model.Quiz, error) {
	return s.quizzes.Get(ctx, projectID, quizID)
}

// interleaveByDocument round-robins retrieved pages across documents so a
// quiz over a multi-document project is not dominated by whichever document
// scored highest.
func interleaveByDocument(refs []model.PageRef) []model.PageRef {
	var order []string
	byDoc := make(map[string][]model.PageRef)
	for _, ref := range refs {
		if _, ok := byDoc[ref.DocumentID]; !ok {
			order = append(order, ref.DocumentID)
		}
		byDoc[ref.DocumentID] = append(byDoc[ref.DocumentID], ref)
	}
	out := make([]model.PageRef, 0, len(refs))
	for len(out) < len(refs) {
		for _, docID := range order {
			if pages := byDoc[docID]; len(pages) > 0 {
				out = append(out, pages[0])
				byDoc[docID] = pages[1:]
			}
		}
	}
	return out
}

// validateDrafts rejects malformed generations before anything is persisted.
func validateDrafts(drafts []ai.QuestionDraft, quizType string) error {
	if len(drafts) == 0 {
		return fmt.Errorf("%w: model returned no questions", appErr.ErrGenerationInvalid)
	}
	for i, d := range drafts {
		if strings.TrimSpace(d.QuestionText) == "" || strings.TrimSpace(d.Answer) == "" {
			return fmt.Errorf("%w: question %d missing text or answer", appErr.ErrGenerationInvalid, i+1)
		}
		if quizType == model.QuizTypeMultipleChoice {
			if len(d.Options) < 2 {
				return fmt.Errorf("%w: question %d needs at least 2 options", appErr.ErrGenerationInvalid, i+1)
			}
			if !containsOption(d.Options, d.Answer) {
				return fmt.Errorf("%w: question %d answer not among options", appErr.ErrGenerationInvalid, i+1)
			}
		}
	}
	return nil
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if strings.TrimSpace(opt) == strings.TrimSpace(answer) {
			return true
		}
	}
	return false
}

func quizTitle(quizType string, n int) string {
	if quizType == model.QuizTypeFlashcard {
		return fmt.Sprintf("Generated Flashcards (%d Questions)", n)
	}
	return fmt.Sprintf("Generated Quiz (%d Questions)", n)
}
