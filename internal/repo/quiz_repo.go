package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lectern-app/lectern/internal/model"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

type QuizRepo struct {
	db *sql.DB
}

func NewQuizRepo(db *sql.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// Create persists a quiz and all its questions in one transaction, so no
// reader ever lists a quiz with a partial question set.
func (r *QuizRepo) Create(ctx context.Context, quiz *model.Quiz) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const quizInsert = `
		INSERT INTO quizzes (id, project_id, title, quiz_type, ctime)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, quizInsert, quiz.ID, quiz.ProjectID, quiz.Title, quiz.QuizType, quiz.Ctime); err != nil {
		return err
	}
	const questionInsert = `
		INSERT INTO questions (id, quiz_id, question_text, options, answer, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, q := range quiz.Questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		blob, err := json.Marshal(options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, questionInsert, q.ID, quiz.ID, q.QuestionText, blob, q.Answer, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *QuizRepo) ListByProject(ctx context.Context, projectID string) ([]model.Quiz, error) {
	const query = `
		SELECT id, project_id, title, quiz_type, ctime
		FROM quizzes
		WHERE project_id = $1
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	quizzes := make([]model.Quiz, 0)
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Title, &q.QuizType, &q.Ctime); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range quizzes {
		questions, err := r.listQuestions(ctx, quizzes[i].ID)
		if err != nil {
			return nil, err
		}
		quizzes[i].Questions = questions
	}
	return quizzes, nil
}

func (r *QuizRepo) Get(ctx context.Context, projectID, quizID string) (*model.Quiz, error) {
	const query = `
		SELECT id, project_id, title, quiz_type, ctime
		FROM quizzes
		WHERE id = $1 AND project_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, quizID, projectID)
	var q model.Quiz
	if err := row.Scan(&q.ID, &q.ProjectID, &q.Title, &q.QuizType, &q.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	questions, err := r.listQuestions(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Questions = questions
	return &q, nil
}

func (r *QuizRepo) listQuestions(ctx context.Context, quizID string) ([]model.Question, error) {
	const query = `
		SELECT id, quiz_id, question_text, options, answer
		FROM questions
		WHERE quiz_id = $1
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	questions := make([]model.Question, 0)
	for rows.Next() {
		var q model.Question
		var blob []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionText, &blob, &q.Answer); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &q.Options); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
