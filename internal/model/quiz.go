package model

const (
	QuizTypeMultipleChoice = "MULTIPLE_CHOICE"
	QuizTypeFlashcard      = "FLASHCARD"
)

type Question struct {
	ID           string   `json:"id"`
	QuizID       string   `json:"quiz_id"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
}

type Quiz struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Title     string     `json:"title"`
	QuizType  string     `json:"quiz_type"`
	Questions []Question `json:"questions"`
	Ctime     int64      `json:"created_at"`
}
