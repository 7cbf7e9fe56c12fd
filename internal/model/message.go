package model

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// MessageSource is the machine-readable citation sidecar carried next to the
// inline text markers of an assistant message.
type MessageSource struct {
	DocumentID     string `json:"document_id"`
	Page           int    `json:"page"`
	Name           string `json:"name"`
	ContentSnippet string `json:"content_snippet"`
}

type Message struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   []MessageSource `json:"sources"`
	Ctime     int64           `json:"created_at"`
}
