package model

// Document processing states. Only the ingestion pipeline moves a document
// forward; failed is terminal until the user re-uploads.
const (
	DocumentStatusQueued     = "queued"
	DocumentStatusProcessing = "processing"
	DocumentStatusProcessed  = "processed"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID                string `json:"id"`
	ProjectID         string `json:"project_id"`
	Name              string `json:"name"`
	FileKey           string `json:"-"`
	Status            string `json:"status"`
	ProcessingMessage string `json:"processing_message"`
	Ctime             int64  `json:"created_at"`
}

type Page struct {
	ID             string  `json:"id"`
	DocumentID     string  `json:"document_id"`
	PageNumber     int     `json:"page_number"`
	OriginalText   string  `json:"original_text"`
	TranslatedText *string `json:"translated_text"`
}
