package model

// IndexEntry is one embedded passage of a page. Entries are derived data:
// rebuildable from pages, removed with their document.
type IndexEntry struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	DocumentID string    `json:"document_id"`
	PageNumber int       `json:"page_number"`
	ChunkPos   int       `json:"chunk_pos"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// PageRef is a retrieval hit: a passage tagged with its source location.
type PageRef struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

type EmbeddingCache struct {
	ModelName   string
	TaskType    string
	ContentHash string
	Embedding   []float32
	Ctime       int64
}
