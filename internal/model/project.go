package model

type Project struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Ctime       int64  `json:"created_at"`
	Mtime       int64  `json:"updated_at"`
}
