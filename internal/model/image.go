package model

import "time"

type Image struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Username         string    `json:"username"`
	FilePath         string    `json:"-"`
	FileSize         int64     `json:"file_size"`
	ContentType      string    `json:"content_type"`
	PostID           *int64    `json:"post_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
