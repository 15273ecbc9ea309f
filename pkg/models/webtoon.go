package models

import "time"

type Webtoon struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Status    string    `json:"status,omitempty"`
	Tags      []string  `json:"tags"`
	Image     string    `json:"image,omitempty"` // data URL or http(s) URL
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebtoonPatch carries a partial update. Nil fields are left untouched.
type WebtoonPatch struct {
	Title  *string
	URL    *string
	Status *string
	Tags   []string // nil = untouched, empty = clear
	Image  *string
}
