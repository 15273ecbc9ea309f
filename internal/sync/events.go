package sync

import "time"

// Owned events are only delivered to websocket subscribers of that user.
type Owned interface {
	OwnerID() string
}

type WebtoonEvent struct {
	Type      string    `json:"type"` // "webtoon.create", "webtoon.update" or "webtoon.delete"
	UserID    string    `json:"user_id"`
	WebtoonID string    `json:"webtoon_id"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

func (e WebtoonEvent) OwnerID() string { return e.UserID }

// UploadEvent announces an accepted cover candidate. The data URL itself
// is not broadcast.
type UploadEvent struct {
	Type        string    `json:"type"` // "upload.accepted"
	UserID      string    `json:"user_id"`
	Form        string    `json:"form"`
	CandidateID string    `json:"candidate_id"`
	Name        string    `json:"name"`
	MediaType   string    `json:"media_type"`
	Size        int64     `json:"size"`
	At          time.Time `json:"at"`
}

func (e UploadEvent) OwnerID() string { return e.UserID }
