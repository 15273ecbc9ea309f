package models

import "time"

// User is a locally provisioned account. ClerkID is the identity
// provider's subject; the provider owns credentials.
type User struct {
	ID        string    `json:"id"`
	ClerkID   string    `json:"clerk_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Webtoons []Webtoon `json:"webtoons,omitempty"`
}
