package api

import (
	"encoding/json"
	"time"
)

// User is a backend account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// IsAdmin reports whether the account may use the moderation endpoints.
func (u User) IsAdmin() bool { return u.Role == "admin" }

// Session is the result of a successful register or login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Stats summarises the caller's memes.
type Stats struct {
	TotalMemes  int `json:"total_memes"`
	PublicMemes int `json:"public_memes"`
}

// Profile is the response of GET /me.
type Profile struct {
	User  User  `json:"user"`
	Stats Stats `json:"stats"`
}

// Moderation statuses of a meme or report.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusResolved = "resolved"
)

// Meme is a saved meme as stored by the backend. Payload carries the remix
// token or composition JSON the meme was generated from.
type Meme struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"owner_id,omitempty"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	SourceImageURL    string          `json:"source_image_url,omitempty"`
	GeneratedImageURL string          `json:"generated_image_url,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	IsPublic          bool            `json:"is_public"`
	Status            string          `json:"status,omitempty"`
	CreatedAt         time.Time       `json:"created_at,omitzero"`
}

// MemeInput is the body of POST /memes.
type MemeInput struct {
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	SourceImageURL    string          `json:"source_image_url,omitempty"`
	GeneratedImageURL string          `json:"generated_image_url,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	IsPublic          *bool           `json:"is_public,omitempty"`
}

// MemeUpdate is the body of PUT /memes/{id}. Nil fields are left unchanged.
type MemeUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsPublic    *bool     `json:"is_public,omitempty"`
}

// Report is a user complaint about a meme.
type Report struct {
	ID        string    `json:"id"`
	MemeID    string    `json:"meme_id"`
	Reason    string    `json:"reason"`
	Details   string    `json:"details,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// BlacklistEntry is a term or source the backend refuses to publish.
type BlacklistEntry struct {
	ID        string    `json:"id"`
	Term      string    `json:"term"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Visit is the consent metadata posted by Telemetry.
type Visit struct {
	Path      string `json:"path"`
	Referrer  string `json:"referrer,omitempty"`
	Consent   bool   `json:"consent"`
	UserAgent string `json:"user_agent,omitempty"`
	Locale    string `json:"locale,omitempty"`
}
