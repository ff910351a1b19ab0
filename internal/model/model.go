package model

import "time"

const (
	RoleUser       = "user"
	RoleAstrologer = "astrologer"
	RoleAdmin      = "admin"
)

const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

type UserProfile struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
}

type AstrologerProfile struct {
	ID        string
	Name      string
	Bio       string
	Languages []string
	IsOnline  bool
	PhotoURL  string
	Rating    *float64
}

// Session is one consultation call. Its ID doubles as the media room name.
type Session struct {
	ID           string
	UserID       string
	AstrologerID string
	Status       string
	StartedAt    time.Time
	EndedAt      *time.Time
	Rating       *int
	Comment      *string
}

type Review struct {
	ID           string
	SessionID    string
	AstrologerID string
	UserID       string
	Rating       int
	Comment      string
	CreatedAt    time.Time
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}
