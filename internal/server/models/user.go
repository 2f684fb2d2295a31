package models

import "time"

type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserSummary is a user as listed to other users, with the time of their
// most recent message if they ever sent one.
type UserSummary struct {
	ID              int64
	UserName        string
	Email           string
	LastMessageTime *time.Time
}
