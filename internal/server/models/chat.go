// Package models defines server-side data models persisted in the database.
package models

import "time"

// Chat is a conversation between a fixed (private) or growing (group) set of
// users. IsPrivate never changes after creation.
type Chat struct {
	ID           int64
	IsPrivate    bool
	CreatedAt    time.Time
	Participants []User
}

// HasParticipant reports whether userID is among the loaded participants.
func (c *Chat) HasParticipant(userID int64) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
