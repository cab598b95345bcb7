package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        string    `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionState is what a session provider reports: the active principal,
// or an empty PrincipalID when nobody is signed in.
type SessionState struct {
	PrincipalID string `json:"principal_id"`
	Loading     bool   `json:"loading"`
}

func (s SessionState) SignedIn() bool {
	return s.PrincipalID != ""
}
