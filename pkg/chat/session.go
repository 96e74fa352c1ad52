package chat

// Package chat holds the domain model shared by the session manager and the
// remote clients: sessions, messages, agents, file contexts and the
// university credential record that is forwarded opaquely to the gateway.

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one persisted conversation thread, scoped to a single user.
// Rows are created server-side; the only field that is ever mutated
// afterwards is AgentID.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   *string   `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Title renders the sidebar label for the session, derived from its creation
// time.
func (s *Session) Title() string {
	return fmt.Sprintf("Chat %s", s.CreatedAt.Format("02/01/2006 15:04"))
}

// Agent is read-only reference data describing one selectable answering
// configuration.
type Agent struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	IsDefault   bool   `json:"is_default"`
}

// Credentials is the per-user university credential record. It is read once
// per outgoing chat request and forwarded to the gateway without inspection.
type Credentials struct {
	UniversityUsername string `json:"university_username"`
	UniversityPassword string `json:"university_password"`
	AccessToken        string `json:"access_token"`
	RefreshToken       string `json:"refresh_token"`
	TokenExpiry        string `json:"token_expiry"`
}

// FileContext identifies the single attached document whose content grounds
// subsequent chat requests. At most one exists per user at any time.
type FileContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
