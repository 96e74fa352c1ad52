package store

// Package store provides typed access to the remote persistent store that
// holds chat sessions, messages and university credential records. The store
// is the single source of truth; the session manager's in-memory state is a
// cache over it.

import (
	"context"

	"github.com/google/uuid"

	"github.com/forptiter/chatcore/pkg/chat"
)

// SessionDraft is the client-supplied part of a new session; the id and
// creation timestamp are assigned server-side.
type SessionDraft struct {
	UserID  string  `json:"user_id"`
	AgentID *string `json:"agent_id"`
}

type SessionStore interface {
	// ListSessions returns the user's sessions ordered by created_at
	// descending.
	ListSessions(ctx context.Context, userID string) ([]*chat.Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*chat.Session, error)
	InsertSession(ctx context.Context, draft SessionDraft) (*chat.Session, error)
	UpdateSessionAgent(ctx context.Context, sessionID uuid.UUID, agentID string) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

type MessageStore interface {
	// ListMessages returns the session's messages ordered by created_at
	// ascending.
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]*chat.Message, error)
	InsertMessage(ctx context.Context, msg *chat.Message) error
	DeleteMessagesByChat(ctx context.Context, chatID uuid.UUID) error
}

type CredentialStore interface {
	// UniversityCredentials returns the user's credential record, or
	// (nil, nil) when the user has not configured one.
	UniversityCredentials(ctx context.Context, userID string) (*chat.Credentials, error)
}

// Store is the full remote-store surface the session manager depends on.
type Store interface {
	SessionStore
	MessageStore
	CredentialStore
}
