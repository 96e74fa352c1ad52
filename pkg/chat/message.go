package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a single citation attached to a web-search-backed answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Message is one entry in a session's log. Messages are append-only: once
// inserted they are never edited or reordered, and display order is ascending
// CreatedAt.
type Message struct {
	ID        uuid.UUID `json:"id,omitempty"`
	ChatID    uuid.UUID `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Sources          []Source `json:"sources,omitempty"`
	WebSearchResults bool     `json:"web_search_results,omitempty"`

	// Persisted tracks whether the remote store has acknowledged this
	// message. Optimistically appended messages start out unpersisted.
	Persisted bool `json:"-"`
	// Ephemeral marks synthetic system notices (agent switches, file
	// attach/detach announcements) that are never written to the store.
	Ephemeral bool `json:"-"`
}

type MessageOption func(*Message)

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.CreatedAt = t
	}
}

func WithChatID(chatID uuid.UUID) MessageOption {
	return func(m *Message) {
		m.ChatID = chatID
	}
}

func WithSources(sources []Source) MessageOption {
	return func(m *Message) {
		m.Sources = sources
		m.WebSearchResults = true
	}
}

func AsEphemeral() MessageOption {
	return func(m *Message) {
		m.Ephemeral = true
	}
}

func NewMessage(role Role, content string, options ...MessageOption) *Message {
	ret := &Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// Conversation is the ordered message log of a single session.
type Conversation []*Message

func (c Conversation) Last() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Clone returns a shallow copy of the log slice, so that callers can hold a
// stable snapshot while the manager keeps appending.
func (c Conversation) Clone() Conversation {
	ret := make(Conversation, len(c))
	copy(ret, c)
	return ret
}

// UnpersistedCount reports how many non-ephemeral messages the store has not
// acknowledged yet.
func (c Conversation) UnpersistedCount() int {
	count := 0
	for _, m := range c {
		if !m.Persisted && !m.Ephemeral {
			count++
		}
	}
	return count
}
