package events

// Package events carries the state-change notifications the session manager
// emits for the presentation layer: the UI subscribes a watermill publisher
// and re-renders from manager state when events arrive.

import (
	"github.com/google/uuid"

	"github.com/forptiter/chatcore/pkg/chat"
)

type EventType string

const (
	EventTypeSessionCreated     EventType = "session-created"
	EventTypeSessionActivated   EventType = "session-activated"
	EventTypeSessionDeleted     EventType = "session-deleted"
	EventTypeMessageAppended    EventType = "message-appended"
	EventTypeAgentChanged       EventType = "agent-changed"
	EventTypeFileContextChanged EventType = "file-context-changed"
	EventTypeLoading            EventType = "loading"
)

// TopicChat is the topic all session-manager events are published on.
const TopicChat = "chat"

type Event struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`

	Message *chat.Message     `json:"message,omitempty"`
	AgentID string            `json:"agent_id,omitempty"`
	File    *chat.FileContext `json:"file,omitempty"`
	Loading bool              `json:"loading,omitempty"`
}

func chatIDString(chatID uuid.UUID) string {
	if chatID == uuid.Nil {
		return ""
	}
	return chatID.String()
}

func NewSessionEvent(type_ EventType, chatID uuid.UUID) *Event {
	return &Event{Type: type_, ChatID: chatIDString(chatID)}
}

func NewMessageAppended(chatID uuid.UUID, msg *chat.Message) *Event {
	return &Event{Type: EventTypeMessageAppended, ChatID: chatIDString(chatID), Message: msg}
}

func NewAgentChanged(chatID uuid.UUID, agentID string) *Event {
	return &Event{Type: EventTypeAgentChanged, ChatID: chatIDString(chatID), AgentID: agentID}
}

func NewFileContextChanged(file *chat.FileContext) *Event {
	return &Event{Type: EventTypeFileContextChanged, File: file}
}

func NewLoading(chatID uuid.UUID, loading bool) *Event {
	return &Event{Type: EventTypeLoading, ChatID: chatIDString(chatID), Loading: loading}
}
