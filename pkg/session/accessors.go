package session

// Read-side accessors for the presentation layer. All return snapshots; the
// manager keeps exclusive ownership of the underlying state.

import (
	"github.com/google/uuid"

	"github.com/forptiter/chatcore/pkg/chat"
)

func (m *Manager) UserID() string {
	return m.userID
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Sessions returns the session list ordered by recency, most recent first.
func (m *Manager) Sessions() []*chat.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*chat.Session, len(m.sessions))
	copy(ret, m.sessions)
	return ret
}

// ActiveSessionID returns the active session id, or false when the session
// set is empty.
func (m *Manager) ActiveSessionID() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == uuid.Nil {
		return uuid.Nil, false
	}
	return m.activeID, true
}

// Messages returns the active session's log in display order (ascending
// created_at).
func (m *Manager) Messages() chat.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages.Clone()
}

// SelectedAgentID returns the selected agent id, empty when none is set.
func (m *Manager) SelectedAgentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedAgentID
}

func (m *Manager) FileContext() *chat.FileContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileContext
}

// UnpersistedMessages reports how many visible messages the store has not
// acknowledged; the presentation layer can flag them on next load.
func (m *Manager) UnpersistedMessages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages.UnpersistedCount()
}
