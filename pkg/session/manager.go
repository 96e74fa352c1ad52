package session

// Package session implements the conversation session manager: it owns the
// session list, the active session and its message log, and reconciles that
// optimistic local state with the remote store and the inference gateway.
//
// The manager is the only component that mutates in-memory session/message
// state. All public operations resolve to either a success value or a
// recorded, user-displayable outcome; remote failures never escape as
// unhandled errors to the presentation layer except where an operation's
// contract says so (session creation and deletion, upload validation).

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/forptiter/chatcore/pkg/agents"
	"github.com/forptiter/chatcore/pkg/chat"
	"github.com/forptiter/chatcore/pkg/events"
	"github.com/forptiter/chatcore/pkg/files"
	"github.com/forptiter/chatcore/pkg/gateway"
	"github.com/forptiter/chatcore/pkg/store"
)

// DefaultSessionCap bounds the number of sessions a user may hold; the cap
// is enforced eagerly before a new session is created, never surfaced as an
// error.
const DefaultSessionCap = 10

// FallbackAnswerText is the fixed assistant apology shown when the gateway
// call fails in any way.
const FallbackAnswerText = "Xin lỗi, tôi không thể xử lý yêu cầu của bạn lúc này. " +
	"Vui lòng thử lại sau hoặc liên hệ hỗ trợ kỹ thuật."

type Manager struct {
	mu sync.Mutex

	userID          string
	state           State
	sessions        []*chat.Session
	activeID        uuid.UUID
	messages        chat.Conversation
	selectedAgentID string
	fileContext     *chat.FileContext
	loading         bool

	sessionCap int
	store      store.Store
	gateway    gateway.Completer
	registry   agents.Client
	files      files.Service
	publisher  *events.PublisherManager
	now        func() time.Time
	logger     zerolog.Logger
}

type ManagerOption func(*Manager)

func WithPublisher(publisher *events.PublisherManager) ManagerOption {
	return func(m *Manager) {
		m.publisher = publisher
	}
}

func WithSessionCap(cap_ int) ManagerOption {
	return func(m *Manager) {
		m.sessionCap = cap_
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(
	userID string,
	store_ store.Store,
	gateway_ gateway.Completer,
	registry agents.Client,
	files_ files.Service,
	options ...ManagerOption,
) *Manager {
	ret := &Manager{
		userID:     userID,
		state:      StateUninitialized,
		sessionCap: DefaultSessionCap,
		store:      store_,
		gateway:    gateway_,
		registry:   registry,
		files:      files_,
		publisher:  events.NewPublisherManager(),
		now:        time.Now,
		logger:     log.With().Str("component", "session-manager").Str("user_id", userID).Logger(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// Initialize loads the user's sessions, most recent first, and activates the
// most recent one; a user with no sessions gets a fresh one. A store read
// failure is logged and leaves the session list empty instead of failing the
// whole UI.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.mu.Unlock()

	sessions, err := m.store.ListSessions(ctx, m.userID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to load sessions, starting with an empty list")
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		return nil
	}
	sortSessionsByRecency(sessions)

	m.mu.Lock()
	m.sessions = sessions
	m.state = StateIdle
	m.mu.Unlock()

	if len(sessions) == 0 {
		_, err := m.CreateSession(ctx)
		return err
	}
	return m.ActivateSession(ctx, sessions[0].ID)
}

// CreateSession inserts a new session carrying the currently selected agent
// and makes it active. There is no optimistic insert here: the session id is
// server-assigned and nothing can reference the session before it exists, so
// a failure leaves local state untouched.
func (m *Manager) CreateSession(ctx context.Context) (*chat.Session, error) {
	m.mu.Lock()
	var agentID *string
	if m.selectedAgentID != "" {
		selected := m.selectedAgentID
		agentID = &selected
	}
	m.mu.Unlock()

	sess, err := m.store.InsertSession(ctx, store.SessionDraft{UserID: m.userID, AgentID: agentID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	m.mu.Lock()
	m.sessions = append([]*chat.Session{sess}, m.sessions...)
	m.activeID = sess.ID
	m.messages = nil
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewSessionEvent(events.EventTypeSessionCreated, sess.ID))
	m.publisher.PublishBlind(events.NewSessionEvent(events.EventTypeSessionActivated, sess.ID))

	m.logger.Debug().Str("chat_id", sess.ID.String()).Msg("created session")
	return sess, nil
}

// RequestNewSession is the eviction-aware way to start a new chat: when the
// user is at the session cap, the oldest session (minimum created_at, ties
// broken by id) and its messages are deleted before the new one is created.
func (m *Manager) RequestNewSession(ctx context.Context) (*chat.Session, error) {
	m.mu.Lock()
	var victim *chat.Session
	if len(m.sessions) >= m.sessionCap {
		victim = oldestSession(m.sessions)
	}
	m.mu.Unlock()

	if victim != nil {
		m.logger.Debug().Str("chat_id", victim.ID.String()).Msg("evicting oldest session")
		// messages first: they reference the session row
		if err := m.store.DeleteMessagesByChat(ctx, victim.ID); err != nil {
			return nil, errors.Wrap(err, "failed to delete messages of evicted session")
		}
		if err := m.store.DeleteSession(ctx, victim.ID); err != nil {
			return nil, errors.Wrap(err, "failed to delete evicted session")
		}

		m.mu.Lock()
		m.removeSessionLocked(victim.ID)
		if m.activeID == victim.ID {
			m.activeID = uuid.Nil
			m.messages = nil
		}
		m.mu.Unlock()

		m.publisher.PublishBlind(events.NewSessionEvent(events.EventTypeSessionDeleted, victim.ID))
	}

	return m.CreateSession(ctx)
}

// ActivateSession switches the active session, loading its message log and
// persisted agent preference. The attached file context does not survive a
// session switch.
func (m *Manager) ActivateSession(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	if !m.hasSessionLocked(sessionID) {
		m.mu.Unlock()
		return ErrUnknownSession
	}
	m.state = StateSwitchingSession
	hadFile := m.fileContext != nil
	m.fileContext = nil
	m.mu.Unlock()

	if hadFile {
		m.publisher.PublishBlind(events.NewFileContextChanged(nil))
	}

	var (
		msgs []*chat.Message
		sess *chat.Session
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		msgs, err = m.store.ListMessages(egCtx, sessionID)
		return err
	})
	eg.Go(func() error {
		var err error
		sess, err = m.store.GetSession(egCtx, sessionID)
		return err
	})
	if err := eg.Wait(); err != nil {
		m.logger.Warn().Err(err).Str("chat_id", sessionID.String()).
			Msg("failed to load session state, showing an empty log")
		msgs = nil
		sess = nil
	}

	for _, msg := range msgs {
		msg.Persisted = true
	}

	m.mu.Lock()
	m.activeID = sessionID
	m.messages = chat.Conversation(msgs)
	if sess != nil && sess.AgentID != nil {
		m.selectedAgentID = *sess.AgentID
	} else {
		m.selectedAgentID = ""
	}
	m.state = StateIdle
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewSessionEvent(events.EventTypeSessionActivated, sessionID))
	return nil
}

// DeleteSession removes a session and its messages. Deleting an id that is
// no longer present is a no-op, so rapid double-invocation is harmless. When
// the active session is deleted the most recently created remaining session
// takes over, or the manager goes empty.
func (m *Manager) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	if !m.hasSessionLocked(sessionID) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.store.DeleteMessagesByChat(ctx, sessionID); err != nil {
		return errors.Wrap(err, "failed to delete session messages")
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	m.mu.Lock()
	m.removeSessionLocked(sessionID)
	var next *chat.Session
	if m.activeID == sessionID {
		m.activeID = uuid.Nil
		m.messages = nil
		if len(m.sessions) > 0 {
			next = m.sessions[0]
		}
	}
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewSessionEvent(events.EventTypeSessionDeleted, sessionID))

	if next != nil {
		return m.ActivateSession(ctx, next.ID)
	}
	return nil
}

// ChangeAgent selects a new agent immediately and persists the choice on the
// active session. Persistence failure does not roll the selection back, it
// is only logged. On success a synthetic system notice announcing the agent
// is appended; if the registry lookup fails the switch stands silently.
func (m *Manager) ChangeAgent(ctx context.Context, agentID string) error {
	m.mu.Lock()
	m.selectedAgentID = agentID
	chatID := m.activeID
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewAgentChanged(chatID, agentID))

	if chatID == uuid.Nil {
		return nil
	}

	if err := m.store.UpdateSessionAgent(ctx, chatID, agentID); err != nil {
		m.logger.Warn().Err(err).Str("agent_id", agentID).
			Msg("failed to persist agent selection, keeping local choice")
		return nil
	}

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.ID == chatID {
			selected := agentID
			s.AgentID = &selected
		}
	}
	m.mu.Unlock()

	agent, err := agents.Lookup(ctx, m.registry, agentID)
	if err != nil {
		m.logger.Debug().Err(err).Str("agent_id", agentID).
			Msg("agent switch not announced, registry lookup failed")
		return nil
	}

	notice := chat.NewMessage(chat.RoleSystem,
		fmt.Sprintf("Switched to %s %s. %s", agent.DisplayName, agent.Avatar, agent.Description),
		chat.WithChatID(chatID),
		chat.WithTime(m.now()),
		chat.AsEphemeral(),
	)
	m.appendIfActive(chatID, notice)
	return nil
}

// SendMessage runs the send protocol: validate, append the user message
// optimistically, persist it, read credentials, call the gateway and append
// either the answer or the fixed fallback. Sends are single-flight for the
// whole manager; a second call while one is outstanding is rejected, not
// queued. Whatever happens, the loading flag is cleared when the call
// settles.
func (m *Manager) SendMessage(ctx context.Context, text string, webSearchEnabled bool) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return ErrSendInFlight
	}
	if m.activeID == uuid.Nil {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	m.loading = true
	m.state = StateSendingMessage
	chatID := m.activeID
	history := m.messages.Clone()
	agentID := m.selectedAgentID
	fileID := ""
	if m.fileContext != nil {
		fileID = m.fileContext.ID
	}
	userMsg := chat.NewMessage(chat.RoleUser, text,
		chat.WithChatID(chatID),
		chat.WithTime(m.now()),
	)
	m.messages = append(m.messages, userMsg)
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewMessageAppended(chatID, userMsg))
	m.publisher.PublishBlind(events.NewLoading(chatID, true))

	defer func() {
		m.mu.Lock()
		m.loading = false
		if m.state == StateSendingMessage {
			m.state = StateIdle
		}
		m.mu.Unlock()
		m.publisher.PublishBlind(events.NewLoading(chatID, false))
	}()

	if err := m.store.InsertMessage(ctx, userMsg); err != nil {
		// the optimistic append stays visible, flagged as unpersisted
		return errors.Wrap(err, "failed to save message")
	}
	userMsg.Persisted = true

	credentials, err := m.store.UniversityCredentials(ctx, m.userID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to load university credentials")
		credentials = nil
	}

	req := &gateway.Request{
		Message:               text,
		ConversationHistory:   gateway.HistoryFromConversation(history),
		UserID:                m.userID,
		UniversityCredentials: credentials,
		FileID:                fileID,
		AgentID:               agentID,
		WebSearchEnabled:      webSearchEnabled,
		ChatID:                chatID.String(),
	}

	answer, err := m.gateway.Complete(ctx, req)
	if err != nil {
		m.logger.Error().Err(err).Str("chat_id", chatID.String()).Msg("gateway call failed")
		fallback := chat.NewMessage(chat.RoleAssistant, FallbackAnswerText,
			chat.WithChatID(chatID),
			chat.WithTime(m.now()),
		)
		m.appendIfActive(chatID, fallback)
		if insertErr := m.store.InsertMessage(ctx, fallback); insertErr != nil {
			m.logger.Warn().Err(insertErr).Msg("failed to save fallback message")
		} else {
			fallback.Persisted = true
		}
		return nil
	}

	messageOptions := []chat.MessageOption{
		chat.WithChatID(chatID),
		chat.WithTime(m.now()),
	}
	if webSearch, ok := answer.(*gateway.WebSearchAnswer); ok {
		messageOptions = append(messageOptions, chat.WithSources(webSearch.Sources))
	}
	assistantMsg := chat.NewMessage(chat.RoleAssistant, answer.Text(), messageOptions...)

	m.appendIfActive(chatID, assistantMsg)
	if err := m.store.InsertMessage(ctx, assistantMsg); err != nil {
		// accepted divergence until the session is reloaded
		m.logger.Warn().Err(err).Msg("failed to save assistant message")
	} else {
		assistantMsg.Persisted = true
	}

	return nil
}

// AttachFile validates and uploads a document and makes it the active file
// context for subsequent sends.
func (m *Manager) AttachFile(ctx context.Context, upload files.Upload) (*chat.FileContext, error) {
	fileContext, err := m.files.Attach(ctx, m.userID, upload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.fileContext = fileContext
	chatID := m.activeID
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewFileContextChanged(fileContext))

	if chatID != uuid.Nil {
		notice := chat.NewMessage(chat.RoleSystem,
			fmt.Sprintf("Đã tải file %q lên. Bạn có thể hỏi về nội dung file này.", fileContext.Name),
			chat.WithChatID(chatID),
			chat.WithTime(m.now()),
			chat.AsEphemeral(),
		)
		m.appendIfActive(chatID, notice)
	}

	return fileContext, nil
}

// ClearFileContext drops the active file context. The remote deletion is
// best effort: the local context is cleared no matter what.
func (m *Manager) ClearFileContext(ctx context.Context) error {
	m.mu.Lock()
	fileContext := m.fileContext
	m.fileContext = nil
	chatID := m.activeID
	m.mu.Unlock()

	if fileContext == nil {
		return nil
	}

	m.publisher.PublishBlind(events.NewFileContextChanged(nil))

	if err := m.files.Detach(ctx, fileContext.ID, m.userID); err != nil {
		m.logger.Warn().Err(err).Str("file_id", fileContext.ID).
			Msg("failed to delete remote file context")
		return nil
	}

	if chatID != uuid.Nil {
		notice := chat.NewMessage(chat.RoleSystem, "Đã xóa ngữ cảnh file.",
			chat.WithChatID(chatID),
			chat.WithTime(m.now()),
			chat.AsEphemeral(),
		)
		m.appendIfActive(chatID, notice)
	}
	return nil
}

// appendIfActive appends a message to the visible log only if the session it
// was issued for is still active; stale results are discarded from the UI
// (the store copy, where one exists, stays correct).
func (m *Manager) appendIfActive(chatID uuid.UUID, msg *chat.Message) bool {
	m.mu.Lock()
	if m.activeID != chatID {
		m.mu.Unlock()
		m.logger.Info().Str("chat_id", chatID.String()).
			Msg("discarding message for a session that is no longer active")
		return false
	}
	m.messages = append(m.messages, msg)
	m.mu.Unlock()

	m.publisher.PublishBlind(events.NewMessageAppended(chatID, msg))
	return true
}

func (m *Manager) hasSessionLocked(sessionID uuid.UUID) bool {
	for _, s := range m.sessions {
		if s.ID == sessionID {
			return true
		}
	}
	return false
}

func (m *Manager) removeSessionLocked(sessionID uuid.UUID) {
	remaining := make([]*chat.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.ID != sessionID {
			remaining = append(remaining, s)
		}
	}
	m.sessions = remaining
}

func sortSessionsByRecency(sessions []*chat.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID.String() > sessions[j].ID.String()
	})
}

// oldestSession picks the eviction victim: minimum created_at, ties broken
// by the lexicographically smallest id so the choice is deterministic.
func oldestSession(sessions []*chat.Session) *chat.Session {
	var oldest *chat.Session
	for _, s := range sessions {
		if oldest == nil {
			oldest = s
			continue
		}
		if s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
			continue
		}
		if s.CreatedAt.Equal(oldest.CreatedAt) && s.ID.String() < oldest.ID.String() {
			oldest = s
		}
	}
	return oldest
}
