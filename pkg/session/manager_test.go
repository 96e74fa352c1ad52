package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forptiter/chatcore/pkg/chat"
	"github.com/forptiter/chatcore/pkg/files"
	"github.com/forptiter/chatcore/pkg/gateway"
	"github.com/forptiter/chatcore/pkg/store"
)

type fakeStore struct {
	mu          sync.Mutex
	clock       func() time.Time
	sessions    map[uuid.UUID]*chat.Session
	messages    map[uuid.UUID][]*chat.Message
	credentials map[string]*chat.Credentials

	listSessionsErr  error
	insertSessionErr error
	insertMessageErr error

	insertMessageCalls int
}

func newFakeStore(clock func() time.Time) *fakeStore {
	return &fakeStore{
		clock:       clock,
		sessions:    map[uuid.UUID]*chat.Session{},
		messages:    map[uuid.UUID][]*chat.Message{},
		credentials: map[string]*chat.Credentials{},
	}
}

var _ store.Store = (*fakeStore)(nil)

func (s *fakeStore) addSession(userID string, createdAt time.Time, agentID *string) *chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &chat.Session{ID: uuid.New(), UserID: userID, AgentID: agentID, CreatedAt: createdAt}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *fakeStore) ListSessions(_ context.Context, userID string) ([]*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listSessionsErr != nil {
		return nil, s.listSessionsErr
	}
	var ret []*chat.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			copied := *sess
			ret = append(ret, &copied)
		}
	}
	return ret, nil
}

func (s *fakeStore) GetSession(_ context.Context, sessionID uuid.UUID) (*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.New("session not found")
	}
	copied := *sess
	return &copied, nil
}

func (s *fakeStore) InsertSession(_ context.Context, draft store.SessionDraft) (*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertSessionErr != nil {
		return nil, s.insertSessionErr
	}
	sess := &chat.Session{
		ID:        uuid.New(),
		UserID:    draft.UserID,
		AgentID:   draft.AgentID,
		CreatedAt: s.clock(),
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *fakeStore) UpdateSessionAgent(_ context.Context, sessionID uuid.UUID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	sess.AgentID = &agentID
	return nil
}

func (s *fakeStore) DeleteSession(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *fakeStore) ListMessages(_ context.Context, chatID uuid.UUID) ([]*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]*chat.Message, len(s.messages[chatID]))
	copy(msgs, s.messages[chatID])
	return msgs, nil
}

func (s *fakeStore) InsertMessage(_ context.Context, msg *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertMessageCalls++
	if s.insertMessageErr != nil {
		return s.insertMessageErr
	}
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	return nil
}

func (s *fakeStore) DeleteMessagesByChat(_ context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, chatID)
	return nil
}

func (s *fakeStore) UniversityCredentials(_ context.Context, userID string) (*chat.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials[userID], nil
}

func (s *fakeStore) storedMessages(chatID uuid.UUID) []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]*chat.Message, len(s.messages[chatID]))
	copy(msgs, s.messages[chatID])
	return msgs
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	complete func(ctx context.Context, req *gateway.Request) (gateway.Answer, error)
}

func (g *fakeGateway) Complete(ctx context.Context, req *gateway.Request) (gateway.Answer, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.complete(ctx, req)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeRegistry struct {
	agents  []chat.Agent
	listErr error
}

func (r *fakeRegistry) List(_ context.Context) ([]chat.Agent, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.agents, nil
}

type fakeFiles struct {
	attach    func(ctx context.Context, userID string, upload files.Upload) (*chat.FileContext, error)
	detachErr error
	detached  []string
}

func (f *fakeFiles) Attach(ctx context.Context, userID string, upload files.Upload) (*chat.FileContext, error) {
	if f.attach != nil {
		return f.attach(ctx, userID, upload)
	}
	return &chat.FileContext{ID: "file-1", Name: upload.Name}, nil
}

func (f *fakeFiles) Detach(_ context.Context, fileID string, _ string) error {
	f.detached = append(f.detached, fileID)
	return f.detachErr
}

func testClock() func() time.Time {
	var mu sync.Mutex
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func okGateway(text string) *fakeGateway {
	return &fakeGateway{complete: func(_ context.Context, _ *gateway.Request) (gateway.Answer, error) {
		return &gateway.PlainAnswer{Response: text}, nil
	}}
}

func newTestManager(st *fakeStore, gw *fakeGateway, options ...ManagerOption) *Manager {
	registry := &fakeRegistry{agents: []chat.Agent{
		{ID: "mistral", DisplayName: "Mistral (Default)", Avatar: "🧠", IsDefault: true},
		{ID: "gemma", DisplayName: "Gemma", Description: "Google's Gemma 3.", Avatar: "🔍"},
	}}
	options = append([]ManagerOption{WithClock(st.clock)}, options...)
	return NewManager("user-1", st, gw, registry, &fakeFiles{}, options...)
}

func TestInitialize_CreatesSessionWhenNoneExist(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))

	require.NoError(t, m.Initialize(context.Background()))

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	activeID, ok := m.ActiveSessionID()
	require.True(t, ok)
	require.Equal(t, sessions[0].ID, activeID)
	require.Empty(t, m.Messages())
	require.Equal(t, StateIdle, m.State())
}

func TestInitialize_ActivatesMostRecentSession(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	agentID := "gemma"
	old := st.addSession("user-1", clock(), nil)
	recent := st.addSession("user-1", clock(), &agentID)
	st.messages[recent.ID] = []*chat.Message{
		chat.NewMessage(chat.RoleUser, "hello", chat.WithChatID(recent.ID), chat.WithTime(clock())),
		chat.NewMessage(chat.RoleAssistant, "hi there", chat.WithChatID(recent.ID), chat.WithTime(clock())),
	}

	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	activeID, ok := m.ActiveSessionID()
	require.True(t, ok)
	require.Equal(t, recent.ID, activeID)
	require.NotEqual(t, old.ID, activeID)
	require.Len(t, m.Messages(), 2)
	require.Equal(t, "gemma", m.SelectedAgentID())
	require.Len(t, m.Sessions(), 2)
}

func TestInitialize_StoreFailureLeavesEmptyList(t *testing.T) {
	st := newFakeStore(testClock())
	st.listSessionsErr = errors.New("store down")
	m := newTestManager(st, okGateway("hi"))

	require.NoError(t, m.Initialize(context.Background()))

	require.Empty(t, m.Sessions())
	_, ok := m.ActiveSessionID()
	require.False(t, ok)
	require.Equal(t, StateIdle, m.State())
}

func TestInitialize_SecondCallRejected(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))

	require.NoError(t, m.Initialize(context.Background()))
	require.ErrorIs(t, m.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestSendMessage_AppendsUserAndAssistantInOrder(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("the answer"))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.SendMessage(context.Background(), "what is up?", false))

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is up?", msgs[0].Content)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "the answer", msgs[1].Content)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	assert.True(t, msgs[0].Persisted)
	assert.True(t, msgs[1].Persisted)
	assert.False(t, m.IsLoading())
	assert.Equal(t, 0, m.UnpersistedMessages())
}

func TestSendMessage_AppendOnly(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("answer"))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.SendMessage(context.Background(), "one", false))
	first := m.Messages()
	require.NoError(t, m.SendMessage(context.Background(), "two", false))
	second := m.Messages()

	require.Len(t, second, 4)
	for i, msg := range first {
		assert.Same(t, msg, second[i])
	}
	for i := 1; i < len(second); i++ {
		assert.False(t, second[i].CreatedAt.Before(second[i-1].CreatedAt))
	}
}

func TestSendMessage_RejectsEmptyText(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	require.ErrorIs(t, m.SendMessage(context.Background(), "   \n\t", false), ErrEmptyMessage)
	require.Empty(t, m.Messages())
}

func TestSendMessage_SingleFlight(t *testing.T) {
	st := newFakeStore(testClock())
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{complete: func(_ context.Context, _ *gateway.Request) (gateway.Answer, error) {
		close(started)
		<-release
		return &gateway.PlainAnswer{Response: "slow answer"}, nil
	}}
	m := newTestManager(st, gw)
	require.NoError(t, m.Initialize(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- m.SendMessage(context.Background(), "first", false)
	}()
	<-started

	require.ErrorIs(t, m.SendMessage(context.Background(), "second", false), ErrSendInFlight)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, 1, gw.callCount())
	require.False(t, m.IsLoading())
}

func TestSendMessage_FallbackOnGatewayFailure(t *testing.T) {
	st := newFakeStore(testClock())
	gw := &fakeGateway{complete: func(_ context.Context, _ *gateway.Request) (gateway.Answer, error) {
		return nil, errors.New("server down")
	}}
	m := newTestManager(st, gw)
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.SendMessage(context.Background(), "hello?", false))

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, FallbackAnswerText, msgs[1].Content)
	assert.False(t, m.IsLoading())

	// the fallback is persisted best-effort
	activeID, _ := m.ActiveSessionID()
	stored := st.storedMessages(activeID)
	require.Len(t, stored, 2)
	assert.Equal(t, FallbackAnswerText, stored[1].Content)
}

func TestSendMessage_AbortsWhenUserMessagePersistFails(t *testing.T) {
	st := newFakeStore(testClock())
	gw := okGateway("never reached")
	m := newTestManager(st, gw)
	require.NoError(t, m.Initialize(context.Background()))
	st.insertMessageErr = errors.New("insert failed")

	err := m.SendMessage(context.Background(), "hello", false)
	require.Error(t, err)

	// optimistic append stays visible but is flagged as unpersisted
	require.Len(t, m.Messages(), 1)
	require.Equal(t, 1, m.UnpersistedMessages())
	require.Equal(t, 0, gw.callCount())
	require.False(t, m.IsLoading())
}

func TestSendMessage_WebSearchAnswerCarriesSources(t *testing.T) {
	st := newFakeStore(testClock())
	sources := []chat.Source{{Title: "PTIT portal", URL: "https://ptit.edu.vn"}}
	gw := &fakeGateway{complete: func(_ context.Context, req *gateway.Request) (gateway.Answer, error) {
		require.True(t, req.WebSearchEnabled)
		return &gateway.WebSearchAnswer{Response: "found it", Sources: sources}, nil
	}}
	m := newTestManager(st, gw)
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.SendMessage(context.Background(), "search this", true))

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].WebSearchResults)
	assert.Equal(t, sources, msgs[1].Sources)
}

func TestSendMessage_ForwardsContextFields(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	st.credentials["user-1"] = &chat.Credentials{UniversityUsername: "b21dccn001"}

	var captured *gateway.Request
	gw := &fakeGateway{complete: func(_ context.Context, req *gateway.Request) (gateway.Answer, error) {
		captured = req
		return &gateway.PlainAnswer{Response: "ok"}, nil
	}}
	m := newTestManager(st, gw)
	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.ChangeAgent(context.Background(), "gemma"))
	_, err := m.AttachFile(context.Background(), files.Upload{Name: "notes.pdf", ContentType: "application/pdf", Size: 100})
	require.NoError(t, err)

	require.NoError(t, m.SendMessage(context.Background(), "question", false))

	require.NotNil(t, captured)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, "gemma", captured.AgentID)
	assert.Equal(t, "file-1", captured.FileID)
	require.NotNil(t, captured.UniversityCredentials)
	assert.Equal(t, "b21dccn001", captured.UniversityCredentials.UniversityUsername)
	// history carries prior messages only, without ephemeral notices
	assert.Empty(t, captured.ConversationHistory)
}

func TestSendMessage_StaleResponseDiscardedAfterSwitch(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	first := st.addSession("user-1", clock(), nil)
	second := st.addSession("user-1", clock(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{complete: func(_ context.Context, _ *gateway.Request) (gateway.Answer, error) {
		close(started)
		<-release
		return &gateway.PlainAnswer{Response: "late answer"}, nil
	}}
	m := newTestManager(st, gw)
	require.NoError(t, m.Initialize(context.Background()))

	sentFrom, ok := m.ActiveSessionID()
	require.True(t, ok)
	require.Equal(t, second.ID, sentFrom)

	done := make(chan error, 1)
	go func() {
		done <- m.SendMessage(context.Background(), "slow question", false)
	}()
	<-started

	require.NoError(t, m.ActivateSession(context.Background(), first.ID))
	close(release)
	require.NoError(t, <-done)

	// the visible log belongs to the other session and must not show the answer
	for _, msg := range m.Messages() {
		assert.NotEqual(t, "late answer", msg.Content)
	}
	// the store copy is still written under the originating session
	stored := st.storedMessages(sentFrom)
	require.Len(t, stored, 2)
	assert.Equal(t, "late answer", stored[1].Content)
}

func TestRequestNewSession_EvictsOldestAtCap(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	sessions := make([]*chat.Session, 0, 10)
	for i := 0; i < 10; i++ {
		sessions = append(sessions, st.addSession("user-1", clock(), nil))
	}
	oldest := sessions[0]
	st.messages[oldest.ID] = []*chat.Message{
		chat.NewMessage(chat.RoleUser, "old", chat.WithChatID(oldest.ID), chat.WithTime(oldest.CreatedAt)),
	}

	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	created, err := m.RequestNewSession(context.Background())
	require.NoError(t, err)

	remaining := m.Sessions()
	require.Len(t, remaining, 10)
	for _, s := range remaining {
		require.NotEqual(t, oldest.ID, s.ID)
	}
	require.Equal(t, remaining[0].ID, created.ID)
	require.Empty(t, st.storedMessages(oldest.ID))

	activeID, ok := m.ActiveSessionID()
	require.True(t, ok)
	require.Equal(t, created.ID, activeID)
	require.Empty(t, m.Messages())
}

func TestRequestNewSession_NoEvictionBelowCap(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	_, err := m.RequestNewSession(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Sessions(), 2)
}

func TestRequestNewSession_TieBreakIsDeterministic(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	createdAt := clock()
	a := st.addSession("user-1", createdAt, nil)
	b := st.addSession("user-1", createdAt, nil)
	victim := a
	if b.ID.String() < a.ID.String() {
		victim = b
	}

	m := newTestManager(st, okGateway("hi"), WithSessionCap(2))
	require.NoError(t, m.Initialize(context.Background()))

	_, err := m.RequestNewSession(context.Background())
	require.NoError(t, err)

	for _, s := range m.Sessions() {
		require.NotEqual(t, victim.ID, s.ID)
	}
}

func TestDeleteSession_Idempotent(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	a := st.addSession("user-1", clock(), nil)
	st.addSession("user-1", clock(), nil)

	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.DeleteSession(context.Background(), a.ID))
	sessionsAfterFirst := m.Sessions()

	require.NoError(t, m.DeleteSession(context.Background(), a.ID))
	require.Equal(t, sessionsAfterFirst, m.Sessions())
}

func TestDeleteSession_ActiveFallsBackToMostRecent(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	older := st.addSession("user-1", clock(), nil)
	newest := st.addSession("user-1", clock(), nil)
	st.messages[older.ID] = []*chat.Message{
		chat.NewMessage(chat.RoleUser, "kept", chat.WithChatID(older.ID), chat.WithTime(clock())),
	}

	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	activeID, _ := m.ActiveSessionID()
	require.Equal(t, newest.ID, activeID)

	require.NoError(t, m.DeleteSession(context.Background(), newest.ID))

	activeID, ok := m.ActiveSessionID()
	require.True(t, ok)
	require.Equal(t, older.ID, activeID)
	require.Len(t, m.Messages(), 1)
}

func TestDeleteSession_LastOneClearsActive(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	activeID, _ := m.ActiveSessionID()
	require.NoError(t, m.DeleteSession(context.Background(), activeID))

	_, ok := m.ActiveSessionID()
	require.False(t, ok)
	require.Empty(t, m.Messages())
	require.Empty(t, m.Sessions())
}

func TestChangeAgent_AppendsAnnouncement(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.ChangeAgent(context.Background(), "gemma"))

	require.Equal(t, "gemma", m.SelectedAgentID())
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Switched to Gemma")
	assert.Contains(t, msgs[0].Content, "Google's Gemma 3.")
	assert.True(t, msgs[0].Ephemeral)

	// the preference is persisted on the session row
	activeID, _ := m.ActiveSessionID()
	sess, err := st.GetSession(context.Background(), activeID)
	require.NoError(t, err)
	require.NotNil(t, sess.AgentID)
	assert.Equal(t, "gemma", *sess.AgentID)
}

func TestChangeAgent_RegistryFailureSwitchesSilently(t *testing.T) {
	st := newFakeStore(testClock())
	gw := okGateway("hi")
	registry := &fakeRegistry{listErr: errors.New("registry down")}
	m := NewManager("user-1", st, gw, registry, &fakeFiles{}, WithClock(st.clock))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.ChangeAgent(context.Background(), "gemma"))

	require.Equal(t, "gemma", m.SelectedAgentID())
	require.Empty(t, m.Messages())
}

func TestAttachFile_SetsContextAndAnnounces(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	fileContext, err := m.AttachFile(context.Background(), files.Upload{
		Name: "syllabus.pdf", ContentType: "application/pdf", Size: 1024,
	})
	require.NoError(t, err)
	require.Equal(t, fileContext, m.FileContext())

	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "syllabus.pdf")
}

func TestAttachFile_FailureLeavesContextUnset(t *testing.T) {
	st := newFakeStore(testClock())
	gw := okGateway("hi")
	failing := &fakeFiles{attach: func(_ context.Context, _ string, _ files.Upload) (*chat.FileContext, error) {
		return nil, errors.New("upload failed")
	}}
	m := NewManager("user-1", st, gw, &fakeRegistry{}, failing, WithClock(st.clock))
	require.NoError(t, m.Initialize(context.Background()))

	_, err := m.AttachFile(context.Background(), files.Upload{
		Name: "notes.pdf", ContentType: "application/pdf", Size: 1024,
	})
	require.Error(t, err)
	require.Nil(t, m.FileContext())
	require.Empty(t, m.Messages())
}

func TestClearFileContext_ClearsEvenWhenRemoteDeleteFails(t *testing.T) {
	st := newFakeStore(testClock())
	gw := okGateway("hi")
	fileService := &fakeFiles{detachErr: errors.New("remote delete failed")}
	m := NewManager("user-1", st, gw, &fakeRegistry{}, fileService, WithClock(st.clock))
	require.NoError(t, m.Initialize(context.Background()))

	_, err := m.AttachFile(context.Background(), files.Upload{
		Name: "notes.pdf", ContentType: "application/pdf", Size: 1024,
	})
	require.NoError(t, err)

	require.NoError(t, m.ClearFileContext(context.Background()))
	require.Nil(t, m.FileContext())
	require.Equal(t, []string{"file-1"}, fileService.detached)
}

func TestActivateSession_ClearsFileContext(t *testing.T) {
	clock := testClock()
	st := newFakeStore(clock)
	other := st.addSession("user-1", clock(), nil)

	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	_, err := m.AttachFile(context.Background(), files.Upload{
		Name: "notes.pdf", ContentType: "application/pdf", Size: 1024,
	})
	require.NoError(t, err)
	require.NotNil(t, m.FileContext())

	require.NoError(t, m.ActivateSession(context.Background(), other.ID))
	require.Nil(t, m.FileContext())
}

func TestActivateSession_UnknownIDRejected(t *testing.T) {
	st := newFakeStore(testClock())
	m := newTestManager(st, okGateway("hi"))
	require.NoError(t, m.Initialize(context.Background()))

	require.ErrorIs(t, m.ActivateSession(context.Background(), uuid.New()), ErrUnknownSession)
}
