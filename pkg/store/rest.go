package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/forptiter/chatcore/pkg/chat"
)

const (
	tableSessions    = "chat_sessions"
	tableMessages    = "messages"
	tableCredentials = "university_credentials"
)

// RESTClient talks to a PostgREST-dialect store (Supabase-style): one
// endpoint per table, filters and ordering as query parameters.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ Store = (*RESTClient)(nil)

type RESTClientOption func(*RESTClient)

func WithHTTPClient(client *http.Client) RESTClientOption {
	return func(c *RESTClient) {
		c.httpClient = client
	}
}

func NewRESTClient(baseURL string, apiKey string, options ...RESTClientOption) *RESTClient {
	ret := &RESTClient{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (c *RESTClient) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// do issues one table request. A nil out skips response decoding.
func (c *RESTClient) do(
	ctx context.Context,
	method string,
	table string,
	query url.Values,
	body interface{},
	out interface{},
	extraHeaders map[string]string,
) error {
	u := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	c.setHeaders(req)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "store request failed: %s %s", method, table)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("store returned status %d for %s %s: %s", resp.StatusCode, method, table, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode store response for %s %s", method, table)
	}

	return nil
}

type sessionRecord struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   *string   `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (r sessionRecord) toSession() *chat.Session {
	return &chat.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		AgentID:   r.AgentID,
		CreatedAt: r.CreatedAt,
	}
}

func (c *RESTClient) ListSessions(ctx context.Context, userID string) ([]*chat.Session, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("user_id", "eq."+userID)
	query.Set("order", "created_at.desc")

	var records []sessionRecord
	if err := c.do(ctx, http.MethodGet, tableSessions, query, nil, &records, nil); err != nil {
		return nil, err
	}

	sessions := make([]*chat.Session, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (c *RESTClient) GetSession(ctx context.Context, sessionID uuid.UUID) (*chat.Session, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", "eq."+sessionID.String())
	query.Set("limit", "1")

	var records []sessionRecord
	if err := c.do(ctx, http.MethodGet, tableSessions, query, nil, &records, nil); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("session %s not found", sessionID)
	}
	return records[0].toSession(), nil
}

func (c *RESTClient) InsertSession(ctx context.Context, draft SessionDraft) (*chat.Session, error) {
	// PostgREST inserts take an array and only echo the row back when asked.
	headers := map[string]string{"Prefer": "return=representation"}

	var records []sessionRecord
	err := c.do(ctx, http.MethodPost, tableSessions, nil, []SessionDraft{draft}, &records, headers)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("store did not return the created session")
	}
	return records[0].toSession(), nil
}

func (c *RESTClient) UpdateSessionAgent(ctx context.Context, sessionID uuid.UUID, agentID string) error {
	query := url.Values{}
	query.Set("id", "eq."+sessionID.String())

	body := map[string]string{"agent_id": agentID}
	return c.do(ctx, http.MethodPatch, tableSessions, query, body, nil, nil)
}

func (c *RESTClient) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	query := url.Values{}
	query.Set("id", "eq."+sessionID.String())

	return c.do(ctx, http.MethodDelete, tableSessions, query, nil, nil, nil)
}

type messageRecord struct {
	Role             chat.Role     `json:"role"`
	Content          string        `json:"content"`
	ChatID           uuid.UUID     `json:"chat_id"`
	CreatedAt        time.Time     `json:"created_at"`
	Sources          []chat.Source `json:"sources,omitempty"`
	WebSearchResults bool          `json:"web_search_results,omitempty"`
}

func (c *RESTClient) ListMessages(ctx context.Context, chatID uuid.UUID) ([]*chat.Message, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("chat_id", "eq."+chatID.String())
	query.Set("order", "created_at.asc")

	var records []messageRecord
	if err := c.do(ctx, http.MethodGet, tableMessages, query, nil, &records, nil); err != nil {
		return nil, err
	}

	messages := make([]*chat.Message, 0, len(records))
	for _, r := range records {
		msg := chat.NewMessage(r.Role, r.Content,
			chat.WithChatID(r.ChatID),
			chat.WithTime(r.CreatedAt),
		)
		if r.WebSearchResults {
			msg.Sources = r.Sources
			msg.WebSearchResults = true
		}
		msg.Persisted = true
		messages = append(messages, msg)
	}
	return messages, nil
}

func (c *RESTClient) InsertMessage(ctx context.Context, msg *chat.Message) error {
	record := messageRecord{
		Role:             msg.Role,
		Content:          msg.Content,
		ChatID:           msg.ChatID,
		CreatedAt:        msg.CreatedAt,
		Sources:          msg.Sources,
		WebSearchResults: msg.WebSearchResults,
	}
	return c.do(ctx, http.MethodPost, tableMessages, nil, []messageRecord{record}, nil, nil)
}

func (c *RESTClient) DeleteMessagesByChat(ctx context.Context, chatID uuid.UUID) error {
	query := url.Values{}
	query.Set("chat_id", "eq."+chatID.String())

	return c.do(ctx, http.MethodDelete, tableMessages, query, nil, nil, nil)
}

func (c *RESTClient) UniversityCredentials(ctx context.Context, userID string) (*chat.Credentials, error) {
	query := url.Values{}
	query.Set("select", "university_username,university_password,access_token,refresh_token,token_expiry")
	query.Set("user_id", "eq."+userID)
	query.Set("limit", "1")

	var records []chat.Credentials
	if err := c.do(ctx, http.MethodGet, tableCredentials, query, nil, &records, nil); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		// No rows is the normal case for users who never configured the
		// university integration.
		log.Debug().Str("user_id", userID).Msg("no university credentials configured")
		return nil, nil
	}
	return &records[0], nil
}
