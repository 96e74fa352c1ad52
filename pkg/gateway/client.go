package gateway

// Package gateway implements the client for the remote chat-completion
// endpoint. It exposes a single Complete call; every transport failure,
// non-success status or unparsable body collapses into one error value, the
// caller does not get to distinguish them.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/forptiter/chatcore/pkg/chat"
)

// HistoryMessage is the role/content pair the gateway expects for each prior
// message of the conversation.
type HistoryMessage struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// HistoryFromConversation flattens a message log into the wire history,
// skipping ephemeral UI notices.
func HistoryFromConversation(conversation chat.Conversation) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(conversation))
	for _, msg := range conversation {
		if msg.Ephemeral {
			continue
		}
		history = append(history, HistoryMessage{Role: msg.Role, Content: msg.Content})
	}
	return history
}

// Request is the completion request payload.
type Request struct {
	Message               string            `json:"message"`
	ConversationHistory   []HistoryMessage  `json:"conversation_history"`
	UserID                string            `json:"user_id"`
	UniversityCredentials *chat.Credentials `json:"university_credentials"`
	FileID                string            `json:"file_id,omitempty"`
	AgentID               string            `json:"agent_id,omitempty"`
	WebSearchEnabled      bool              `json:"web_search_enabled"`
	ChatID                string            `json:"chat_id"`
}

type AnswerType string

const (
	AnswerTypePlain     AnswerType = "plain"
	AnswerTypeWebSearch AnswerType = "web-search"
)

// Answer is the tagged union of gateway responses: a plain answer, or a
// web-search-backed answer carrying its source list.
type Answer interface {
	AnswerType() AnswerType
	Text() string
}

type PlainAnswer struct {
	Response string
}

func (a *PlainAnswer) AnswerType() AnswerType {
	return AnswerTypePlain
}

func (a *PlainAnswer) Text() string {
	return a.Response
}

var _ Answer = (*PlainAnswer)(nil)

type WebSearchAnswer struct {
	Response string
	Sources  []chat.Source
}

func (a *WebSearchAnswer) AnswerType() AnswerType {
	return AnswerTypeWebSearch
}

func (a *WebSearchAnswer) Text() string {
	return a.Response
}

var _ Answer = (*WebSearchAnswer)(nil)

type response struct {
	Response         string        `json:"response"`
	WebSearchResults bool          `json:"web_search_results"`
	Sources          []chat.Source `json:"sources"`
}

// Completer is the single-call interface the session manager depends on.
type Completer interface {
	Complete(ctx context.Context, req *Request) (Answer, error)
}

// Client is the HTTP implementation of Completer.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ Completer = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (c *Client) Complete(ctx context.Context, req *Request) (Answer, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("chat_id", req.ChatID).
		Str("agent_id", req.AgentID).
		Bool("web_search_enabled", req.WebSearchEnabled).
		Bool("has_credentials", req.UniversityCredentials != nil).
		Bool("has_file", req.FileID != "").
		Msg("sending chat completion request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "chat request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "invalid response format from gateway")
	}

	if parsed.WebSearchResults && len(parsed.Sources) > 0 {
		return &WebSearchAnswer{Response: parsed.Response, Sources: parsed.Sources}, nil
	}
	return &PlainAnswer{Response: parsed.Response}, nil
}
