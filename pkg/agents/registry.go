package agents

// Package agents fetches the list of selectable answering agents from the
// registry endpoint. The contract with callers is that there is always
// something selectable: when the registry is unreachable the built-in
// default agent stands in.

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/forptiter/chatcore/pkg/chat"
)

// DefaultAgent returns the built-in fallback agent.
func DefaultAgent() chat.Agent {
	return chat.Agent{
		ID:          "mistral",
		DisplayName: "Mistral (Default)",
		Description: "Mistral Small 3.1 - 24B instruction model. Great for general questions.",
		Avatar:      "🧠",
		IsDefault:   true,
	}
}

// Client lists the available agents.
type Client interface {
	List(ctx context.Context) ([]chat.Agent, error)
}

// ListWithFallback never fails: registry errors and empty listings degrade
// to the single built-in default agent.
func ListWithFallback(ctx context.Context, client Client) []chat.Agent {
	agents, err := client.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list agents, falling back to default")
		return []chat.Agent{DefaultAgent()}
	}
	if len(agents) == 0 {
		return []chat.Agent{DefaultAgent()}
	}
	return agents
}

// Lookup resolves one agent by id from the registry's current listing.
func Lookup(ctx context.Context, client Client, agentID string) (*chat.Agent, error) {
	agents, err := client.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range agents {
		if agents[i].ID == agentID {
			return &agents[i], nil
		}
	}
	return nil, errors.Errorf("agent %s not found in registry", agentID)
}

// Registry is the HTTP implementation of Client.
type Registry struct {
	httpClient *http.Client
	baseURL    string
}

var _ Client = (*Registry)(nil)

type RegistryOption func(*Registry)

func WithHTTPClient(client *http.Client) RegistryOption {
	return func(r *Registry) {
		r.httpClient = client
	}
}

func NewRegistry(baseURL string, options ...RegistryOption) *Registry {
	ret := &Registry{
		httpClient: &http.Client{},
		baseURL:    baseURL,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

type listResponse struct {
	Agents []chat.Agent `json:"agents"`
}

func (r *Registry) List(ctx context.Context) ([]chat.Agent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/agents", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create agents request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "agents request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("agent registry returned status %d", resp.StatusCode)
	}

	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode agents response")
	}

	return parsed.Agents, nil
}
