package mobilizon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"eventbridge/internal/models"
)

// Client publishes events to a Mobilizon instance over its GraphQL API.
type Client struct {
	BaseURL  string
	Email    string
	Password string

	HTTP *http.Client

	mu    sync.RWMutex
	token string
}

// PublishResponse carries the platform identifiers assigned to a created event.
type PublishResponse struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

const loginMutation = `
mutation Login($email: String!, $password: String!) {
  login(email: $email, password: $password) {
    accessToken
  }
}`

const createEventMutation = `
mutation CreateEvent(
  $organizerActorId: ID!, $attributedToId: ID, $title: String!, $description: String!,
  $beginsOn: DateTime!, $endsOn: DateTime, $status: EventStatus, $visibility: EventVisibility,
  $joinOptions: EventJoinOptions, $tags: [String], $onlineAddress: String,
  $physicalAddress: AddressInput, $category: EventCategory
) {
  createEvent(
    organizerActorId: $organizerActorId, attributedToId: $attributedToId, title: $title,
    description: $description, beginsOn: $beginsOn, endsOn: $endsOn, status: $status,
    visibility: $visibility, joinOptions: $joinOptions, tags: $tags,
    onlineAddress: $onlineAddress, physicalAddress: $physicalAddress, category: $category
  ) {
    id
    uuid
  }
}`

const logoutMutation = `
mutation {
  logout
}`

func (c *Client) Login(ctx context.Context) error {
	if strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.Password) == "" {
		return errors.New("mobilizon credentials are empty")
	}
	var out struct {
		Login struct {
			AccessToken string `json:"accessToken"`
		} `json:"login"`
	}
	err := c.do(ctx, graphqlRequest{
		Query: loginMutation,
		Variables: map[string]any{
			"email":    c.Email,
			"password": c.Password,
		},
	}, &out, false)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out.Login.AccessToken) == "" {
		return errors.New("mobilizon login returned empty token")
	}
	c.mu.Lock()
	c.token = out.Login.AccessToken
	c.mu.Unlock()
	return nil
}

// CreateEvent uploads one candidate event and returns the assigned platform
// id and uuid.
func (c *Client) CreateEvent(ctx context.Context, ev models.CandidateEvent) (PublishResponse, error) {
	vars := map[string]any{
		"organizerActorId": ev.OrganizerActorID,
		"attributedToId":   ev.AttributedToID,
		"title":            ev.Title,
		"description":      ev.Description,
		"beginsOn":         ev.BeginsOn.Format(time.RFC3339),
		"status":           string(ev.Status),
		"visibility":       string(ev.Visibility),
		"joinOptions":      string(ev.JoinOptions),
		"tags":             ev.Tags,
	}
	if ev.EndsOn != nil {
		vars["endsOn"] = ev.EndsOn.Format(time.RFC3339)
	}
	if ev.OnlineAddress != "" {
		vars["onlineAddress"] = ev.OnlineAddress
	}
	if ev.Category != "" {
		vars["category"] = ev.Category
	}
	if addr := ev.PhysicalAddress; addr != nil {
		vars["physicalAddress"] = map[string]any{
			"geom":       addr.Geom,
			"street":     addr.Street,
			"locality":   addr.Locality,
			"postalCode": addr.PostalCode,
			"country":    addr.Country,
		}
	}

	var out struct {
		CreateEvent PublishResponse `json:"createEvent"`
	}
	err := c.do(ctx, graphqlRequest{Query: createEventMutation, Variables: vars}, &out, true)
	if err != nil {
		return PublishResponse{}, err
	}
	if strings.TrimSpace(out.CreateEvent.UUID) == "" {
		return PublishResponse{}, errors.New("mobilizon create event returned no uuid")
	}
	return out.CreateEvent, nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()
	if tok == "" {
		return nil
	}
	err := c.do(ctx, graphqlRequest{Query: logoutMutation}, nil, true)
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return err
}

func (c *Client) do(ctx context.Context, greq graphqlRequest, out any, authed bool) error {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return errors.New("mobilizon base url is empty")
	}
	body, err := json.Marshal(greq)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		tok, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mobilizon http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("mobilizon graphql: %s", envelope.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// ensureToken returns the current session token, logging in first when no
// session exists yet. Runs triggered outside the scheduled path rely on this.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()
	if tok != "" {
		return tok, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.RLock()
	tok = c.token
	c.mu.RUnlock()
	return tok, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}
