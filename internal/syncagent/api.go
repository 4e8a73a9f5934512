package syncagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vovakirdan/ticketsync-server/internal/proto"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

// ErrNotFound is matched by an APIError for a missing ticket.
var ErrNotFound = errors.New("ticket not found")

const maxResponseBytes = 4 << 20

// APIError is a non-2xx response from the ticket API.
// Use errors.As to read the status code.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticket api: %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// apiClient talks to the ticket CRUD endpoints.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(baseURL, token string, httpClient *http.Client) *apiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (c *apiClient) getTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	var doc proto.Ticket
	if err := c.do(ctx, http.MethodGet, ticketPath(id), nil, &doc); err != nil {
		return ticket.Ticket{}, err
	}
	return doc.Domain(), nil
}

func (c *apiClient) updateTicket(ctx context.Context, id string, body proto.TicketUpdate) (ticket.Ticket, error) {
	var doc proto.Ticket
	if err := c.do(ctx, http.MethodPut, ticketPath(id), body, &doc); err != nil {
		return ticket.Ticket{}, err
	}
	return doc.Domain(), nil
}

func ticketPath(id string) string {
	return "/api/complaints/" + url.PathEscape(id)
}

// do performs a JSON request. On 2xx the body is decoded into out; otherwise
// an *APIError is returned.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
