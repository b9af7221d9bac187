package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/outcome"
)

// HTTPClient talks to hazel serve over its JSON API.
type HTTPClient struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPClient targets baseURL, e.g. "http://localhost:8080". A non-empty
// token is sent as a bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{base: strings.TrimRight(baseURL, "/"), token: token, client: &http.Client{}}
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	resp, err := call[struct {
		Status string `json:"status"`
	}](ctx, c, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) ListCircles(ctx context.Context) ([]*model.Circle, error) {
	resp, err := call[struct {
		Circles []*model.Circle `json:"circles"`
	}](ctx, c, http.MethodGet, "/v1/circles", nil)
	if err != nil {
		return nil, err
	}
	return resp.Circles, nil
}

func (c *HTTPClient) CreateBacklogItem(ctx context.Context, req *outcome.BacklogRequest) (*model.Record, error) {
	return call[model.Record](ctx, c, http.MethodPost, circlePath(req.Circle, "backlog"), req)
}

func (c *HTTPClient) StartMeeting(ctx context.Context, circle string, participants []string) (*meeting.Session, error) {
	body := map[string][]string{"participants": participants}
	return call[meeting.Session](ctx, c, http.MethodPut, circlePath(circle, "meeting"), body)
}

func (c *HTTPClient) GetMeeting(ctx context.Context, circle string) (*meeting.Session, error) {
	return call[meeting.Session](ctx, c, http.MethodGet, circlePath(circle, "meeting"), nil)
}

func (c *HTTPClient) RecordOutcome(ctx context.Context, req *outcome.OutcomeRequest) (*model.Record, error) {
	return call[model.Record](ctx, c, http.MethodPost, "/v1/decisions", req)
}

func (c *HTTPClient) GetDecision(ctx context.Context, id string) (*Decision, error) {
	return call[Decision](ctx, c, http.MethodGet, decisionPath(id, ""), nil)
}

func (c *HTTPClient) EditField(ctx context.Context, id string, req *EditRequest) (*model.Record, error) {
	return call[model.Record](ctx, c, http.MethodPatch, decisionPath(id, "fields"), req)
}

func (c *HTTPClient) EditControl(ctx context.Context, id string, req *EditRequest) (*model.Record, error) {
	return call[model.Record](ctx, c, http.MethodPatch, decisionPath(id, "meta"), req)
}

func (c *HTTPClient) FollowUps(ctx context.Context) (*FollowUps, error) {
	return call[FollowUps](ctx, c, http.MethodGet, "/v1/followups", nil)
}

func (c *HTTPClient) ListLanes(ctx context.Context) ([]lifecycle.LaneStatus, error) {
	resp, err := call[struct {
		Lanes []lifecycle.LaneStatus `json:"lanes"`
	}](ctx, c, http.MethodGet, "/v1/lanes", nil)
	if err != nil {
		return nil, err
	}
	return resp.Lanes, nil
}

func (c *HTTPClient) RunLane(ctx context.Context, lane string) (*lifecycle.Report, error) {
	return call[lifecycle.Report](ctx, c, http.MethodPost, "/v1/lanes/"+url.PathEscape(lane)+"/run", nil)
}

func (c *HTTPClient) Ask(ctx context.Context, question string) (string, error) {
	resp, err := call[struct {
		Answer string `json:"answer"`
	}](ctx, c, http.MethodPost, "/v1/ask", map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func circlePath(circle, sub string) string {
	return "/v1/circles/" + url.PathEscape(circle) + "/" + sub
}

func decisionPath(id, sub string) string {
	p := "/v1/decisions/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

// APIError is a non-2xx response. Message is the server's "error" field,
// or the raw body when the server did not answer with JSON.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// call sends body as JSON and decodes the response into a new T. A 204
// yields a zero T.
func call[T any](ctx context.Context, c *HTTPClient, method, path string, body any) (*T, error) {
	raw, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return out, nil
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return nil, apiErr
	}
	return raw, nil
}

var _ HazelClient = (*HTTPClient)(nil)
