package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/userdash/internal/proxy"
	"github.com/odyssey-erp/userdash/internal/shared"
)

// API is the proxy surface the Store and the Overlay depend on.
type API interface {
	List(ctx context.Context, start, limit int) (Page, error)
	Create(ctx context.Context, in Input) (User, error)
	Update(ctx context.Context, id int64, in Input) (User, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string) (SearchResult, error)
}

// Forwarder is satisfied by *proxy.Service.
type Forwarder interface {
	Forward(ctx context.Context, req proxy.Request) proxy.Result
}

type roundTrip func(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error)

// Client speaks the /api/proxy JSON surface.
type Client struct {
	call roundTrip
}

var _ API = (*Client)(nil)

// NewHTTPClient returns a Client talking to a proxy at baseURL, for example
// "http://127.0.0.1:8080/api/proxy".
func NewHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")
	return &Client{call: func(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
		target := base + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := httpClient.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", shared.ErrBackendUnavailable, err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", shared.ErrBackendUnavailable, err)
		}
		return resp.StatusCode, payload, nil
	}}
}

// NewLocalClient returns a Client calling the proxy service in-process.
func NewLocalClient(fwd Forwarder) *Client {
	return &Client{call: func(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
		result := fwd.Forward(ctx, proxy.Request{
			Method:   method,
			Segments: strings.Split(strings.Trim(path, "/"), "/"),
			RawQuery: query.Encode(),
			Body:     body,
		})
		return result.Status, result.Body, nil
	}}
}

// List fetches one page of users.
func (c *Client) List(ctx context.Context, start, limit int) (Page, error) {
	query := url.Values{}
	query.Set("start", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))
	status, body, err := c.call(ctx, http.MethodGet, "/users", query, nil)
	if err != nil {
		return Page{}, err
	}
	if !success(status) {
		return Page{}, apiError(status, body, "Failed to fetch users")
	}
	return decodePage(body)
}

// Create posts a new user and returns the record with its backend id.
func (c *Client) Create(ctx context.Context, in Input) (User, error) {
	payload, err := json.Marshal(in.Normalize())
	if err != nil {
		return User{}, err
	}
	status, body, err := c.call(ctx, http.MethodPost, "/users", nil, payload)
	if err != nil {
		return User{}, err
	}
	if !success(status) {
		return User{}, apiError(status, body, "Failed to add user")
	}
	user, err := decodeUser(body)
	if err != nil {
		return User{}, err
	}
	if user.ID == 0 {
		return User{}, &APIError{Status: status, Message: "Backend returned a user without an id"}
	}
	return user, nil
}

// Update replaces the editable fields of user id. When the backend echoes no
// usable record the submitted fields are returned.
func (c *Client) Update(ctx context.Context, id int64, in Input) (User, error) {
	in = in.Normalize()
	payload, err := json.Marshal(in)
	if err != nil {
		return User{}, err
	}
	status, body, err := c.call(ctx, http.MethodPut, "/users/"+strconv.FormatInt(id, 10), nil, payload)
	if err != nil {
		return User{}, err
	}
	if !success(status) {
		return User{}, apiError(status, body, "Failed to update user")
	}
	if user, err := decodeUser(body); err == nil && user.ID == id {
		return user, nil
	}
	return User{ID: id, Name: in.Name, Email: in.Email}, nil
}

// Delete removes user id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	status, body, err := c.call(ctx, http.MethodDelete, "/users/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return err
	}
	if !success(status) {
		return apiError(status, body, "Failed to delete user")
	}
	return nil
}

// Search runs a search through the proxy.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	status, body, err := c.call(ctx, http.MethodGet, "/users/search", url.Values{"q": []string{query}}, nil)
	if err != nil {
		return SearchResult{}, err
	}
	if !success(status) {
		return SearchResult{}, apiError(status, body, "Failed to search users")
	}
	return decodeSearch(body)
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func apiError(status int, body []byte, fallback string) error {
	msg := proxy.ErrorMessage(body)
	if msg == "" {
		msg = fallback
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", shared.ErrNotFound, &APIError{Status: status, Message: msg})
	}
	return &APIError{Status: status, Message: msg}
}

type pageEnvelope struct {
	Users      []User `json:"users"`
	HasMore    *bool  `json:"hasMore"`
	TotalUsers *int   `json:"totalUsers"`
	NextStart  *int   `json:"nextStart"`
}

func decodePage(body []byte) (Page, error) {
	if isArray(body) {
		var list []User
		if err := json.Unmarshal(body, &list); err != nil {
			return Page{}, fmt.Errorf("decode user list: %w", err)
		}
		return Page{Users: list, HasMore: true, Total: -1}, nil
	}
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, fmt.Errorf("decode user page: %w", err)
	}
	page := Page{Users: env.Users, HasMore: true, Total: -1}
	if env.HasMore != nil {
		page.HasMore = *env.HasMore
	}
	if env.TotalUsers != nil {
		page.Total = *env.TotalUsers
	}
	if env.NextStart != nil {
		page.NextStart = *env.NextStart
	}
	return page, nil
}

func decodeUser(body []byte) (User, error) {
	var payload struct {
		User
		Wrapped *User `json:"user"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if payload.Wrapped != nil {
		return *payload.Wrapped, nil
	}
	return payload.User, nil
}

func decodeSearch(body []byte) (SearchResult, error) {
	if isArray(body) {
		var list []User
		if err := json.Unmarshal(body, &list); err != nil {
			return SearchResult{}, fmt.Errorf("decode search results: %w", err)
		}
		return SearchResult{Users: list, Total: len(list)}, nil
	}
	var env struct {
		Users []User `json:"users"`
		Total *int   `json:"total"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return SearchResult{}, fmt.Errorf("decode search results: %w", err)
	}
	result := SearchResult{Users: env.Users, Total: len(env.Users), Notice: env.Error}
	if env.Total != nil {
		result.Total = *env.Total
	}
	return result, nil
}

func isArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}
