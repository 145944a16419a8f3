// Package datasets loads the read-only Instagram and Names tables shown next
// to the user dashboard.
package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const maxPayload = 8 << 20

// InstaRecord is one row of the Instagram dataset.
type InstaRecord struct {
	ID       int64  `json:"id"`
	Username string `json:"instagram_username"`
	Age      int    `json:"age"`
}

// NameRecord is one row of the Names dataset.
type NameRecord struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// StatusError reports a non-2xx answer from a dataset backend.
type StatusError struct {
	Source string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP error! status: %d", e.Source, e.Status)
}

// SafeMessage implements shared.SafeMessager.
func (e *StatusError) SafeMessage() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

var errMalformed = errors.New("malformed dataset payload")

// HTTPSource fetches raw dataset payloads.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource wraps client; nil uses http.DefaultClient.
func NewHTTPSource(client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client}
}

func (s *HTTPSource) get(ctx context.Context, source, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Source: source, Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayload))
}

// Instagram loads {baseURL}/ig sorted by id.
func (s *HTTPSource) Instagram(ctx context.Context, baseURL string) ([]InstaRecord, error) {
	body, err := s.get(ctx, "instagram", strings.TrimRight(baseURL, "/")+"/ig")
	if err != nil {
		return nil, err
	}
	records, err := decodeInstagram(body)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b InstaRecord) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return records, nil
}

// decodeInstagram accepts a bare array, {"users": [...]} or {"data": [...]}.
// Any other shape yields an empty table.
func decodeInstagram(body []byte) ([]InstaRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []InstaRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return list, nil
	}
	var env struct {
		Users []InstaRecord `json:"users"`
		Data  []InstaRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	switch {
	case env.Users != nil:
		return env.Users, nil
	case env.Data != nil:
		return env.Data, nil
	}
	return []InstaRecord{}, nil
}

// Names loads {baseURL}/dynamo sorted by name.
func (s *HTTPSource) Names(ctx context.Context, baseURL string) ([]NameRecord, error) {
	body, err := s.get(ctx, "names", strings.TrimRight(baseURL, "/")+"/dynamo")
	if err != nil {
		return nil, err
	}
	records, err := decodeNames(body)
	if err != nil {
		return nil, err
	}
	sortNames(records)
	return records, nil
}

// decodeNames unwraps the lambda envelope whose body is itself a JSON string.
// Unsuccessful envelopes yield an empty table.
func decodeNames(body []byte) ([]NameRecord, error) {
	var outer struct {
		Success        bool `json:"success"`
		LambdaResponse *struct {
			Body string `json:"body"`
		} `json:"lambdaResponse"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if !outer.Success || outer.LambdaResponse == nil || outer.LambdaResponse.Body == "" {
		return []NameRecord{}, nil
	}
	var inner struct {
		Success bool         `json:"success"`
		Items   []NameRecord `json:"items"`
	}
	if err := json.Unmarshal([]byte(outer.LambdaResponse.Body), &inner); err != nil {
		return nil, fmt.Errorf("%w: lambda body: %v", errMalformed, err)
	}
	if !inner.Success || inner.Items == nil {
		return []NameRecord{}, nil
	}
	return inner.Items, nil
}

func sortNames(records []NameRecord) {
	col := collate.New(language.English, collate.Loose)
	slices.SortStableFunc(records, func(a, b NameRecord) int {
		return col.CompareString(a.Name, b.Name)
	})
}
