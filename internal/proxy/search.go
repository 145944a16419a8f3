package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// FallbackLimit is the number of unfiltered users fetched when every search
// strategy fails.
const FallbackLimit = 1000

// Strategy is one backend endpoint shape that may answer a search.
type Strategy struct {
	Name string
	Path func(query string) string
}

// DefaultStrategies returns the endpoint shapes tried, in order, before
// falling back to local filtering.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "users_search", Path: func(q string) string { return "/users/search?" + encodeParam("q", q) }},
		{Name: "users_search_param", Path: func(q string) string { return "/users?" + encodeParam("search", q) }},
		{Name: "users_q_param", Path: func(q string) string { return "/users?" + encodeParam("q", q) }},
		{Name: "search_users", Path: func(q string) string { return "/search/users?" + encodeParam("q", q) }},
	}
}

func encodeParam(key, value string) string {
	return url.Values{key: []string{value}}.Encode()
}

var errNoUserList = errors.New("response carries no user list")

// Search resolves a user search. It always answers 200 so the UI never hard
// fails: an empty query short-circuits, strategies are tried in order under a
// shared budget, then the unfiltered listing is filtered locally.
func (s *Service) Search(ctx context.Context, query string) Result {
	if strings.TrimSpace(query) == "" {
		return Result{Status: http.StatusOK, Body: []byte(`{"users":[]}`)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.searchBudget)
	defer cancel()

	logger := s.logger.With(slog.String("query", query))
	for _, strategy := range s.strategies {
		path := strategy.Path(query)
		resp, err := s.do(ctx, http.MethodGet, path, nil)
		switch {
		case err != nil:
			s.metrics.ObserveSearch(strategy.Name, "error")
			logger.Debug("search strategy failed", slog.String("strategy", strategy.Name), slog.Any("error", err))
			continue
		case resp.ok() && resp.isJSON() && json.Valid(resp.body):
			s.metrics.ObserveSearch(strategy.Name, "accepted")
			logger.Info("search strategy accepted", slog.String("strategy", strategy.Name))
			return Result{Status: resp.status, Body: resp.body}
		default:
			s.metrics.ObserveSearch(strategy.Name, "rejected")
			logger.Debug("search strategy rejected", slog.String("strategy", strategy.Name), slog.Int("status", resp.status))
		}
	}

	logger.Info("all search strategies failed, filtering locally")
	body, err := s.searchLocally(ctx, query)
	if err == nil {
		s.metrics.ObserveSearch("fallback", "accepted")
		return Result{Status: http.StatusOK, Body: body}
	}
	s.metrics.ObserveSearch("fallback", "error")
	logger.Error("fallback search failed", slog.Any("error", err))

	return Result{Status: http.StatusOK, Body: []byte(`{"error":"Search functionality not available","users":[]}`)}
}

func (s *Service) searchLocally(ctx context.Context, query string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, "/users?"+encodeParam("limit", strconv.Itoa(FallbackLimit)), nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("fallback listing returned status %d", resp.status)
	}
	records, err := decodeUserList(resp.body)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(query)
	matched := make([]json.RawMessage, 0, len(records))
	for _, raw := range records {
		var rec struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if strings.Contains(fold.String(rec.Name), needle) || strings.Contains(fold.String(rec.Email), needle) {
			matched = append(matched, raw)
		}
	}
	return json.Marshal(struct {
		Users []json.RawMessage `json:"users"`
		Total int               `json:"total"`
	}{Users: matched, Total: len(matched)})
}

// decodeUserList accepts either {"users": [...]} or a bare array.
func decodeUserList(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var envelope struct {
		Users []json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Users == nil {
		return nil, errNoUserList
	}
	return envelope.Users, nil
}
