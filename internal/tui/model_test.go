package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/userdash/internal/users"
)

type backend struct {
	mu      sync.Mutex
	total   int
	deleted []string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users":
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list := []users.User{}
		for id := start + 1; id <= min(start+limit, b.total); id++ {
			list = append(list, users.User{ID: int64(id), Name: fmt.Sprintf("user %d", id), Email: "u@x.io"})
		}
		next := start + len(list)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": list, "hasMore": next < b.total, "totalUsers": b.total, "nextStart": next,
		})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/users/"):
		b.deleted = append(b.deleted, strings.TrimPrefix(r.URL.Path, "/users/"))
		b.total--
		_, _ = w.Write([]byte(`{"message":"deleted"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Resource not found"}`))
	}
}

func newTestModel(t *testing.T, total int) (Model, *backend) {
	t.Helper()
	b := &backend{total: total}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	api := users.NewHTTPClient(srv.URL, nil)
	searcher := users.NewSearcher(context.Background(), api, nil, time.Hour)
	t.Cleanup(searcher.Close)
	m := New(context.Background(), users.NewStore(api, nil), searcher)
	return step(t, m, m.fetchInitial()()), b
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelLoadsFirstPage(t *testing.T) {
	m, _ := newTestModel(t, 25)
	assert.Len(t, m.table.Rows(), 10)
	assert.Contains(t, m.View(), "Showing 10 of 25")
	assert.Equal(t, "10", m.observer.Sentinel())
}

func TestModelLoadsMoreAtLastRow(t *testing.T) {
	m, _ := newTestModel(t, 15)

	m.table.SetCursor(3)
	assert.Nil(t, m.maybeLoadMore(), "rows above the sentinel do not page")

	m.table.SetCursor(9)
	cmd := m.maybeLoadMore()
	require.NotNil(t, cmd)
	assert.Nil(t, m.maybeLoadMore(), "a load already in flight is not repeated")

	m = step(t, m, cmd())
	assert.Len(t, m.table.Rows(), 15)
	assert.Empty(t, m.observer.Sentinel(), "exhausted list disarms the sentinel")
	assert.Contains(t, m.View(), "Showing 15 of 15")
}

func TestModelFormValidatesInline(t *testing.T) {
	m, _ := newTestModel(t, 3)
	m = step(t, m, key("n"))
	require.Equal(t, modeForm, m.mode)

	m.form.inputs[0].SetValue("Ana")
	m.form.inputs[1].SetValue("not-an-email")
	next, cmd := m.Update(key("enter"))
	m = next.(Model)

	assert.Nil(t, cmd, "invalid input is not submitted")
	assert.Equal(t, "Please enter a valid email", m.form.errs.Email)
	assert.Contains(t, m.View(), "Please enter a valid email")
}

func TestModelDeleteAfterConfirm(t *testing.T) {
	m, b := newTestModel(t, 3)
	m.table.SetCursor(1)

	m = step(t, m, key("d"))
	require.Equal(t, modeConfirm, m.mode)
	assert.Contains(t, m.View(), "Delete user #2? (y/n)")

	next, cmd := m.Update(key("y"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, "deleting", m.table.Rows()[1][3])

	m = step(t, m, cmd())
	assert.Equal(t, []string{"2"}, b.deleted)
	assert.Len(t, m.table.Rows(), 2)
	assert.Contains(t, m.View(), "User deleted")
}

func TestModelDeclinedConfirmKeepsRow(t *testing.T) {
	m, b := newTestModel(t, 3)
	m = step(t, m, key("d"))
	next, cmd := m.Update(key("n"))
	m = next.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, modeList, m.mode)
	assert.Empty(t, b.deleted)
	assert.Len(t, m.table.Rows(), 3)
}
