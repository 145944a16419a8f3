package users

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/userdash/internal/debounce"
)

// SearchPhase is the lifecycle position of the search overlay.
type SearchPhase int

const (
	SearchIdle SearchPhase = iota
	SearchSearching
	SearchResolved
)

func (p SearchPhase) String() string {
	switch p {
	case SearchSearching:
		return "searching"
	case SearchResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// DefaultSearchDebounce is the quiet period before typed input is searched.
const DefaultSearchDebounce = time.Second

// ErrSearchFailed is reported when the proxy answered a search with an error
// status.
var ErrSearchFailed = errors.New("Failed to search users")

// Overlay is a point-in-time copy of the search overlay.
type Overlay struct {
	Query  string
	Phase  SearchPhase
	Users  []User
	Total  int
	Notice string
	Err    error
}

// Active reports whether a query is in effect, which hides the paginated list.
func (o Overlay) Active() bool {
	return o.Phase != SearchIdle
}

// NoMatches reports a resolved search that found nothing and did not fail.
func (o Overlay) NoMatches() bool {
	return o.Phase == SearchResolved && o.Err == nil && len(o.Users) == 0
}

// Searcher drives the search overlay. Results never touch the Store. Each
// request carries a generation; a response whose generation is no longer
// current is dropped.
type Searcher struct {
	api      API
	logger   *slog.Logger
	baseCtx  context.Context
	debounce *debounce.Debouncer[string]

	mu       sync.Mutex
	current  Overlay
	gen      uint64
	onChange func(Overlay)
}

// NewSearcher builds a Searcher. Debounced searches run under ctx.
func NewSearcher(ctx context.Context, api API, logger *slog.Logger, delay time.Duration) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	s := &Searcher{api: api, logger: logger, baseCtx: ctx}
	s.debounce = debounce.New(delay, func(q string) {
		s.Search(s.baseCtx, q)
	})
	return s
}

// OnChange registers fn to receive every applied state change. fn runs on the
// goroutine that applied the change and must not block.
func (s *Searcher) OnChange(fn func(Overlay)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Search runs query immediately and returns the resulting state. A blank
// query clears the overlay without contacting the backend.
func (s *Searcher) Search(ctx context.Context, query string) Overlay {
	if strings.TrimSpace(query) == "" {
		return s.Clear()
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.current = Overlay{Query: query, Phase: SearchSearching, Users: s.current.Users, Total: s.current.Total}
	snapshot := s.current
	notify := s.onChange
	s.mu.Unlock()
	if notify != nil {
		notify(snapshot)
	}

	result, err := s.api.Search(ctx, query)

	s.mu.Lock()
	if gen != s.gen {
		latest := s.current
		s.mu.Unlock()
		s.logger.Debug("discarding stale search response", slog.String("query", query))
		return latest
	}
	next := Overlay{Query: query, Phase: SearchResolved}
	if err != nil {
		s.logger.Warn("search users", slog.String("query", query), slog.Any("error", err))
		next.Err = ErrSearchFailed
	} else {
		next.Users = slices.Clone(result.Users)
		next.Total = result.Total
		next.Notice = result.Notice
	}
	s.current = next
	notify = s.onChange
	s.mu.Unlock()
	if notify != nil {
		notify(next)
	}
	return next
}

// Input records typed text. The search runs after the debounce window; an
// emptied box clears the overlay at once.
func (s *Searcher) Input(query string) {
	if strings.TrimSpace(query) == "" {
		s.debounce.Reset("")
		s.Clear()
		return
	}
	s.mu.Lock()
	s.current.Query = query
	s.mu.Unlock()
	s.debounce.Set(query)
}

// Submit searches the latest input now, skipping the debounce wait.
func (s *Searcher) Submit() {
	s.debounce.Trigger()
}

// Clear returns the overlay to idle. In-flight responses become stale.
func (s *Searcher) Clear() Overlay {
	s.mu.Lock()
	s.gen++
	s.current = Overlay{Phase: SearchIdle}
	snapshot := s.current
	notify := s.onChange
	s.mu.Unlock()
	if notify != nil {
		notify(snapshot)
	}
	return snapshot
}

// Snapshot returns the current overlay.
func (s *Searcher) Snapshot() Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.current
	out.Users = slices.Clone(out.Users)
	return out
}

// Close cancels a pending debounced search.
func (s *Searcher) Close() {
	s.debounce.Stop()
}
