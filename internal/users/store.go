package users

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/odyssey-erp/userdash/internal/shared"
)

// State is a point-in-time copy of the Store.
type State struct {
	Users   []User
	Cursor  shared.Cursor
	Loading bool
	Loaded  bool
	Err     error
}

// Store holds the single shared copy of the user list. Every view reads from
// it; writes go through the API and are applied when the call succeeds.
type Store struct {
	api    API
	logger *slog.Logger

	mu       sync.Mutex
	users    []User
	cursor   shared.Cursor
	loading  int
	loaded   bool
	err      error
	deleting map[int64]struct{}
}

// NewStore builds an empty Store.
func NewStore(api API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:      api,
		logger:   logger,
		cursor:   shared.NewCursor(PageSize),
		deleting: make(map[int64]struct{}),
	}
}

// FetchInitial replaces the list with the first page.
func (s *Store) FetchInitial(ctx context.Context) error {
	s.beginLoad()
	page, err := s.api.List(ctx, 0, PageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.err = err
		s.logger.Error("fetch users", slog.Any("error", err))
		return err
	}
	users := dedupe(nil, page.Users)
	cursor := shared.NewCursor(PageSize).Advance(len(page.Users), page.NextStart, page.HasMore)
	if page.Total < 0 && len(page.Users) > PageSize {
		// More rows than asked for: an unpaged listing returned everything.
		cursor.HasMore = false
	}
	cursor.Total = resolveTotal(page.Total, 0, len(users))

	s.users = users
	s.cursor = cursor
	s.loaded = true
	s.err = nil
	return nil
}

// LoadMore fetches the next page and appends it. It does nothing while a load
// is in flight or when the backend reported no more rows.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading > 0 || !s.cursor.HasMore {
		s.mu.Unlock()
		return nil
	}
	s.loading++
	start := s.cursor.Next
	s.mu.Unlock()

	page, err := s.api.List(ctx, start, PageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.err = err
		s.logger.Error("load more users", slog.Int("start", start), slog.Any("error", err))
		return err
	}
	users := dedupe(s.users, page.Users)
	cursor := s.cursor.Advance(len(page.Users), page.NextStart, page.HasMore)
	cursor.Total = resolveTotal(page.Total, s.cursor.Total, len(users))
	if len(users) == len(s.users) {
		// A backend that ignores start keeps resending rows we already hold.
		cursor.HasMore = false
	}

	s.users = users
	s.cursor = cursor
	s.loaded = true
	s.err = nil
	return nil
}

// Create adds a user through the API and inserts the returned record.
func (s *Store) Create(ctx context.Context, in Input) (User, error) {
	user, err := s.api.Create(ctx, in)
	if err != nil {
		s.logger.Warn("create user", slog.Any("error", err))
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.users, user.ID) >= 0 {
		s.users = replaceUser(s.users, user)
		return user, nil
	}
	users := append(slices.Clone(s.users), user)
	slices.SortStableFunc(users, func(a, b User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	s.users = users
	s.cursor.Total++
	return user, nil
}

// Update changes a user through the API and replaces the matching entry.
func (s *Store) Update(ctx context.Context, id int64, in Input) (User, error) {
	user, err := s.api.Update(ctx, id, in)
	if err != nil {
		s.logger.Warn("update user", slog.Int64("id", id), slog.Any("error", err))
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = replaceUser(s.users, user)
	return user, nil
}

// Remove deletes a user through the API and drops it from the list.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.deleting[id] = struct{}{}
	s.mu.Unlock()

	err := s.api.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleting, id)
	if err != nil {
		s.logger.Warn("delete user", slog.Int64("id", id), slog.Any("error", err))
		return err
	}
	idx := indexOf(s.users, id)
	if idx < 0 {
		return nil
	}
	s.users = slices.Delete(slices.Clone(s.users), idx, idx+1)
	if s.cursor.Total > 0 {
		s.cursor.Total--
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Users:   slices.Clone(s.users),
		Cursor:  s.cursor,
		Loading: s.loading > 0,
		Loaded:  s.loaded,
		Err:     s.err,
	}
}

// Get returns the user with the given id from the loaded list.
func (s *Store) Get(id int64) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := indexOf(s.users, id); idx >= 0 {
		return s.users[idx], true
	}
	return User{}, false
}

// HasMore reports whether the backend claims more rows.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.HasMore
}

// IsLoading reports whether a list fetch is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// IsDeleting reports whether a delete of id is in flight.
func (s *Store) IsDeleting(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.deleting[id]
	return ok
}

func (s *Store) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

// dedupe returns a fresh slice of existing followed by the incoming users
// whose ids are not yet present.
func dedupe(existing, incoming []User) []User {
	seen := make(map[int64]struct{}, len(existing)+len(incoming))
	out := make([]User, 0, len(existing)+len(incoming))
	for _, u := range existing {
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	for _, u := range incoming {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

func resolveTotal(reported, previous, loaded int) int {
	if reported >= 0 {
		return reported
	}
	return max(previous, loaded)
}

func indexOf(users []User, id int64) int {
	return slices.IndexFunc(users, func(u User) bool { return u.ID == id })
}

func replaceUser(users []User, user User) []User {
	idx := indexOf(users, user.ID)
	if idx < 0 {
		return users
	}
	out := slices.Clone(users)
	out[idx] = user
	return out
}
