package users

import (
	"context"
	"sync"
)

type listCall struct {
	Start int
	Limit int
}

// fakeAPI is an in-memory API. Hooks override individual operations.
type fakeAPI struct {
	mu        sync.Mutex
	listCalls []listCall
	searches  []string
	deletes   []int64

	list   func(start, limit int) (Page, error)
	create func(in Input) (User, error)
	update func(id int64, in Input) (User, error)
	del    func(id int64) error
	search func(ctx context.Context, q string) (SearchResult, error)
}

func (f *fakeAPI) List(_ context.Context, start, limit int) (Page, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, listCall{Start: start, Limit: limit})
	f.mu.Unlock()
	if f.list == nil {
		return Page{Total: -1}, nil
	}
	return f.list(start, limit)
}

func (f *fakeAPI) Create(_ context.Context, in Input) (User, error) {
	return f.create(in)
}

func (f *fakeAPI) Update(_ context.Context, id int64, in Input) (User, error) {
	if f.update == nil {
		return User{ID: id, Name: in.Name, Email: in.Email}, nil
	}
	return f.update(id, in)
}

func (f *fakeAPI) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	f.mu.Unlock()
	if f.del == nil {
		return nil
	}
	return f.del(id)
}

func (f *fakeAPI) Search(ctx context.Context, q string) (SearchResult, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()
	return f.search(ctx, q)
}

func (f *fakeAPI) ListCalls() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.listCalls...)
}

func (f *fakeAPI) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func seqUsers(from, to int64) []User {
	out := make([]User, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, User{ID: id, Name: "user", Email: "user@example.com"})
	}
	return out
}

func ids(users []User) []int64 {
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}
