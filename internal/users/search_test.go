package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSearcherEmptyQueryIssuesNoRequest(t *testing.T) {
	api := &fakeAPI{search: func(context.Context, string) (SearchResult, error) {
		t.Fatal("search must not reach the API")
		return SearchResult{}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, time.Millisecond)
	defer s.Close()

	got := s.Search(context.Background(), "   ")
	assert.Equal(t, SearchIdle, got.Phase)
	assert.Empty(t, got.Users)
	assert.False(t, got.Active())
	assert.Empty(t, api.Searches())
}

func TestSearcherNoMatches(t *testing.T) {
	api := &fakeAPI{search: func(context.Context, string) (SearchResult, error) {
		return SearchResult{Users: []User{}, Total: 0}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, time.Second)
	defer s.Close()

	got := s.Search(context.Background(), "zzz")
	assert.Equal(t, SearchResolved, got.Phase)
	assert.True(t, got.NoMatches())
	assert.NoError(t, got.Err)
	assert.True(t, got.Active())
}

func TestSearcherFailureEmptiesResults(t *testing.T) {
	api := &fakeAPI{search: func(_ context.Context, q string) (SearchResult, error) {
		if q == "ok" {
			return SearchResult{Users: seqUsers(1, 2), Total: 2}, nil
		}
		return SearchResult{}, &APIError{Status: 502, Message: "Unexpected response from backend"}
	}}
	s := NewSearcher(context.Background(), api, nil, time.Second)
	defer s.Close()

	require.Len(t, s.Search(context.Background(), "ok").Users, 2)

	got := s.Search(context.Background(), "bad")
	assert.ErrorIs(t, got.Err, ErrSearchFailed)
	assert.Equal(t, "Failed to search users", got.Err.Error())
	assert.Empty(t, got.Users)
	assert.False(t, got.NoMatches())
}

func TestSearcherKeepsNotice(t *testing.T) {
	api := &fakeAPI{search: func(context.Context, string) (SearchResult, error) {
		return SearchResult{Users: []User{}, Notice: "Search functionality not available"}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, time.Second)
	defer s.Close()

	got := s.Search(context.Background(), "ana")
	assert.Equal(t, "Search functionality not available", got.Notice)
	assert.NoError(t, got.Err)
}

func TestSearcherDiscardsStaleResponse(t *testing.T) {
	releaseSlow := make(chan struct{})
	slowStarted := make(chan struct{})
	api := &fakeAPI{search: func(_ context.Context, q string) (SearchResult, error) {
		if q == "a" {
			close(slowStarted)
			<-releaseSlow
			return SearchResult{Users: seqUsers(1, 5), Total: 5}, nil
		}
		return SearchResult{Users: seqUsers(7, 7), Total: 1}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, time.Second)
	defer s.Close()

	var (
		wg   sync.WaitGroup
		slow Overlay
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow = s.Search(context.Background(), "a")
	}()
	<-slowStarted

	fresh := s.Search(context.Background(), "ab")
	require.Equal(t, []int64{7}, ids(fresh.Users))

	close(releaseSlow)
	wg.Wait()

	assert.Equal(t, "ab", slow.Query, "stale call reports the current overlay")
	current := s.Snapshot()
	assert.Equal(t, "ab", current.Query)
	assert.Equal(t, []int64{7}, ids(current.Users))
}

func TestSearcherClearDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{search: func(context.Context, string) (SearchResult, error) {
		close(started)
		<-release
		return SearchResult{Users: seqUsers(1, 1), Total: 1}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, time.Second)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Search(context.Background(), "ana")
	}()
	<-started
	s.Clear()
	close(release)
	<-done

	assert.Equal(t, SearchIdle, s.Snapshot().Phase)
	assert.Empty(t, s.Snapshot().Users)
}

func TestSearcherInputDebounces(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	api := &fakeAPI{search: func(_ context.Context, q string) (SearchResult, error) {
		return SearchResult{Users: seqUsers(1, 1), Total: 1}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, 30*time.Millisecond)

	var (
		mu     sync.Mutex
		phases []SearchPhase
	)
	s.OnChange(func(o Overlay) {
		mu.Lock()
		phases = append(phases, o.Phase)
		mu.Unlock()
	})

	s.Input("a")
	s.Input("an")
	s.Input("ana")
	assert.Equal(t, "ana", s.Snapshot().Query)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ana"}, api.Searches())

	mu.Lock()
	assert.Equal(t, []SearchPhase{SearchSearching, SearchResolved}, phases)
	mu.Unlock()
	s.Close()
}

func TestSearcherSubmitSkipsWait(t *testing.T) {
	api := &fakeAPI{search: func(_ context.Context, q string) (SearchResult, error) {
		return SearchResult{Users: seqUsers(3, 3), Total: 1}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, time.Hour)
	defer s.Close()

	s.Input("bo")
	s.Submit()

	assert.Equal(t, []string{"bo"}, api.Searches())
	assert.Equal(t, SearchResolved, s.Snapshot().Phase)
}

func TestSearcherEmptiedInputDoesNotClearLaterSearch(t *testing.T) {
	api := &fakeAPI{search: func(_ context.Context, q string) (SearchResult, error) {
		return SearchResult{Users: seqUsers(1, 1), Total: 1}, nil
	}}
	s := NewSearcher(context.Background(), api, nil, 20*time.Millisecond)
	defer s.Close()

	s.Input("a")
	s.Input("")
	s.Search(context.Background(), "ana")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, SearchResolved, s.Snapshot().Phase)
	assert.Len(t, s.Snapshot().Users, 1)
	assert.Equal(t, []string{"ana"}, api.Searches())
}
