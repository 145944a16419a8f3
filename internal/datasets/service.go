package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Dataset names used for cache keys and job payloads.
const (
	Instagram = "instagram"
	Names     = "names"
)

// Snapshot is a fetched table with the time it was loaded.
type Snapshot[T any] struct {
	Records   []T       `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Config wires the Service.
type Config struct {
	BackendURL string
	NamesURL   string
	Source     *HTTPSource
	Cache      *Cache
	Logger     *slog.Logger
	Now        func() time.Time
}

// loadTimeout bounds a shared dataset load once it is detached from callers.
const loadTimeout = 30 * time.Second

// Service serves both datasets through the cache. Concurrent misses for the
// same dataset share one backend call.
type Service struct {
	backendURL string
	namesURL   string
	source     *HTTPSource
	cache      *Cache
	logger     *slog.Logger
	now        func() time.Time
	group      singleflight.Group
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	source := cfg.Source
	if source == nil {
		source = NewHTTPSource(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		backendURL: cfg.BackendURL,
		namesURL:   cfg.NamesURL,
		source:     source,
		cache:      cfg.Cache,
		logger:     logger,
		now:        now,
	}
}

// Instagram returns the Instagram table. refresh drops the cached copy first.
func (s *Service) Instagram(ctx context.Context, refresh bool) (Snapshot[InstaRecord], error) {
	var snap Snapshot[InstaRecord]
	err := s.fetch(ctx, Instagram, refresh, &snap, func(ctx context.Context) (any, error) {
		records, err := s.source.Instagram(ctx, s.backendURL)
		if err != nil {
			return nil, err
		}
		return Snapshot[InstaRecord]{Records: records, FetchedAt: s.now().UTC()}, nil
	})
	return snap, err
}

// Names returns the Names table. refresh drops the cached copy first.
func (s *Service) Names(ctx context.Context, refresh bool) (Snapshot[NameRecord], error) {
	var snap Snapshot[NameRecord]
	err := s.fetch(ctx, Names, refresh, &snap, func(ctx context.Context) (any, error) {
		records, err := s.source.Names(ctx, s.namesURL)
		if err != nil {
			return nil, err
		}
		return Snapshot[NameRecord]{Records: records, FetchedAt: s.now().UTC()}, nil
	})
	return snap, err
}

// Warm refreshes the named datasets concurrently; no names means all of them.
func (s *Service) Warm(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = []string{Instagram, Names}
	}
	for _, name := range names {
		if name != Instagram && name != Names {
			return fmt.Errorf("unknown dataset %q", name)
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		switch name {
		case Instagram:
			g.Go(func() error {
				_, err := s.Instagram(ctx, true)
				return err
			})
		case Names:
			g.Go(func() error {
				_, err := s.Names(ctx, true)
				return err
			})
		}
	}
	return g.Wait()
}

func (s *Service) fetch(ctx context.Context, dataset string, refresh bool, dest any, loader func(context.Context) (any, error)) error {
	if refresh {
		if err := s.cache.Bump(ctx, dataset); err != nil {
			s.logger.Warn("dataset cache bump failed", slog.String("dataset", dataset), slog.Any("error", err))
		}
	}
	// The shared load outlives any one caller; each caller waits on its own ctx.
	flight := s.group.DoChan(dataset, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		var raw json.RawMessage
		err := s.cache.FetchJSON(loadCtx, dataset, &raw, loader)
		return raw, err
	})
	var err error
	select {
	case res := <-flight:
		err = res.Err
		if err == nil {
			err = json.Unmarshal(res.Val.(json.RawMessage), dest)
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Error("dataset fetch failed", slog.String("dataset", dataset), slog.Any("error", err))
		return fmt.Errorf("fetch %s: %w", dataset, err)
	}
	return nil
}
