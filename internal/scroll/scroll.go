// Package scroll decides when a visible sentinel row should load the next
// page of a list.
package scroll

import "sync"

// Options wires an Observer to the list it pages.
type Options struct {
	HasMore   func() bool
	IsLoading func() bool
	// OnLoadMore is optional; callers may act on Visible's result instead.
	OnLoadMore func()
	// Enabled reports whether paging is active; nil means always enabled.
	Enabled func() bool
}

// Observer watches one sentinel at a time. Reports about any other sentinel
// are stale and ignored.
type Observer struct {
	mu           sync.Mutex
	opts         Options
	sentinel     string
	observing    bool
	disconnected bool
}

// NewObserver returns an Observer with no sentinel.
func NewObserver(opts Options) *Observer {
	return &Observer{opts: opts}
}

// Observe arms the observer on key, replacing any previous sentinel.
func (o *Observer) Observe(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disconnected {
		return
	}
	o.sentinel = key
	o.observing = key != ""
}

// Sentinel returns the key currently observed.
func (o *Observer) Sentinel() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sentinel
}

// Visible reports that the sentinel identified by key entered the viewport.
// When key is the observed sentinel, paging is enabled, no load is in flight
// and more rows exist, it invokes OnLoadMore and returns true.
func (o *Observer) Visible(key string) bool {
	o.mu.Lock()
	armed := o.observing && !o.disconnected && key == o.sentinel
	opts := o.opts
	o.mu.Unlock()
	if !armed {
		return false
	}
	if opts.Enabled != nil && !opts.Enabled() {
		return false
	}
	if opts.IsLoading != nil && opts.IsLoading() {
		return false
	}
	if opts.HasMore != nil && !opts.HasMore() {
		return false
	}
	if opts.OnLoadMore != nil {
		opts.OnLoadMore()
	}
	return true
}

// Disconnect stops observing for good; later reports are ignored.
func (o *Observer) Disconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnected = true
	o.observing = false
	o.sentinel = ""
}
