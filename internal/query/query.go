// Package query caches remote reads and tracks remote mutations.
//
// Reads are registered under a key and fetched on demand; Invalidate marks
// a key stale so the next Query refetches it. Concurrent fetches of the
// same key share one call.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle of a query or mutation.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrUnknownKey is returned by Query for a key with no registered fetcher.
var ErrUnknownKey = errors.New("query: unknown key")

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Result is a snapshot of a cached key.
type Result struct {
	Data      any
	Status    Status
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

type entry struct {
	fetch     FetchFunc
	data      any
	hasData   bool
	status    Status
	err       error
	updatedAt time.Time
	stale     bool
	version   uint64
}

// Client is an in-memory query cache.
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	log     *slog.Logger
}

// NewClient creates an empty cache. A nil logger discards.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{
		entries: make(map[string]*entry),
		log:     log,
	}
}

// Register associates key with a fetcher. Re-registering replaces the
// fetcher and marks any cached value stale.
func (c *Client) Register(key string, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.entries[key] = &entry{fetch: fetch, stale: true}
		return
	}
	e.fetch = fetch
	e.stale = true
}

// Query returns the cached value for key, fetching it when missing or
// stale. A failed fetch keeps the previously cached data.
func (c *Client) Query(ctx context.Context, key string) Result {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.fetch == nil {
		c.mu.Unlock()
		return Result{Status: StatusError, Err: fmt.Errorf("%w: %s", ErrUnknownKey, key)}
	}
	if e.hasData && !e.stale {
		r := e.result()
		c.mu.Unlock()
		return r
	}
	e.status = StatusPending
	fetch := e.fetch
	version := e.version
	c.mu.Unlock()

	_, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		c.store(key, version, v, err)
		return v, err
	})
	if shared {
		c.log.Debug("query shared", "key", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.entries[key].result()
	if err != nil {
		r.Err = err
		r.Status = StatusError
	}
	return r
}

func (c *Client) store(key string, version uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if err != nil {
		e.status = StatusError
		e.err = err
		c.log.Debug("query failed", "key", key, "err", err)
		return
	}

	e.data = v
	e.hasData = true
	e.status = StatusSuccess
	e.err = nil
	e.updatedAt = time.Now()
	// an invalidation that landed mid-fetch keeps the entry stale
	e.stale = e.version != version
	c.log.Debug("query stored", "key", key)
}

// Peek returns the cached value without fetching.
func (c *Client) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// State returns the current snapshot of key without fetching.
func (c *Client) State(key string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Result{}
	}
	return e.result()
}

// Invalidate marks key stale so the next Query refetches it.
func (c *Client) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.stale = true
	e.version++
	c.log.Debug("query invalidated", "key", key)
}

func (e *entry) result() Result {
	return Result{
		Data:      e.data,
		Status:    e.status,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     e.stale,
	}
}

// Get runs Query and asserts the cached value to T.
func Get[T any](ctx context.Context, c *Client, key string) (T, error) {
	var zero T
	r := c.Query(ctx, key)
	if r.Err != nil {
		return zero, r.Err
	}
	v, ok := r.Data.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: unexpected type %T", key, r.Data)
	}
	return v, nil
}

// Cached returns the cached value for key as T without fetching.
func Cached[T any](c *Client, key string) (T, bool) {
	var zero T
	v, ok := c.Peek(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
