// Package tracker owns the set of outstanding key requests. A request is
// created when a requester submits a comment and retired by exactly one of
// approval, denial or expiry. The tracker is the only shared mutable state in
// the system and serializes all transitions through atomic check-and-remove
// on its internal map; it never performs I/O under its lock.
package tracker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyPending rejects a second request for a key that already has
	// a live one.
	ErrAlreadyPending = errors.New("request already pending for this key")
	// ErrNotPending means the request was already approved, denied or
	// expired. Callers treat it as "expired", not as a fault.
	ErrNotPending = errors.New("no pending request for this key")
)

// Request is one outstanding key request. ApproverRef is an opaque handle to
// the approver-facing message, attached after the tracker accepts the
// request; the expiry callback receives it so the message can be retired.
type Request struct {
	Key         string
	Requester   string
	Comment     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ApproverRef any
}

// Clock abstracts time.Now so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry struct {
	req   *Request
	timer *time.Timer
}

// Tracker guards at most one pending request per key.
type Tracker struct {
	mu       sync.Mutex
	pending  map[string]*entry
	ttl      time.Duration
	clock    Clock
	onExpire func(Request)
}

// New creates a tracker whose requests expire after ttl. onExpire is invoked
// (outside the tracker lock) with a snapshot of each request that times out
// without being approved or denied; it may be nil.
func New(ttl time.Duration, onExpire func(Request)) *Tracker {
	return &Tracker{
		pending:  make(map[string]*entry),
		ttl:      ttl,
		clock:    systemClock{},
		onExpire: onExpire,
	}
}

// SetClock replaces the tracker's clock. Tests only.
func (t *Tracker) SetClock(c Clock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = c
}

// Submit registers a pending request for key and arms its expiry timer.
// Fails with ErrAlreadyPending if the key already has a live request.
func (t *Tracker) Submit(key, requester, comment string) (Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[key]; ok {
		return Request{}, ErrAlreadyPending
	}

	now := t.clock.Now()
	req := &Request{
		Key:       key,
		Requester: requester,
		Comment:   comment,
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}
	e := &entry{req: req}
	// The timer closes over the request pointer, not the key: if the key is
	// resolved and re-requested before a stale timer fires, the identity
	// check in expire makes the stale firing a no-op.
	e.timer = time.AfterFunc(t.ttl, func() { t.expire(req) })
	t.pending[key] = e
	return *req, nil
}

// Approve resolves the pending request for key and returns it for the caller
// to persist. Fails with ErrNotPending if the request was already resolved
// or expired.
func (t *Tracker) Approve(key string) (Request, error) {
	return t.take(key)
}

// Deny resolves the pending request for key without persistence. Same
// contract as Approve.
func (t *Tracker) Deny(key string) (Request, error) {
	return t.take(key)
}

// Bind attaches an opaque approver-message reference to the pending request
// for key. Reports whether the request was still pending.
func (t *Tracker) Bind(key string, ref any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.pending[key]
	if !ok {
		return false
	}
	e.req.ApproverRef = ref
	return true
}

// Pending reports whether key has a live request.
func (t *Tracker) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[key]
	return ok
}

// Len returns the number of outstanding requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) take(key string) (Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.pending[key]
	if !ok {
		return Request{}, ErrNotPending
	}
	delete(t.pending, key)
	e.timer.Stop()
	return *e.req, nil
}

// expire removes req if it is still the live request for its key. Firing
// after resolution, or after the key was re-requested, is a no-op.
func (t *Tracker) expire(req *Request) {
	t.mu.Lock()
	e, ok := t.pending[req.Key]
	if !ok || e.req != req {
		t.mu.Unlock()
		return
	}
	delete(t.pending, req.Key)
	snapshot := *e.req
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}
