// Package workflow sequences key requests across the resolver, the request
// tracker and the record store. It owns the custody rules: one live request
// per key, one open custody entry per key, and exactly one of approval,
// denial or expiry retiring each request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"keywarden/i18n"
	"keywarden/resolver"
	"keywarden/store"
	"keywarden/tracker"
)

var (
	// ErrExpired covers approve/deny racing a timer or a prior resolution.
	// Reported to the approver as "request expired", never treated as a fault.
	ErrExpired = errors.New("request already resolved or expired")
	// ErrNotOut means a return was recorded for a key with no open entry.
	ErrNotOut = errors.New("key is not checked out")
	// ErrAlreadyOut means an approval found the key already checked out, which
	// can happen when a request was submitted against a stale view of the
	// ledger. The approval is refused and nothing is appended.
	ErrAlreadyOut = errors.New("key is already checked out")
	// ErrAlreadyPending mirrors the tracker's rejection of a duplicate request.
	ErrAlreadyPending = errors.New("key already has a pending request")
	// ErrNoSecurity means no employee holds the security role.
	ErrNoSecurity = errors.New("no security employee registered")
	// ErrNotRegistered means the chat user has no employee record.
	ErrNotRegistered = errors.New("employee not registered")
)

// MessageRef locates a previously sent message on the transport.
type MessageRef struct {
	ChatID    string
	MessageID string
}

// Action is a button attached to an outbound message.
type Action struct {
	ID    string
	Label string
}

// Messenger is the messaging transport the workflow notifies through.
// Implementations may take arbitrary latency; the workflow never calls them
// while holding tracker state.
type Messenger interface {
	Send(ctx context.Context, chatID, text string, actions ...Action) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string, actions ...Action) error
	DisplayName(chatID string) string
}

// OutcomeKind classifies the result of a key lookup.
type OutcomeKind int

const (
	// Found: query resolved to exactly one available key.
	Found OutcomeKind = iota
	// Ambiguous: several candidates; the user must pick one.
	Ambiguous
	// NotFound: the resolver produced no candidates.
	NotFound
	// AlreadyOut: the key is currently held; Holder says by whom.
	AlreadyOut
	// AlreadyRequested: the key has a live pending request.
	AlreadyRequested
)

// Outcome is the result of RequestKey or FindKey. Status carries the
// rendered custody report for FindKey hits.
type Outcome struct {
	Kind       OutcomeKind
	Key        string
	Candidates []string
	Holder     *store.CustodyEntry
	Status     string
}

// Orchestrator wires the resolver, tracker, store and messenger together.
type Orchestrator struct {
	store     store.Store
	messenger Messenger
	tracker   *tracker.Tracker
}

// New builds an orchestrator whose pending requests expire after ttl.
func New(st store.Store, m Messenger, ttl time.Duration) *Orchestrator {
	o := &Orchestrator{store: st, messenger: m}
	o.tracker = tracker.New(ttl, o.handleExpiry)
	return o
}

// Tracker exposes the request tracker for tests.
func (o *Orchestrator) Tracker() *tracker.Tracker { return o.tracker }

// EmployeeByChat finds the employee registered under chatID.
func (o *Orchestrator) EmployeeByChat(ctx context.Context, chatID string) (*store.Employee, error) {
	emps, err := o.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	for i := range emps {
		if emps[i].ChatID == chatID {
			return &emps[i], nil
		}
	}
	return nil, ErrNotRegistered
}

// HasRole reports whether the chat user is registered with role.
func (o *Orchestrator) HasRole(ctx context.Context, chatID string, role store.Role) (bool, error) {
	emp, err := o.EmployeeByChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			return false, nil
		}
		return false, err
	}
	return emp.HasRole(role), nil
}

// SecurityEmployee returns the approver: the first employee holding the
// security role.
func (o *Orchestrator) SecurityEmployee(ctx context.Context) (*store.Employee, error) {
	emps, err := o.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	for i := range emps {
		if emps[i].HasRole(store.RoleSecurity) {
			return &emps[i], nil
		}
	}
	return nil, ErrNoSecurity
}

// RegisterEmployee normalizes the phone number and appends the employee with
// the user role unless roles were given.
func (o *Orchestrator) RegisterEmployee(ctx context.Context, emp store.Employee) error {
	emp.Phone = NormalizePhone(emp.Phone)
	if len(emp.Roles) == 0 {
		emp.Roles = []store.Role{store.RoleUser}
	}
	return o.store.AppendEmployee(ctx, emp)
}

// RequestKey resolves queryText against the key inventory and classifies the
// hit: available, held by someone, already requested, ambiguous or unknown.
func (o *Orchestrator) RequestKey(ctx context.Context, queryText string) (Outcome, error) {
	refs, err := o.store.ListKeyReferences(ctx)
	if err != nil {
		return Outcome{}, err
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Key
	}

	matches := resolver.Resolve(queryText, names)
	switch len(matches) {
	case 0:
		return Outcome{Kind: NotFound}, nil
	case 1:
	default:
		return Outcome{Kind: Ambiguous, Candidates: matches}, nil
	}
	return o.CheckKey(ctx, matches[0])
}

// CheckKey classifies the availability of an exact key name, bypassing
// resolution. Used when the user picked a candidate from a suggestion list.
func (o *Orchestrator) CheckKey(ctx context.Context, key string) (Outcome, error) {
	open, err := o.store.ListOpenCustodyEntries(ctx)
	if err != nil {
		return Outcome{}, err
	}
	for i := range open {
		if open[i].Key == key {
			return Outcome{Kind: AlreadyOut, Key: key, Holder: &open[i]}, nil
		}
	}

	if o.tracker.Pending(key) {
		return Outcome{Kind: AlreadyRequested, Key: key}, nil
	}
	return Outcome{Kind: Found, Key: key}, nil
}

// KeyStatus renders the custody report for an exact key name.
func (o *Orchestrator) KeyStatus(ctx context.Context, key string) (string, error) {
	entries, err := o.store.ListCustodyEntries(ctx)
	if err != nil {
		return "", err
	}
	var last *store.CustodyEntry
	for i := range entries {
		if entries[i].Key == key {
			last = &entries[i]
		}
	}
	if last == nil {
		return i18n.T("StatusNoRecords"), nil
	}
	return FormatStatus(*last), nil
}

// SubmitComment creates the pending request for key and notifies the
// approver with approve/deny actions. The returned ticket carries the expiry
// deadline. Fails with ErrAlreadyPending when the key already has a live
// request, ErrNoSecurity when no approver exists.
func (o *Orchestrator) SubmitComment(ctx context.Context, key, requesterChat, comment string) (tracker.Request, error) {
	emp, err := o.EmployeeByChat(ctx, requesterChat)
	if err != nil {
		return tracker.Request{}, err
	}
	security, err := o.SecurityEmployee(ctx)
	if err != nil {
		return tracker.Request{}, err
	}

	req, err := o.tracker.Submit(key, requesterChat, comment)
	if err != nil {
		if errors.Is(err, tracker.ErrAlreadyPending) {
			return tracker.Request{}, ErrAlreadyPending
		}
		return tracker.Request{}, err
	}

	text := i18n.T("RequestToSecurity", map[string]any{
		"User":    o.messenger.DisplayName(requesterChat),
		"Key":     key,
		"Name":    emp.FirstName + " " + emp.LastName,
		"Comment": comment,
	})
	ref, err := o.messenger.Send(ctx, security.ChatID, text,
		Action{ID: "approve:" + key, Label: i18n.T("ApproveButton")},
		Action{ID: "deny:" + key, Label: i18n.T("DenyButton")},
	)
	if err != nil {
		// The approver never saw the request, so retire it rather than leave
		// a pending entry nobody can act on.
		o.tracker.Deny(key)
		return tracker.Request{}, err
	}
	o.tracker.Bind(key, MessageRef{ChatID: ref.ChatID, MessageID: ref.MessageID})
	return req, nil
}

// ApproveRequest resolves the pending request for key, appends its custody
// entry and notifies the requester. Returns ErrExpired if the request was
// already resolved or timed out, ErrAlreadyOut if the key was checked out
// since the request was submitted (the ledger is re-read after the tracker
// resolves, so a request raced by another approval never appends a second
// open entry). A store failure after the tracker resolved is surfaced as a
// retryable error with nothing persisted; this window is accepted because
// the store is not transactional with the tracker.
func (o *Orchestrator) ApproveRequest(ctx context.Context, key string) (*store.CustodyEntry, error) {
	req, err := o.tracker.Approve(key)
	if err != nil {
		return nil, ErrExpired
	}

	open, err := o.store.ListOpenCustodyEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("approved request for %s: %w", key, err)
	}
	for i := range open {
		if open[i].Key == key {
			if _, err := o.messenger.Send(ctx, req.Requester, i18n.T("KeyAlreadyTaken")); err != nil {
				log.Printf("Error notifying requester %s about conflict: %v", req.Requester, err)
			}
			return nil, ErrAlreadyOut
		}
	}

	emp, err := o.EmployeeByChat(ctx, req.Requester)
	if err != nil {
		return nil, fmt.Errorf("approved request for %s: %w", key, err)
	}

	entry := store.CustodyEntry{
		Key:        key,
		FirstName:  emp.FirstName,
		LastName:   emp.LastName,
		Phone:      emp.Phone,
		ReceivedAt: time.Now(),
		Comment:    req.Comment,
	}
	row, err := o.store.AppendCustodyEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("persisting custody entry for %s: %w", key, err)
	}
	entry.Row = row

	if _, err := o.messenger.Send(ctx, req.Requester, i18n.T("RequestApproved")); err != nil {
		log.Printf("Error notifying requester %s about approval: %v", req.Requester, err)
	}
	return &entry, nil
}

// DenyRequest resolves the pending request for key without persistence and
// notifies the requester. Returns ErrExpired under the same contract as
// ApproveRequest.
func (o *Orchestrator) DenyRequest(ctx context.Context, key string) error {
	req, err := o.tracker.Deny(key)
	if err != nil {
		return ErrExpired
	}
	if _, err := o.messenger.Send(ctx, req.Requester, i18n.T("RequestDenied")); err != nil {
		log.Printf("Error notifying requester %s about denial: %v", req.Requester, err)
	}
	return nil
}

// ReturnKey closes the open custody entry for key. Returns ErrNotOut when no
// entry is open, which also makes a second return of the same key harmless.
func (o *Orchestrator) ReturnKey(ctx context.Context, key string) (*store.CustodyEntry, error) {
	open, err := o.store.ListOpenCustodyEntries(ctx)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if open[i].Key == key {
			now := time.Now()
			if err := o.store.SetReturnedAt(ctx, open[i].Row, now); err != nil {
				return nil, err
			}
			open[i].ReturnedAt = &now
			return &open[i], nil
		}
	}
	return nil, ErrNotOut
}

// NotReturned lists the open custody entries, oldest first (row order).
func (o *Orchestrator) NotReturned(ctx context.Context) ([]store.CustodyEntry, error) {
	return o.store.ListOpenCustodyEntries(ctx)
}

// FindKey resolves queryText against every name the ledger has seen (both
// inventory and historical entries) and renders the custody report for a
// unique hit.
func (o *Orchestrator) FindKey(ctx context.Context, queryText string) (Outcome, error) {
	entries, err := o.store.ListCustodyEntries(ctx)
	if err != nil {
		return Outcome{}, err
	}
	refs, err := o.store.ListKeyReferences(ctx)
	if err != nil {
		return Outcome{}, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, r := range refs {
		if !seen[r.Key] {
			seen[r.Key] = true
			names = append(names, r.Key)
		}
	}
	for _, e := range entries {
		if !seen[e.Key] {
			seen[e.Key] = true
			names = append(names, e.Key)
		}
	}

	matches := resolver.Resolve(queryText, names)
	switch len(matches) {
	case 0:
		return Outcome{Kind: NotFound}, nil
	case 1:
	default:
		return Outcome{Kind: Ambiguous, Candidates: matches}, nil
	}
	key := matches[0]

	var last *store.CustodyEntry
	for i := range entries {
		if entries[i].Key == key {
			last = &entries[i]
		}
	}
	status := i18n.T("StatusNoRecords")
	if last != nil {
		status = FormatStatus(*last)
	}
	return Outcome{Kind: Found, Key: key, Status: status}, nil
}

// Retryable reports whether err is a transient store failure the user should
// simply retry.
func Retryable(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}

// handleExpiry runs when a request times out: the requester learns the
// request died, and the approver's actionable message is retired so stale
// buttons cannot be pressed.
func (o *Orchestrator) handleExpiry(req tracker.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := i18n.T("RequestExpired", map[string]any{"Key": req.Key})
	if _, err := o.messenger.Send(ctx, req.Requester, text); err != nil {
		log.Printf("Error notifying requester %s about expiry: %v", req.Requester, err)
	}

	if ref, ok := req.ApproverRef.(MessageRef); ok {
		if err := o.messenger.Edit(ctx, ref, i18n.T("RequestExpiredSecurity")); err != nil {
			log.Printf("Error retiring approver message for %s: %v", req.Key, err)
		}
	}
}
