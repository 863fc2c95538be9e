package tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestSubmitRejectsDuplicate(t *testing.T) {
	tr := New(time.Hour, nil)

	if _, err := tr.Submit("A100", "u1", "urgent"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := tr.Submit("A100", "u2", ""); !errors.Is(err, ErrAlreadyPending) {
		t.Errorf("second Submit: got %v, want ErrAlreadyPending", err)
	}
	// An unrelated key is unaffected.
	if _, err := tr.Submit("B200", "u2", ""); err != nil {
		t.Errorf("Submit for other key: %v", err)
	}
}

func TestSubmitTimestamps(t *testing.T) {
	tr := New(60*time.Minute, nil)
	now := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	tr.SetClock(fixedClock{now})

	req, err := tr.Submit("A100", "u1", "urgent")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !req.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", req.CreatedAt, now)
	}
	if want := now.Add(60 * time.Minute); !req.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", req.ExpiresAt, want)
	}
}

func TestApproveReturnsRequest(t *testing.T) {
	tr := New(time.Hour, nil)
	tr.Submit("A100", "u1", "urgent")

	req, err := tr.Approve("A100")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if req.Key != "A100" || req.Requester != "u1" || req.Comment != "urgent" {
		t.Errorf("unexpected request: %+v", req)
	}
	if tr.Pending("A100") {
		t.Error("request should be gone after approval")
	}
	if _, err := tr.Approve("A100"); !errors.Is(err, ErrNotPending) {
		t.Errorf("second Approve: got %v, want ErrNotPending", err)
	}
}

func TestDenyResolves(t *testing.T) {
	tr := New(time.Hour, nil)
	tr.Submit("A100", "u1", "")

	if _, err := tr.Deny("A100"); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if _, err := tr.Deny("A100"); !errors.Is(err, ErrNotPending) {
		t.Errorf("second Deny: got %v, want ErrNotPending", err)
	}
}

func TestBind(t *testing.T) {
	tr := New(time.Hour, nil)
	tr.Submit("A100", "u1", "")

	if !tr.Bind("A100", "msg-42") {
		t.Fatal("Bind on pending request should succeed")
	}
	req, _ := tr.Approve("A100")
	if req.ApproverRef != "msg-42" {
		t.Errorf("ApproverRef = %v, want msg-42", req.ApproverRef)
	}
	if tr.Bind("A100", "msg-43") {
		t.Error("Bind after resolution should report false")
	}
}

func TestExpiry(t *testing.T) {
	expired := make(chan Request, 1)
	tr := New(20*time.Millisecond, func(r Request) { expired <- r })

	tr.Submit("A100", "u1", "urgent")

	select {
	case r := <-expired:
		if r.Key != "A100" || r.Requester != "u1" {
			t.Errorf("unexpected expired request: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never fired")
	}

	if _, err := tr.Approve("A100"); !errors.Is(err, ErrNotPending) {
		t.Errorf("Approve after expiry: got %v, want ErrNotPending", err)
	}
	// The key is Idle again and accepts a fresh request.
	if _, err := tr.Submit("A100", "u2", ""); err != nil {
		t.Errorf("Submit after expiry: %v", err)
	}
}

func TestExpiryNoopAfterResolution(t *testing.T) {
	var fired atomic.Int32
	tr := New(20*time.Millisecond, func(Request) { fired.Add(1) })

	tr.Submit("A100", "u1", "")
	if _, err := tr.Approve("A100"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Resubmit before the original timer deadline; the stale timer must not
	// kill the new request.
	if _, err := tr.Submit("A100", "u2", ""); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := tr.Approve("A100"); err != nil {
		t.Fatalf("approve resubmitted: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("expiry fired %d times for resolved requests", n)
	}
}

func TestConcurrentSubmitExactlyOneWins(t *testing.T) {
	tr := New(time.Hour, nil)

	const workers = 32
	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Submit("A100", "u", ""); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := won.Load(); n != 1 {
		t.Errorf("%d concurrent submits succeeded, want exactly 1", n)
	}
	if tr.Len() != 1 {
		t.Errorf("tracker holds %d requests, want 1", tr.Len())
	}
}

func TestRacingResolutionsExactlyOneWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		var expired atomic.Int32
		tr := New(time.Millisecond, func(Request) { expired.Add(1) })
		tr.Submit("A100", "u1", "")

		var wg sync.WaitGroup
		var resolved atomic.Int32
		for _, op := range []func(string) (Request, error){tr.Approve, tr.Deny} {
			wg.Add(1)
			go func(f func(string) (Request, error)) {
				defer wg.Done()
				if _, err := f("A100"); err == nil {
					resolved.Add(1)
				} else if !errors.Is(err, ErrNotPending) {
					t.Errorf("unexpected error: %v", err)
				}
			}(op)
		}
		wg.Wait()
		time.Sleep(5 * time.Millisecond)

		total := resolved.Load() + expired.Load()
		if total != 1 {
			t.Fatalf("observed %d resolutions (approve/deny %d, expire %d), want 1",
				total, resolved.Load(), expired.Load())
		}
	}
}

func TestIndependentKeys(t *testing.T) {
	tr := New(time.Hour, nil)

	const keys = 16
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('A'+n)) + "100"
			if _, err := tr.Submit(key, "u", ""); err != nil {
				t.Errorf("Submit %s: %v", key, err)
				return
			}
			if _, err := tr.Approve(key); err != nil {
				t.Errorf("Approve %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	if tr.Len() != 0 {
		t.Errorf("tracker not empty: %d", tr.Len())
	}
}
