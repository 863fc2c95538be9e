package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"keywarden/i18n"
	"keywarden/store"
	"keywarden/workflow"
)

type captureMessenger struct {
	mu   sync.Mutex
	sent map[string][]string
}

func newCaptureMessenger() *captureMessenger {
	return &captureMessenger{sent: make(map[string][]string)}
}

func (c *captureMessenger) Send(ctx context.Context, chatID, text string, actions ...workflow.Action) (workflow.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[chatID] = append(c.sent[chatID], text)
	return workflow.MessageRef{ChatID: chatID, MessageID: "m"}, nil
}

func (c *captureMessenger) Edit(ctx context.Context, ref workflow.MessageRef, text string, actions ...workflow.Action) error {
	return nil
}

func (c *captureMessenger) DisplayName(chatID string) string { return chatID }

func setup(t *testing.T) (*workflow.Orchestrator, *store.Memory, *captureMessenger) {
	t.Helper()
	i18n.Init("ru")
	m := store.NewMemory()
	m.SeedEmployees(store.Employee{FirstName: "Пётр", LastName: "Сидоров",
		ChatID: "sec", Roles: []store.Role{store.RoleSecurity}})
	msgr := newCaptureMessenger()
	return workflow.New(m, msgr, time.Hour), m, msgr
}

func TestSweepRemindsAboutOverdueKeys(t *testing.T) {
	ctx := context.Background()
	orch, m, msgr := setup(t)

	m.AppendCustodyEntry(ctx, store.CustodyEntry{
		Key: "A100", FirstName: "Иван", LastName: "Петров",
		ReceivedAt: time.Now().Add(-10 * time.Hour),
	})
	m.AppendCustodyEntry(ctx, store.CustodyEntry{
		Key: "B200", FirstName: "Анна", LastName: "Иванова",
		ReceivedAt: time.Now().Add(-time.Hour),
	})

	Sweep(ctx, orch, msgr, 8*time.Hour)

	got := msgr.sent["sec"]
	if len(got) != 1 {
		t.Fatalf("security received %d reminders, want 1: %v", len(got), got)
	}
	if !strings.Contains(got[0], "A100") || !strings.Contains(got[0], "Иван Петров") {
		t.Errorf("reminder incomplete: %q", got[0])
	}
}

func TestSweepSkipsFreshAndReturnedKeys(t *testing.T) {
	ctx := context.Background()
	orch, m, msgr := setup(t)

	returned := time.Now()
	ref, _ := m.AppendCustodyEntry(ctx, store.CustodyEntry{
		Key: "A100", FirstName: "Иван", LastName: "Петров",
		ReceivedAt: time.Now().Add(-20 * time.Hour),
	})
	m.SetReturnedAt(ctx, ref, returned)

	Sweep(ctx, orch, msgr, 8*time.Hour)

	if got := msgr.sent["sec"]; len(got) != 0 {
		t.Errorf("reminders for returned keys: %v", got)
	}
}

func TestStartAndStop(t *testing.T) {
	orch, m, msgr := setup(t)
	m.AppendCustodyEntry(context.Background(), store.CustodyEntry{
		Key: "A100", FirstName: "Иван", LastName: "Петров",
		ReceivedAt: time.Now().Add(-time.Hour),
	})

	stop := Start(orch, msgr, 10*time.Millisecond, time.Minute)
	time.Sleep(40 * time.Millisecond)
	stop()

	msgr.mu.Lock()
	n := len(msgr.sent["sec"])
	msgr.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	msgr.mu.Lock()
	after := len(msgr.sent["sec"])
	msgr.mu.Unlock()

	if after != n {
		t.Errorf("sweeps continued after stop: %d -> %d", n, after)
	}
}
