// Package scheduler periodically sweeps the ledger for keys that have been
// out too long and reminds the security officer about each one.
package scheduler

import (
	"context"
	"log"
	"time"

	"keywarden/i18n"
	"keywarden/workflow"
)

// Start launches the reminder loop. The returned function stops it.
func Start(orch *workflow.Orchestrator, m workflow.Messenger, interval, age time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				Sweep(context.Background(), orch, m, age)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// Sweep sends the security officer one reminder per open custody entry
// older than age. Store or transport failures skip the round; the next tick
// retries.
func Sweep(ctx context.Context, orch *workflow.Orchestrator, m workflow.Messenger, age time.Duration) {
	entries, err := orch.NotReturned(ctx)
	if err != nil {
		log.Printf("Error listing open entries for reminders: %v", err)
		return
	}

	cutoff := time.Now().Add(-age)
	var overdue []int
	for i, e := range entries {
		if e.ReceivedAt.Before(cutoff) {
			overdue = append(overdue, i)
		}
	}
	if len(overdue) == 0 {
		return
	}

	security, err := orch.SecurityEmployee(ctx)
	if err != nil {
		log.Printf("Error finding security employee for reminders: %v", err)
		return
	}

	for _, i := range overdue {
		e := entries[i]
		text := i18n.T("ReminderNotReturned", map[string]any{
			"Key":      e.Key,
			"Name":     e.HolderName(),
			"Received": e.ReceivedAt.Format(workflow.StampFormat),
		})
		if _, err := m.Send(ctx, security.ChatID, text); err != nil {
			log.Printf("Error sending reminder for key %s: %v", e.Key, err)
		}
	}
	log.Printf("Reminder sweep: %d overdue keys", len(overdue))
}
