package stats

import (
	"strings"
	"testing"
	"time"

	"keywarden/i18n"
	"keywarden/store"
)

func TestFormatBoardEmpty(t *testing.T) {
	i18n.Init("ru")
	got := formatBoard(nil)
	if !strings.Contains(got, i18n.T("BoardEmpty")) {
		t.Errorf("empty board: %q", got)
	}
}

func TestFormatBoardListsOpenEntries(t *testing.T) {
	i18n.Init("ru")
	got := formatBoard([]store.CustodyEntry{
		{Key: "A100", FirstName: "Иван", LastName: "Петров",
			ReceivedAt: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)},
		{Key: "B200", FirstName: "Анна", LastName: "Иванова",
			ReceivedAt: time.Date(2026, 4, 1, 13, 30, 0, 0, time.UTC)},
	})
	for _, want := range []string{"A100", "Иван Петров", "12:00 (01.04.2026)", "B200"} {
		if !strings.Contains(got, want) {
			t.Errorf("board missing %q:\n%s", want, got)
		}
	}
}
