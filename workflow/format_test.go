package workflow

import (
	"strings"
	"testing"
	"time"

	"keywarden/i18n"
	"keywarden/store"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"89293232859", "+79293232859"},
		{"9293232859", "+79293232859"},
		{"79293232859", "+79293232859"},
		{"+79293232859", "+79293232859"},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{"79008006050", "7900800605"}
	for _, p := range valid {
		if !ValidPhone(p) {
			t.Errorf("ValidPhone(%q) = false, want true", p)
		}
	}
	invalid := []string{"", "abc", "790080", "+79008006050", "89008006050"}
	for _, p := range invalid {
		if ValidPhone(p) {
			t.Errorf("ValidPhone(%q) = true, want false", p)
		}
	}
}

func TestFormatStatusOpenEntry(t *testing.T) {
	i18n.Init("ru")
	e := store.CustodyEntry{
		Key: "A100", FirstName: "Иван", LastName: "Петров",
		Phone:      "+79001112233",
		ReceivedAt: time.Date(2026, 1, 15, 8, 5, 0, 0, time.UTC),
		Comment:    "дежурство",
	}
	got := FormatStatus(e)
	for _, want := range []string{"A100", "Иван Петров", "08:05 (15.01.2026)", "+79001112233", "дежурство"} {
		if !strings.Contains(got, want) {
			t.Errorf("open status missing %q:\n%s", want, got)
		}
	}
}

func TestFormatStatusReturnedEntry(t *testing.T) {
	i18n.Init("ru")
	returned := time.Date(2026, 1, 15, 17, 40, 0, 0, time.UTC)
	e := store.CustodyEntry{
		Key: "A100", FirstName: "Иван", LastName: "Петров",
		Phone:      "+79001112233",
		ReceivedAt: time.Date(2026, 1, 15, 8, 5, 0, 0, time.UTC),
		ReturnedAt: &returned,
	}
	got := FormatStatus(e)
	for _, want := range []string{"08:05 (15.01.2026)", "17:40 (15.01.2026)"} {
		if !strings.Contains(got, want) {
			t.Errorf("returned status missing %q:\n%s", want, got)
		}
	}
}

func TestFormatStatusOmitsEmptyComment(t *testing.T) {
	i18n.Init("ru")
	e := store.CustodyEntry{
		Key: "A100", FirstName: "Иван", LastName: "Петров",
		Phone: "+79001112233", ReceivedAt: time.Now(),
	}
	if got := FormatStatus(e); strings.Contains(got, "Комментарии") {
		t.Errorf("empty comment should be omitted:\n%s", got)
	}
}
