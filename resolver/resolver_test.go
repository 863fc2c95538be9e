package resolver

import (
	"fmt"
	"reflect"
	"testing"
)

func TestResolveSubstringPrecedence(t *testing.T) {
	got := Resolve("KEY1", []string{"KEY1", "KEY2", "OTHERKEY1"})
	want := []string{"KEY1", "OTHERKEY1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve substring pass: got %v want %v", got, want)
	}
}

func TestResolveScoredFallback(t *testing.T) {
	// No candidate contains "xyz". "xyzw" scores 6/7 and "xy" scores 0.8,
	// both above the 0.5 cutoff; "abc" scores 0 and is dropped.
	got := Resolve("xyz", []string{"abc", "xyzw", "xy"})
	want := []string{"xyzw", "xy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve fallback: got %v want %v", got, want)
	}
}

func TestResolveFallbackOrdering(t *testing.T) {
	// Misspelled query, nothing contains it. "ворота" scores 10/12 and
	// "гараж" 6/11; "кабинет" falls below the cutoff.
	got := Resolve("варота", []string{"гараж", "ворота", "кабинет"})
	want := []string{"ворота", "гараж"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve fallback ordering: got %v want %v", got, want)
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	if got := Resolve("", []string{"A100", "B200"}); got != nil {
		t.Errorf("empty query should match nothing, got %v", got)
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	if got := Resolve("A100", nil); got != nil {
		t.Errorf("empty candidate set should match nothing, got %v", got)
	}
}

func TestResolveNoMatch(t *testing.T) {
	if got := Resolve("zzzzzz", []string{"A100", "B200"}); got != nil {
		t.Errorf("unrelated query should match nothing, got %v", got)
	}
}

func TestResolveTruncation(t *testing.T) {
	var candidates []string
	for i := 0; i < 8; i++ {
		candidates = append(candidates, fmt.Sprintf("A1%02d", i))
	}
	got := Resolve("A1", candidates)
	if len(got) != MaxResults {
		t.Errorf("expected %d results, got %d", MaxResults, len(got))
	}
	if !reflect.DeepEqual(got, candidates[:MaxResults]) {
		t.Errorf("truncation should keep candidate order, got %v", got)
	}
}

func TestRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"abc", "xyz", 0},
		{"", "", 1},
		{"xyz", "xyzw", 6.0 / 7.0},
	}
	for _, c := range cases {
		if got := Ratio(c.a, c.b); got != c.want {
			t.Errorf("Ratio(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
