package routing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePathPattern(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"/health",
		"no-leading-slash",
		"{no-leading-slash-but-has-brace}",
		"/a/{id",
		"/a/{}/b",
		"/a/{id}x/b",
		"/a/id}/b",
		"/a//{id}/b",
	} {
		if _, ok := parsePathPattern(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}

	p, ok := parsePathPattern("/a/{id}/b")
	if !ok {
		t.Fatal("expected ok")
	}
	if (PathPattern{}).Match("/a/x/b") {
		t.Fatal("expected zero-value to not match")
	}
	if !p.Match("/a/x/b") {
		t.Fatal("expected match")
	}
	if p.Match("/a/x/c") {
		t.Fatal("expected no match")
	}
	if p.Match("/a/x") {
		t.Fatal("expected no match")
	}
	if p.Match("/a//b") {
		t.Fatal("expected no match for empty segment")
	}
	if p.literals != 2 {
		t.Fatalf("literals=%d", p.literals)
	}
}

func TestPathPattern_Params(t *testing.T) {
	t.Parallel()

	p, ok := parsePathPattern("/masterdata/api/{entity}/getByCode/{code}")
	if !ok {
		t.Fatal("expected ok")
	}
	got, ok := p.Params("/masterdata/api/voyages/getByCode/V-001")
	if !ok {
		t.Fatal("expected match")
	}
	want := map[string]string{"entity": "voyages", "code": "V-001"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if _, ok := p.Params("/masterdata/api/voyages/byCode/V-001"); ok {
		t.Fatal("expected literal mismatch")
	}
}

func TestSplitPathSegments(t *testing.T) {
	t.Parallel()

	if got := splitPathSegments("/"); got != nil {
		t.Fatalf("got=%v", got)
	}
	got := splitPathSegments("/a/b")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got=%v", got)
	}
}
