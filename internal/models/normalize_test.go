package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Go ", "#go", "Machine Learning", "", "rust"}, 0)
	want := []string{"go", "machine-learning", "rust"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NormalizeTags mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeTagsLimit(t *testing.T) {
	got := NormalizeTags([]string{"a", "b", "c", "d"}, 2)
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Fatalf("limit not applied (-want +got):\n%s", diff)
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"go", "web"}, []string{"Web", "api"})
	if diff := cmp.Diff([]string{"go", "web", "api"}, got); diff != "" {
		t.Fatalf("MergeTags mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"example.com/path", "https://example.com/path", true},
		{"HTTP://Example.COM", "http://example.com", true},
		{"ftp://example.com", "", false},
		{"", "", false},
		{"https://", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeURL(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeURL(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHostLabel(t *testing.T) {
	if got := HostLabel("https://www.Example.com/a"); got != "example.com" {
		t.Fatalf("unexpected host label %q", got)
	}
	if got := HostLabel("go.dev"); got != "go.dev" {
		t.Fatalf("unexpected host label for schemeless url %q", got)
	}
}

func TestBookmarkHasTag(t *testing.T) {
	b := Bookmark{Tags: []string{"go", "machine-learning"}}
	if !b.HasTag("Machine Learning") {
		t.Fatal("expected normalized tag match")
	}
	if b.HasTag("rust") {
		t.Fatal("unexpected tag match")
	}
}
