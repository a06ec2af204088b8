package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const chromeExport = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><A HREF="https://example.com/" ADD_DATE="1700000000">Root link</A>
    <DT><H3 ADD_DATE="1700000001">Dev</H3>
    <DL><p>
        <DT><A HREF="https://go.dev/" ADD_DATE="1700000002" TAGS="go, lang" ICON="data:image/png;base64,AAAA">The <b>Go</b> site</A>
        <DD>Official site &amp; docs
        <DT><H3>Empty</H3>
        <DL><p>
        </DL><p>
        <DT><H3>Nested</H3>
        <DL><p>
            <DT><A HREF="https://pkg.go.dev/">Packages</A>
        </DL><p>
        <DT><A HREF="https://gobyexample.com/">By example</A>
    </DL><p>
    <DT><A HREF="">No URL</A>
    <DT><A HREF="https://news.ycombinator.com/">HN</A>
</DL><p>
`

func TestParseBookmarksHTML(t *testing.T) {
	entries, err := NewParser().ParseBookmarksHTML(strings.NewReader(chromeExport))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []Entry{
		{Title: "Root link", URL: "https://example.com/", AddDate: time.Unix(1700000000, 0).UTC()},
		{
			Title:       "The Go site",
			URL:         "https://go.dev/",
			Description: "Official site & docs",
			Icon:        "data:image/png;base64,AAAA",
			Tags:        []string{"go", "lang"},
			AddDate:     time.Unix(1700000002, 0).UTC(),
			Path:        []string{"Dev"},
		},
		{Title: "Packages", URL: "https://pkg.go.dev/", Path: []string{"Dev", "Nested"}},
		{Title: "By example", URL: "https://gobyexample.com/", Path: []string{"Dev"}},
		{Title: "HN", URL: "https://news.ycombinator.com/"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBookmarksHTMLEmpty(t *testing.T) {
	entries, err := NewParser().ParseBookmarksHTML(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestSplitTags(t *testing.T) {
	got := splitTags(" a, ,b ,c")
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if splitTags("  ") != nil {
		t.Fatal("blank tag attribute should yield nil")
	}
}
