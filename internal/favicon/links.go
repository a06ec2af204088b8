package favicon

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type candidate struct {
	href string
	size int
	kind int // 0 icon, 1 apple-touch-icon, 2 mask-icon
}

// parseLinks scans an HTML document for icon links and returns them ordered
// best first.
func parseLinks(r io.Reader, page *url.URL) ([]candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base := page
	var links []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if href := getAttr(n, "href"); href != "" {
					if u, err := page.Parse(href); err == nil {
						base = u
					}
				}
			case "link":
				links = append(links, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var out []candidate
	seen := make(map[string]struct{})
	for _, n := range links {
		kind, ok := relKind(getAttr(n, "rel"))
		if !ok {
			continue
		}
		href := getAttr(n, "href")
		if href == "" {
			continue
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		resolved := u.String()
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, candidate{
			href: resolved,
			size: declaredSize(getAttr(n, "sizes"), getAttr(n, "type"), u.Path),
			kind: kind,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].size != out[j].size {
			return out[i].size > out[j].size
		}
		return out[i].kind < out[j].kind
	})
	return out, nil
}

func relKind(rel string) (int, bool) {
	kind := 3
	for _, f := range strings.Fields(strings.ToLower(rel)) {
		switch f {
		case "icon":
			kind = min(kind, 0)
		case "apple-touch-icon", "apple-touch-icon-precomposed":
			kind = min(kind, 1)
		case "mask-icon":
			kind = min(kind, 2)
		}
	}
	return kind, kind < 3
}

// declaredSize returns the largest width in a sizes attribute. Scalable
// icons rank above everything; undeclared sizes rank last.
func declaredSize(sizes, mediaType, path string) int {
	if strings.EqualFold(strings.TrimSpace(mediaType), "image/svg+xml") || strings.HasSuffix(strings.ToLower(path), ".svg") {
		return math.MaxInt
	}
	best := 0
	for _, s := range strings.Fields(strings.ToLower(sizes)) {
		if s == "any" {
			return math.MaxInt
		}
		w, _, found := strings.Cut(s, "x")
		if !found {
			continue
		}
		if n, err := strconv.Atoi(w); err == nil && n > best {
			best = n
		}
	}
	return best
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
