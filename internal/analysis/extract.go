package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const maxPageBytes = 2 << 20

// Page is the readable content pulled out of an HTML document.
type Page struct {
	Title       string
	Description string
	Text        string
}

// ExtractPage parses an HTML document and returns its title, meta
// description and visible text.
func ExtractPage(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	var (
		page Page
		sb   strings.Builder
	)
	walkPage(doc, &page, &sb, 0)
	page.Text = collapseWhitespace(sb.String())
	page.Title = collapseWhitespace(page.Title)
	page.Description = collapseWhitespace(page.Description)
	return page, nil
}

func walkPage(n *html.Node, page *Page, sb *strings.Builder, depth int) {
	if depth > 256 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "template":
			return
		case "title":
			if page.Title == "" {
				page.Title = nodeText(n)
			}
			return
		case "meta":
			name := strings.ToLower(attr(n, "name"))
			if name == "" {
				name = strings.ToLower(attr(n, "property"))
			}
			if (name == "description" || name == "og:description") && page.Description == "" {
				page.Description = attr(n, "content")
			}
			return
		case "p", "div", "li", "br", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
			sb.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkPage(c, page, sb, depth+1)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// collapseWhitespace keeps paragraph breaks but squeezes runs of spaces.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// fetchPage downloads pageURL and returns its extracted content.
func fetchPage(ctx context.Context, client *http.Client, userAgent, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch page: http %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return Page{}, fmt.Errorf("read page: %w", err)
		}
		return Page{Text: collapseWhitespace(string(data))}, nil
	}
	return ExtractPage(body)
}
