// Package parser reads Netscape bookmark files, the HTML format every
// browser exports.
package parser

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Entry is a bookmark found in a bookmark file. Path lists the enclosing
// folder names from the outermost inwards.
type Entry struct {
	Title       string
	URL         string
	Description string
	Icon        string
	Tags        []string
	AddDate     time.Time
	Path        []string
}

// Parser parses HTML bookmark files
type Parser struct{}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseBookmarksHTML parses an HTML bookmark file. A folder is an <H3>
// heading followed by the <DL> list holding its contents.
func (p *Parser) ParseBookmarksHTML(r io.Reader) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var (
		entries     []Entry
		folderStack []string
		pending     *string
		lastEntry   = -1
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		pushed := false
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h3":
				name := strings.TrimSpace(textContent(n))
				pending = &name
				lastEntry = -1
				return
			case "dl":
				if pending != nil {
					folderStack = append(folderStack, *pending)
					pending = nil
					pushed = true
				}
			case "a":
				pending = nil
				e := Entry{
					Title: strings.TrimSpace(textContent(n)),
					URL:   strings.TrimSpace(attr(n, "href")),
					Icon:  attr(n, "icon"),
					Tags:  splitTags(attr(n, "tags")),
					Path:  append([]string(nil), folderStack...),
				}
				if ts, err := strconv.ParseInt(attr(n, "add_date"), 10, 64); err == nil && ts > 0 {
					e.AddDate = time.Unix(ts, 0).UTC()
				}
				if e.URL != "" {
					entries = append(entries, e)
					lastEntry = len(entries) - 1
				}
				return
			case "dd":
				if lastEntry >= 0 && entries[lastEntry].Description == "" {
					entries[lastEntry].Description = strings.TrimSpace(ownText(n))
				}
				lastEntry = -1
			}
		}

		// Recursively traverse children
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		// When exiting a folder's DL container - "close" the folder
		if pushed {
			folderStack = folderStack[:len(folderStack)-1]
		}
	}

	walk(doc)
	return entries, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// ownText returns the text directly inside n, ignoring nested lists that the
// HTML parser may have folded into a <DD>.
func ownText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
