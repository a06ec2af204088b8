package models

import "time"

// PlaybookStatus is the publication state of a playbook.
type PlaybookStatus string

const (
	PlaybookDraft     PlaybookStatus = "draft"
	PlaybookPublished PlaybookStatus = "published"
)

// PlaybookItem is a bookmark snapshot bundled into a playbook. It does not
// track the author's bookmark after the snapshot is taken.
type PlaybookItem struct {
	Title       string   `json:"title" yaml:"title"`
	URL         string   `json:"url" yaml:"url"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Playbook is a curated, shareable bundle of bookmarks listed in the marketplace.
type Playbook struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Tags         []string       `json:"tags"`
	PriceCents   int64          `json:"price_cents"`
	Status       PlaybookStatus `json:"status"`
	Items        []PlaybookItem `json:"items"`
	Likes        int            `json:"likes"`
	Acquisitions int            `json:"acquisitions"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Published reports whether the playbook is visible in the marketplace.
func (p *Playbook) Published() bool {
	return p.Status == PlaybookPublished
}

// Free reports whether the playbook can be acquired without a price.
func (p *Playbook) Free() bool {
	return p.PriceCents <= 0
}

// PlaybookFilter narrows playbook listings.
type PlaybookFilter struct {
	UserID        string
	PublishedOnly bool
	Query         string
	Category      string
}

// Comment is a marketplace comment on a playbook.
type Comment struct {
	ID         string    `json:"id"`
	PlaybookID string    `json:"playbook_id"`
	UserID     string    `json:"user_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Purchase records a playbook acquisition at its listed price.
type Purchase struct {
	ID         string    `json:"id"`
	PlaybookID string    `json:"playbook_id"`
	UserID     string    `json:"user_id"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}
