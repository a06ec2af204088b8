package models

import (
	"net/url"
	"strings"
)

// MaxTags bounds the tags kept on a single bookmark or playbook.
const MaxTags = 20

// NormalizeTags lowercases, trims and de-duplicates tags, keeping first-seen
// order and at most limit entries (limit <= 0 means MaxTags).
func NormalizeTags(tags []string, limit int) []string {
	if limit <= 0 {
		limit = MaxTags
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = NormalizeTag(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}
	return out
}

// MergeTags appends extra to base and normalizes the result.
func MergeTags(base, extra []string) []string {
	combined := make([]string, 0, len(base)+len(extra))
	combined = append(combined, base...)
	combined = append(combined, extra...)
	return NormalizeTags(combined, MaxTags)
}

// NormalizeTag applies the single-tag rules used by NormalizeTags.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.TrimPrefix(tag, "#")
	return strings.Join(strings.Fields(tag), "-")
}

// NormalizeURL returns an absolute http(s) URL, adding https:// when the
// scheme is missing. ok is false when no usable host remains.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Hostname() == "" {
		return "", false
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return u.String(), true
}

// HostLabel returns the host of rawURL without a leading "www.".
func HostLabel(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		if normalized, ok := NormalizeURL(rawURL); ok {
			u, _ = url.Parse(normalized)
		}
	}
	if u == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
