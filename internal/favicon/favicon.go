// Package favicon resolves an icon for a bookmarked page through a chain
// of strategies: HTML link tags, well-known paths, a by-domain icon
// service and finally a generated placeholder.
package favicon

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
)

// Source names the chain step that produced an icon.
type Source string

const (
	SourceHTML        Source = "html"
	SourceProbe       Source = "probe"
	SourceService     Source = "service"
	SourcePlaceholder Source = "placeholder"
)

const (
	maxPageBytes    = 1 << 20
	maxInlineBytes  = 256 << 10
	defaultTimeout  = 8 * time.Second
	defaultService  = "https://www.google.com/s2/favicons?domain={domain}&sz=64"
	defaultAgent    = "Mozilla/5.0 (compatible; BookAIMark/1.0)"
	defaultParallel = 4
)

var probePaths = []string{"/favicon.ico", "/favicon.png", "/favicon.svg", "/apple-touch-icon.png"}

// Result is a resolved icon.
type Result struct {
	URL    string `json:"url"`
	Source Source `json:"source"`
}

// Options configures a Resolver.
type Options struct {
	HTTPClient  *http.Client
	ServiceURL  string
	UserAgent   string
	Concurrency int
	Logger      *slog.Logger
}

// OptionsFromConfig maps the favicon config section onto resolver options.
func OptionsFromConfig(cfg config.Favicon, logger *slog.Logger) Options {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return Options{
		HTTPClient:  &http.Client{Timeout: timeout},
		ServiceURL:  cfg.ServiceURL,
		UserAgent:   cfg.UserAgent,
		Concurrency: cfg.BatchConcurrency,
		Logger:      logger,
	}
}

// Resolver runs the favicon chain.
type Resolver struct {
	client      *http.Client
	serviceURL  string
	userAgent   string
	concurrency int
	logger      *slog.Logger
}

// NewResolver constructs a Resolver, filling unset options with defaults.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		client:      opts.HTTPClient,
		serviceURL:  strings.TrimSpace(opts.ServiceURL),
		userAgent:   strings.TrimSpace(opts.UserAgent),
		concurrency: opts.Concurrency,
		logger:      logging.NewComponentLogger(opts.Logger, "favicon"),
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: defaultTimeout}
	}
	if r.serviceURL == "" {
		r.serviceURL = defaultService
	}
	if r.userAgent == "" {
		r.userAgent = defaultAgent
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultParallel
	}
	return r
}

// Resolve returns the first icon found by the chain. It only fails when
// pageURL is unusable; network problems fall through to the placeholder.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (Result, error) {
	normalized, ok := models.NormalizeURL(pageURL)
	if !ok {
		return Result{}, apperr.Validation("resolve favicon", "url must be an absolute http(s) url with a host")
	}
	page, _ := url.Parse(normalized)

	if icon, err := r.fromHTML(ctx, page); err != nil {
		r.logger.Debug("html icon lookup failed", "url", normalized, "error", err)
	} else if icon != "" {
		return Result{URL: icon, Source: SourceHTML}, nil
	}

	if icon := r.fromProbe(ctx, page); icon != "" {
		return Result{URL: icon, Source: SourceProbe}, nil
	}

	if icon := r.fromService(ctx, page); icon != "" {
		return Result{URL: icon, Source: SourceService}, nil
	}

	return Result{URL: Placeholder(page.Hostname()), Source: SourcePlaceholder}, nil
}

// ResolveAll resolves many pages with bounded concurrency. Results keep the
// input order; an unusable URL yields a zero Result and its error.
func (r *Resolver) ResolveAll(ctx context.Context, pageURLs []string) ([]Result, []error) {
	results := make([]Result, len(pageURLs))
	errs := make([]error, len(pageURLs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, pageURL := range pageURLs {
		g.Go(func() error {
			results[i], errs[i] = r.Resolve(ctx, pageURL)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

func (r *Resolver) fromHTML(ctx context.Context, page *url.URL) (string, error) {
	req, err := r.newRequest(ctx, http.MethodGet, page.String())
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch page: http %d", resp.StatusCode)
	}

	base := page
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	candidates, err := parseLinks(io.LimitReader(resp.Body, maxPageBytes), base)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if r.check(ctx, c.href) {
			return c.href, nil
		}
	}
	return "", nil
}

func (r *Resolver) fromProbe(ctx context.Context, page *url.URL) string {
	origin := url.URL{Scheme: page.Scheme, Host: page.Host}
	for _, p := range probePaths {
		origin.Path = p
		candidate := origin.String()
		if r.check(ctx, candidate) {
			return candidate
		}
	}
	return ""
}

func (r *Resolver) fromService(ctx context.Context, page *url.URL) string {
	candidate := strings.ReplaceAll(r.serviceURL, "{domain}", url.QueryEscape(page.Hostname()))
	if r.check(ctx, candidate) {
		return candidate
	}
	return ""
}

// check issues a HEAD request and accepts a 2xx that is not an HTML page.
func (r *Resolver) check(ctx context.Context, iconURL string) bool {
	req, err := r.newRequest(ctx, http.MethodHead, iconURL)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("icon probe failed", "url", iconURL, "error", err)
		return false
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return mediaType != "text/html"
}

func (r *Resolver) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	return req, nil
}

// Inline downloads iconURL and returns it as a base64 data URI. Data URIs
// are returned unchanged.
func (r *Resolver) Inline(ctx context.Context, iconURL string) (string, error) {
	if strings.HasPrefix(iconURL, "data:") {
		return iconURL, nil
	}
	req, err := r.newRequest(ctx, http.MethodGet, iconURL)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUnavailable, "inline favicon", "fetch icon", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Wrap(apperr.ErrUnavailable, "inline favicon", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineBytes+1))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUnavailable, "inline favicon", "read icon", err)
	}
	if len(data) > maxInlineBytes {
		return "", apperr.Validation("inline favicon", fmt.Sprintf("icon exceeds %d bytes", maxInlineBytes))
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
