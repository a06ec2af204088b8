// Package analysis turns bookmarked content into a category, tags, a
// sentiment and a short summary using an LLM, and degrades to a canned
// result whenever the LLM cannot answer.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/services/llm"
)

const (
	// FallbackCategory is used when no category could be determined.
	FallbackCategory = "Uncategorized"
	// FallbackSummary is returned when the LLM is unavailable.
	FallbackSummary = "AI analysis is currently unavailable."

	maxResultTags       = 8
	maxCategoryRunes    = 64
	defaultMaxInput     = 6000
	defaultConcurrency  = 4
	defaultBatchLimit   = 10
	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (compatible; BookAIMark/1.0)"
)

const analysisPrompt = `You classify saved web bookmarks.
Respond with a single JSON object and nothing else:
{"category": string, "tags": [string], "sentiment": "positive" | "neutral" | "negative", "summary": string, "confidence": number}
category: a short topic label of one to three words.
tags: up to 8 short lowercase keywords.
summary: at most two sentences.
confidence: between 0 and 1.`

const tagsPrompt = `You suggest tags for saved web bookmarks.
Respond with a single JSON object and nothing else:
{"tags": [string], "confidence": number}
tags: up to 8 short lowercase keywords describing the topic.`

// Input is the content to analyze. At least one field must be set.
type Input struct {
	URL   string `json:"url,omitempty"`
	HTML  string `json:"html,omitempty"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

// Result is the normalized analysis outcome.
type Result struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Sentiment  string   `json:"sentiment"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
	Fallback   bool     `json:"fallback"`
	Reason     string   `json:"reason,omitempty"`
}

// BatchItem is one entry of a batch response, in input order.
type BatchItem struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Options tunes the analyzer.
type Options struct {
	MaxInputChars int
	Concurrency   int
	BatchLimit    int
	HTTPClient    *http.Client
	UserAgent     string
	Logger        *slog.Logger
}

// OptionsFromConfig maps config sections onto analyzer options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		MaxInputChars: cfg.LLM.MaxInputChars,
		Concurrency:   cfg.Analysis.Concurrency,
		BatchLimit:    cfg.Analysis.BatchLimit,
		UserAgent:     cfg.Favicon.UserAgent,
		Logger:        logger,
	}
}

// Analyzer runs content analysis against a Completer.
type Analyzer struct {
	completer llm.Completer
	opts      Options
	logger    *slog.Logger
	titler    cases.Caser
}

// New constructs an Analyzer. A nil completer always yields fallbacks.
func New(completer llm.Completer, opts Options) *Analyzer {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = defaultMaxInput
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchLimit <= 0 || opts.BatchLimit > defaultBatchLimit {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Analyzer{
		completer: completer,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "analysis"),
		titler:    cases.Title(language.Und, cases.NoLower),
	}
}

// BatchLimit is the largest batch AnalyzeBatch accepts.
func (a *Analyzer) BatchLimit() int { return a.opts.BatchLimit }

// Analyze classifies one input. LLM failures produce a fallback result,
// not an error; only unusable input is reported as an error.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	content, err := a.prepare(ctx, in)
	if err != nil {
		return Result{}, err
	}

	var raw struct {
		Category   string   `json:"category"`
		Tags       []string `json:"tags"`
		Sentiment  string   `json:"sentiment"`
		Summary    string   `json:"summary"`
		Confidence float64  `json:"confidence"`
	}
	if err := a.complete(ctx, analysisPrompt, content, &raw); err != nil {
		return a.fallback(in, err), nil
	}

	return Result{
		Category:   a.normalizeCategory(raw.Category),
		Tags:       models.NormalizeTags(raw.Tags, maxResultTags),
		Sentiment:  normalizeSentiment(raw.Sentiment),
		Summary:    strings.TrimSpace(raw.Summary),
		Confidence: clamp01(raw.Confidence),
	}, nil
}

// SuggestTags runs a tags-only analysis.
func (a *Analyzer) SuggestTags(ctx context.Context, in Input) (Result, error) {
	content, err := a.prepare(ctx, in)
	if err != nil {
		return Result{}, err
	}
	var raw struct {
		Tags       []string `json:"tags"`
		Confidence float64  `json:"confidence"`
	}
	if err := a.complete(ctx, tagsPrompt, content, &raw); err != nil {
		return a.fallback(in, err), nil
	}
	return Result{
		Category:   FallbackCategory,
		Tags:       models.NormalizeTags(raw.Tags, maxResultTags),
		Sentiment:  "neutral",
		Confidence: clamp01(raw.Confidence),
	}, nil
}

// AnalyzeBatch analyzes up to BatchLimit inputs concurrently and returns
// results in input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, inputs []Input) ([]BatchItem, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("analyze batch", "items must not be empty")
	}
	if len(inputs) > a.opts.BatchLimit {
		return nil, apperr.Validation("analyze batch", fmt.Sprintf("at most %d items per batch", a.opts.BatchLimit))
	}

	items := make([]BatchItem, len(inputs))
	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			result, err := a.Analyze(ctx, in)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = &result
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

func (a *Analyzer) complete(ctx context.Context, prompt, content string, target any) error {
	if a.completer == nil {
		return llm.ErrNotConfigured
	}
	payload, err := a.completer.CompleteJSON(ctx, prompt, content)
	if err != nil {
		return err
	}
	return llm.DecodeLLMJSON(payload, target)
}

// prepare selects and truncates the prompt content.
func (a *Analyzer) prepare(ctx context.Context, in Input) (string, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Title = strings.TrimSpace(in.Title)
	text := strings.TrimSpace(in.Text)
	var description string

	if text == "" && strings.TrimSpace(in.HTML) != "" {
		page, err := ExtractPage(strings.NewReader(in.HTML))
		if err != nil {
			return "", apperr.Wrap(apperr.ErrValidation, "analyze", "unreadable html", err)
		}
		text, description = page.Text, page.Description
		if in.Title == "" {
			in.Title = page.Title
		}
	}

	if text == "" && in.URL != "" {
		normalized, ok := models.NormalizeURL(in.URL)
		if !ok {
			return "", apperr.Validation("analyze", "url must be an absolute http(s) url")
		}
		in.URL = normalized
		page, err := fetchPage(ctx, a.opts.HTTPClient, a.opts.UserAgent, normalized)
		if err != nil {
			a.logger.Debug("page fetch failed, analyzing url only", "url", normalized, "error", err)
		} else {
			text, description = page.Text, page.Description
			if in.Title == "" {
				in.Title = page.Title
			}
		}
	}

	if text == "" && in.Title == "" && in.URL == "" {
		return "", apperr.Validation("analyze", "provide url, html, text or title")
	}

	var sb strings.Builder
	if in.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", in.Title)
	}
	if in.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", in.URL)
	}
	if description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", description)
	}
	if text != "" {
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return Truncate(sb.String(), a.opts.MaxInputChars), nil
}

// Truncate cuts s to at most limit runes and appends an ellipsis when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

func (a *Analyzer) fallback(in Input, err error) Result {
	reason := llm.FailureReason(err)
	a.logger.Warn("content analysis unavailable, using fallback", "reason", reason, "error", err)
	tags := []string{}
	if host := models.HostLabel(in.URL); host != "" {
		tags = models.NormalizeTags([]string{host}, maxResultTags)
	}
	return Result{
		Category:  FallbackCategory,
		Tags:      tags,
		Sentiment: "neutral",
		Summary:   FallbackSummary,
		Fallback:  true,
		Reason:    reason,
	}
}

func (a *Analyzer) normalizeCategory(category string) string {
	category = strings.Join(strings.Fields(category), " ")
	if category == "" {
		return FallbackCategory
	}
	category = a.titler.String(category)
	if utf8.RuneCountInString(category) > maxCategoryRunes {
		category = strings.TrimSpace(string([]rune(category)[:maxCategoryRunes]))
	}
	return category
}

func normalizeSentiment(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "positive", "neutral", "negative":
		return s
	default:
		return "neutral"
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Apply writes a result onto a bookmark: category, merged tags, summary,
// sentiment and the analysis time. Fallback results only merge tags.
func Apply(b *models.Bookmark, r Result, now time.Time) {
	b.Tags = models.MergeTags(b.Tags, r.Tags)
	if r.Fallback {
		return
	}
	b.Category = r.Category
	b.Summary = r.Summary
	b.Sentiment = r.Sentiment
	analyzed := now.UTC()
	b.AnalyzedAt = &analyzed
}
