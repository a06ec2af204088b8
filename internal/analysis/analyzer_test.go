package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/services/llm"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestAnalyzeNormalizesResult(t *testing.T) {
	var gotUser string
	completer := completerFunc(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return "```json\n" + `{"category":"  machine   learning ","tags":["AI","ml","AI"," Deep Learning "],"sentiment":"POSITIVE","summary":" Intro to ML. ","confidence":1.7}` + "\n```", nil
	})
	a := New(completer, Options{})

	result, err := a.Analyze(context.Background(), Input{Title: "ML basics", Text: "Neural networks explained"})
	require.NoError(t, err)

	assert.Equal(t, "Machine Learning", result.Category)
	assert.Equal(t, []string{"ai", "ml", "deep-learning"}, result.Tags)
	assert.Equal(t, "positive", result.Sentiment)
	assert.Equal(t, "Intro to ML.", result.Summary)
	assert.Equal(t, 1.0, result.Confidence)
	assert.False(t, result.Fallback)
	assert.Contains(t, gotUser, "Title: ML basics")
	assert.Contains(t, gotUser, "Neural networks explained")
}

func TestAnalyzeKeepsAcronymsInCategory(t *testing.T) {
	completer := completerFunc(func(context.Context, string, string) (string, error) {
		return `{"category":"AI tools","tags":[],"sentiment":"meh","summary":"","confidence":-2}`, nil
	})
	result, err := New(completer, Options{}).Analyze(context.Background(), Input{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "AI Tools", result.Category)
	assert.Equal(t, "neutral", result.Sentiment)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Tags)
}

func TestAnalyzeCapsTags(t *testing.T) {
	tags := make([]string, 12)
	for i := range tags {
		tags[i] = fmt.Sprintf("%q", fmt.Sprintf("t%d", i))
	}
	payload := fmt.Sprintf(`{"category":"x","tags":[%s],"sentiment":"neutral","summary":"","confidence":0.5}`, strings.Join(tags, ","))
	completer := completerFunc(func(context.Context, string, string) (string, error) { return payload, nil })

	result, err := New(completer, Options{}).Analyze(context.Background(), Input{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, result.Tags, 8)
}

func TestAnalyzeEmptyInputIsValidationError(t *testing.T) {
	a := New(completerFunc(func(context.Context, string, string) (string, error) {
		t.Fatal("completer must not be called")
		return "", nil
	}), Options{})

	_, err := a.Analyze(context.Background(), Input{Text: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAnalyzeFallsBackOnLLMFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "missing key", err: llm.ErrNotConfigured, reason: "missing_api_key"},
		{name: "quota", err: &llm.HTTPStatusError{StatusCode: 429, Body: "insufficient_quota"}, reason: "quota_exceeded"},
		{name: "timeout", err: context.DeadlineExceeded, reason: "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := completerFunc(func(context.Context, string, string) (string, error) { return "", tt.err })
			result, err := New(completer, Options{}).Analyze(context.Background(), Input{
				URL:  "https://www.example.com/post",
				Text: "hello",
			})
			require.NoError(t, err)
			assert.True(t, result.Fallback)
			assert.Equal(t, tt.reason, result.Reason)
			assert.Equal(t, FallbackCategory, result.Category)
			assert.Equal(t, FallbackSummary, result.Summary)
			assert.Equal(t, "neutral", result.Sentiment)
			assert.Equal(t, []string{"example.com"}, result.Tags)
		})
	}
}

func TestAnalyzeFallsBackOnInvalidJSON(t *testing.T) {
	completer := completerFunc(func(context.Context, string, string) (string, error) { return "sorry, no", nil })
	result, err := New(completer, Options{}).Analyze(context.Background(), Input{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, "invalid_response", result.Reason)
	assert.Empty(t, result.Tags)
}

func TestAnalyzeNilCompleterFallsBack(t *testing.T) {
	result, err := New(nil, Options{}).Analyze(context.Background(), Input{Title: "Only a title"})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, "missing_api_key", result.Reason)
}

func TestAnalyzeTruncatesContent(t *testing.T) {
	var gotUser string
	completer := completerFunc(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return `{"category":"x","tags":[],"sentiment":"neutral","summary":"","confidence":0}`, nil
	})
	a := New(completer, Options{MaxInputChars: 300})

	_, err := a.Analyze(context.Background(), Input{Text: strings.Repeat("é", 1000)})
	require.NoError(t, err)
	assert.Equal(t, 301, len([]rune(gotUser)))
	assert.True(t, strings.HasSuffix(gotUser, "…"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestAnalyzeExtractsHTML(t *testing.T) {
	var gotUser string
	completer := completerFunc(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return `{"category":"Go","tags":["go"],"sentiment":"neutral","summary":"s","confidence":0.9}`, nil
	})
	doc := `<html><head><title>Go Blog</title><meta name="description" content="News about Go"></head>
<body><nav>Home About</nav><script>var x = 1;</script><p>Generics landed.</p></body></html>`

	_, err := New(completer, Options{}).Analyze(context.Background(), Input{HTML: doc})
	require.NoError(t, err)
	assert.Contains(t, gotUser, "Title: Go Blog")
	assert.Contains(t, gotUser, "Description: News about Go")
	assert.Contains(t, gotUser, "Generics landed.")
	assert.NotContains(t, gotUser, "var x")
	assert.NotContains(t, gotUser, "Home About")
}

func TestAnalyzeFetchesURL(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Fetched</title></head><body><p>Remote body text</p></body></html>`))
	}))
	defer srv.Close()

	var gotUser string
	completer := completerFunc(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return `{"category":"Web","tags":[],"sentiment":"neutral","summary":"","confidence":0.1}`, nil
	})
	a := New(completer, Options{HTTPClient: srv.Client(), UserAgent: "test-agent"})

	_, err := a.Analyze(context.Background(), Input{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA.Load())
	assert.Contains(t, gotUser, "Title: Fetched")
	assert.Contains(t, gotUser, "Remote body text")
}

func TestAnalyzeURLFetchFailureStillAnalyzes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	called := false
	completer := completerFunc(func(_ context.Context, _, user string) (string, error) {
		called = true
		assert.Contains(t, user, "URL: "+srv.URL)
		return `{"category":"Web","tags":[],"sentiment":"neutral","summary":"","confidence":0.1}`, nil
	})
	_, err := New(completer, Options{HTTPClient: srv.Client()}).Analyze(context.Background(), Input{URL: srv.URL})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestAnalyzeRejectsBadURL(t *testing.T) {
	_, err := New(nil, Options{}).Analyze(context.Background(), Input{URL: "ftp://example.com/file"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAnalyzeBatchKeepsOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	completer := completerFunc(func(_ context.Context, _, user string) (string, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		label := strings.TrimSpace(strings.TrimPrefix(user, "\n"))
		return fmt.Sprintf(`{"category":%q,"tags":[],"sentiment":"neutral","summary":"","confidence":0.5}`, label), nil
	})
	a := New(completer, Options{Concurrency: 2})

	inputs := []Input{{Text: "alpha"}, {Text: ""}, {Text: "gamma"}, {Text: "delta"}}
	items, err := a.AnalyzeBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, "Alpha", items[0].Result.Category)
	assert.Nil(t, items[1].Result)
	assert.NotEmpty(t, items[1].Error)
	assert.Equal(t, "Gamma", items[2].Result.Category)
	assert.Equal(t, "Delta", items[3].Result.Category)
	assert.LessOrEqual(t, maxSeen, 2)
}

func TestAnalyzeBatchLimits(t *testing.T) {
	a := New(nil, Options{})

	_, err := a.AnalyzeBatch(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = a.AnalyzeBatch(context.Background(), make([]Input, 11))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 10, a.BatchLimit())
}

func TestSuggestTags(t *testing.T) {
	completer := completerFunc(func(_ context.Context, system, _ string) (string, error) {
		assert.Contains(t, system, "suggest tags")
		return `{"tags":["Go","Concurrency"],"confidence":0.8}`, nil
	})
	result, err := New(completer, Options{}).SuggestTags(context.Background(), Input{Text: "goroutines"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "concurrency"}, result.Tags)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestSuggestTagsFallback(t *testing.T) {
	completer := completerFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("boom")
	})
	result, err := New(completer, Options{}).SuggestTags(context.Background(), Input{URL: "https://go.dev", Text: "x"})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, []string{"go.dev"}, result.Tags)
}

func TestApply(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Bookmark{Tags: []string{"go"}, Category: "Old"}

	Apply(b, Result{Category: "Programming", Tags: []string{"Go", "tips"}, Summary: "s", Sentiment: "positive"}, now)
	assert.Equal(t, "Programming", b.Category)
	assert.Equal(t, []string{"go", "tips"}, b.Tags)
	assert.Equal(t, "s", b.Summary)
	assert.Equal(t, "positive", b.Sentiment)
	require.NotNil(t, b.AnalyzedAt)
	assert.Equal(t, now, *b.AnalyzedAt)

	fallback := &models.Bookmark{Category: "Keep"}
	Apply(fallback, Result{Category: FallbackCategory, Tags: []string{"example.com"}, Fallback: true}, now)
	assert.Equal(t, "Keep", fallback.Category)
	assert.Equal(t, []string{"example.com"}, fallback.Tags)
	assert.Nil(t, fallback.AnalyzedAt)
}
