// Package llm provides the JSON-mode completion clients used by content analysis.
//
// # Providers
//
// Client talks to any OpenAI-compatible chat/completions endpoint (OpenAI,
// OpenRouter, local gateways). GeminiClient uses the Google GenAI SDK.
// New picks one from config and returns a Completer.
//
// # Retry Behaviour
//
// Client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, 3 attempts by default) and honours
// Retry-After. A 429 that reports insufficient_quota is final.
// Context cancellation aborts retries immediately.
//
// # Failures
//
// FailureReason maps an error to a short cause string. Callers use it to
// degrade to a canned result rather than surface the error.
package llm
