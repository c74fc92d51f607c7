package ai

import "errors"

// ErrRateLimited indicates the AI provider returned a quota/limit error
// (HTTP 429 or similar). The worker retries these with backoff; every other
// enricher error is terminal for the finding.
var ErrRateLimited = errors.New("ai rate limited")

// ErrAPIKeyMissing indicates no credentials were provided. Never retried.
var ErrAPIKeyMissing = errors.New("api key was not provided")
