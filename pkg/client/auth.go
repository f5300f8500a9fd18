package client

import (
	"context"
	"sync"
)

// DefaultMaxReauth is the number of refresh-and-retry cycles before a
// rejected token becomes an AuthenticationError.
const DefaultMaxReauth = 2

// TokenSource supplies hub access tokens.
type TokenSource interface {
	// Token returns the current token.
	Token(ctx context.Context) (string, error)

	// Refresh obtains a new token after the hub rejected the current one.
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a fixed token. Refresh returns the same value, so a
// rejected static token fails after the re-auth budget.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Refresh returns the token unchanged.
func (t StaticToken) Refresh(context.Context) (string, error) { return string(t), nil }

// RefreshFunc adapts a token-issuing function into a caching TokenSource.
type RefreshFunc func(ctx context.Context) (string, error)

type refreshingSource struct {
	issue RefreshFunc

	mu    sync.Mutex
	token string
}

// NewRefreshingToken returns a TokenSource that calls issue on first use and
// on every refresh.
func NewRefreshingToken(issue RefreshFunc) TokenSource {
	return &refreshingSource{issue: issue}
}

func (s *refreshingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return s.Refresh(ctx)
}

func (s *refreshingSource) Refresh(ctx context.Context) (string, error) {
	tok, err := s.issue(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return tok, nil
}
