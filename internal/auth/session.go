// Package auth holds the shared bearer-token session used by every SPEAR call.
package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TokenSource issues a fresh bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Error reports that no token could be obtained. No further authenticated
// call can succeed, so it is fatal to a sync run.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: token refresh failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RefreshTimeout bounds one token request.
var RefreshTimeout = 30 * time.Second

// Session owns the current bearer token. It is safe for concurrent use:
// refreshes are single-flight and readers always see the latest token.
type Session struct {
	source TokenSource

	mu    sync.RWMutex
	token string

	group     singleflight.Group
	refreshes atomic.Int64
}

// NewSession creates a Session that obtains tokens from source.
func NewSession(source TokenSource) *Session {
	return &Session{source: source}
}

// Token returns the held token, refreshing first if none is held yet.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok != "" {
		return tok, nil
	}
	return s.Refresh(ctx)
}

// Refresh obtains a new token and replaces the held one unconditionally.
// Concurrent callers share a single in-flight refresh. The shared request is
// detached from any one caller's ctx and bounded by RefreshTimeout; a caller
// whose ctx ends stops waiting without failing the others.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		s.refreshes.Add(1)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()

		tok, err := s.source.Token(rctx)
		if err != nil {
			return "", &Error{Err: err}
		}
		if tok == "" {
			return "", &Error{Err: eris.New("auth: empty token")}
		}

		s.mu.Lock()
		s.token = tok
		s.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", eris.Wrap(ctx.Err(), "auth: refresh")
	case res := <-ch:
		if res.Err != nil {
			zap.L().Error("auth: refresh failed", zap.Error(res.Err))
			return "", res.Err
		}
		zap.L().Debug("auth: token refreshed", zap.Bool("shared", res.Shared))
		return res.Val.(string), nil
	}
}

// Refreshes returns how many token requests the session has issued.
func (s *Session) Refreshes() int64 {
	return s.refreshes.Load()
}
