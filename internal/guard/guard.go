// Package guard holds the request filters hosts run before an action reaches
// the engine: admin checks, session membership, rate limiting and active-game
// checks. None of them touch game state.
package guard

import (
	"context"
	"errors"
)

var (
	ErrNotAdmin     = errors.New("admin only")
	ErrNotMember    = errors.New("not a member of this session")
	ErrRateLimited  = errors.New("too many requests, slow down")
	ErrNoActiveGame = errors.New("no active game in this session")
)

// Request describes an inbound action as seen by the host.
type Request struct {
	SessionID string
	UserID    string
	Action    string
	Token     string // optional bearer token for admin actions
}

// Handler processes a request that passed every guard.
type Handler func(ctx context.Context, req Request) error

// Guard wraps a Handler with a check.
type Guard func(next Handler) Handler

// Chain applies guards so that the first one runs first.
func Chain(h Handler, guards ...Guard) Handler {
	for i := len(guards) - 1; i >= 0; i-- {
		h = guards[i](h)
	}
	return h
}

// Check runs the guards with a no-op handler. Hosts that dispatch on their own
// use it to ask "may this request proceed".
func Check(ctx context.Context, req Request, guards ...Guard) error {
	return Chain(func(context.Context, Request) error { return nil }, guards...)(ctx, req)
}

// MembershipChecker answers whether userID belongs to sessionID.
type MembershipChecker interface {
	IsMember(ctx context.Context, sessionID, userID string) (bool, error)
}

// MembershipFunc adapts a function to MembershipChecker.
type MembershipFunc func(ctx context.Context, sessionID, userID string) (bool, error)

func (f MembershipFunc) IsMember(ctx context.Context, sessionID, userID string) (bool, error) {
	return f(ctx, sessionID, userID)
}

// RequireMember rejects users the checker does not know in the session.
func RequireMember(checker MembershipChecker) Guard {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			ok, err := checker.IsMember(ctx, req.SessionID, req.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotMember
			}
			return next(ctx, req)
		}
	}
}

// RequireActiveGame rejects requests for sessions without a running game.
func RequireActiveGame(active func(sessionID string) bool) Guard {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			if !active(req.SessionID) {
				return ErrNoActiveGame
			}
			return next(ctx, req)
		}
	}
}

// RequireAdmin lets through users on the allowlist, or users presenting an
// admin token issued to them by verifier. verifier may be nil.
func RequireAdmin(admins []string, verifier *TokenVerifier) Guard {
	allowed := make(map[string]struct{}, len(admins))
	for _, id := range admins {
		allowed[id] = struct{}{}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			if _, ok := allowed[req.UserID]; ok {
				return next(ctx, req)
			}
			if verifier == nil || req.Token == "" {
				return ErrNotAdmin
			}
			subject, err := verifier.Verify(req.Token)
			if err != nil {
				return errors.Join(ErrNotAdmin, err)
			}
			if subject != req.UserID {
				return ErrNotAdmin
			}
			return next(ctx, req)
		}
	}
}

// RateLimit rejects users that exceed the limiter's budget.
func RateLimit(l *Limiter) Guard {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			if !l.Allow(req.UserID) {
				return ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
