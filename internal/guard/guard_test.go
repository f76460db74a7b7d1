package guard

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Guard {
		return func(next Handler) Handler {
			return func(ctx context.Context, req Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	h := Chain(func(context.Context, Request) error {
		order = append(order, "handler")
		return nil
	}, mark("first"), mark("second"))

	if err := h(context.Background(), Request{}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLimiterSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := NewLimiter(2, 10*time.Second, clock.Now)

	if !l.Allow("u") || !l.Allow("u") {
		t.Fatal("first two calls should pass")
	}
	if l.Allow("u") {
		t.Fatal("third call inside the window should be limited")
	}
	if !l.Allow("other") {
		t.Fatal("users are limited independently")
	}

	clock.Advance(9 * time.Second)
	if l.Allow("u") {
		t.Fatal("window has not slid yet")
	}
	clock.Advance(2 * time.Second)
	if !l.Allow("u") {
		t.Fatal("old calls should have expired")
	}

	l.SetLimit(0, 0)
	for i := 0; i < 10; i++ {
		if !l.Allow("u") {
			t.Fatal("zero limit disables limiting")
		}
	}
}

func TestGuards(t *testing.T) {
	verifier := NewTokenVerifier("secret", "doudizhu")
	token, err := verifier.Issue("mod", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, _ := verifier.Issue("mod", time.Hour, time.Now().Add(-2*time.Hour))
	foreign, _ := NewTokenVerifier("other", "doudizhu").Issue("mod", time.Hour, time.Now())

	members := MembershipFunc(func(_ context.Context, sessionID, userID string) (bool, error) {
		if sessionID == "broken" {
			return false, errors.New("lookup failed")
		}
		return userID == "u1" || userID == "mod", nil
	})
	active := func(sessionID string) bool { return sessionID == "live" }

	tests := []struct {
		name    string
		guard   Guard
		req     Request
		wantErr error
		anyErr  bool
	}{
		{name: "Admin allowlist", guard: RequireAdmin([]string{"root"}, nil), req: Request{UserID: "root"}},
		{name: "Admin rejected", guard: RequireAdmin([]string{"root"}, nil), req: Request{UserID: "u1"}, wantErr: ErrNotAdmin},
		{name: "Admin token", guard: RequireAdmin(nil, verifier), req: Request{UserID: "mod", Token: token}},
		{name: "Admin token for someone else", guard: RequireAdmin(nil, verifier), req: Request{UserID: "u1", Token: token}, wantErr: ErrNotAdmin},
		{name: "Expired admin token", guard: RequireAdmin(nil, verifier), req: Request{UserID: "mod", Token: expired}, wantErr: ErrNotAdmin},
		{name: "Foreign admin token", guard: RequireAdmin(nil, verifier), req: Request{UserID: "mod", Token: foreign}, wantErr: ErrNotAdmin},
		{name: "Member", guard: RequireMember(members), req: Request{SessionID: "s", UserID: "u1"}},
		{name: "Not member", guard: RequireMember(members), req: Request{SessionID: "s", UserID: "u2"}, wantErr: ErrNotMember},
		{name: "Membership lookup error", guard: RequireMember(members), req: Request{SessionID: "broken", UserID: "u1"}, anyErr: true},
		{name: "Active game", guard: RequireActiveGame(active), req: Request{SessionID: "live"}},
		{name: "No active game", guard: RequireActiveGame(active), req: Request{SessionID: "idle"}, wantErr: ErrNoActiveGame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(context.Background(), tt.req, tt.guard)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Fatal("expected an error")
				}
			case err != nil:
				t.Fatalf("unexpected err: %v", err)
			}
		})
	}
}

func TestRateLimitGuardStopsChain(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	calls := 0
	h := Chain(func(context.Context, Request) error {
		calls++
		return nil
	}, RateLimit(NewLimiter(1, time.Minute, clock.Now)))

	req := Request{UserID: "u"}
	if err := h(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := h(context.Background(), req); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second call err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestTokenVerifierRequiresSecret(t *testing.T) {
	v := NewTokenVerifier("", "doudizhu")
	if _, err := v.Issue("u", time.Hour, time.Now()); err == nil {
		t.Fatal("issue without a secret should fail")
	}
	if _, err := v.Verify("x.y.z"); err == nil {
		t.Fatal("verify without a secret should fail")
	}
}
