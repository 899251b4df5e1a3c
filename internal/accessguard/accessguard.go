// Package accessguard gates the control API's invitation and bearer-token
// flows: invitation minting is restricted to callers on the local network
// and rate-limited per address, while every other control-plane request is
// authenticated by bearer token against the token store.
package accessguard

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/tokenstore"
)

// Guard wraps a tokenstore.Store with the source-network and rate-limit
// policy that governs invitation creation.
type Guard struct {
	store *tokenstore.Store

	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New returns a Guard backed by store. ratePerMinute bounds invitation
// creation per source address; values <= 0 fall back to 5/minute.
func New(store *tokenstore.Store, ratePerMinute int) *Guard {
	if ratePerMinute <= 0 {
		ratePerMinute = 5
	}
	return &Guard{
		store:    store,
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Every(time.Minute / time.Duration(ratePerMinute)),
		burst:    ratePerMinute,
	}
}

// CreateInvitation mints a new invitation, provided remoteAddr is on the
// local network and has not exceeded its invitation-creation rate limit.
func (g *Guard) CreateInvitation(ctx context.Context, remoteAddr string) (*tokenstore.Invitation, error) {
	if !IsLocalNetwork(remoteAddr) {
		return nil, apperrors.AccessDenied("invitations can only be created from the local network")
	}
	if !g.allow(remoteAddr) {
		return nil, apperrors.New(apperrors.CategoryAccessDenied, "rate limit exceeded, try again later").
			WithContext("remote_addr", remoteAddr).Build()
	}
	return g.store.CreateInvitation(ctx)
}

// RedeemInvitation exchanges an invitation code for a bearer token.
func (g *Guard) RedeemInvitation(ctx context.Context, code string) (*tokenstore.Token, error) {
	return g.store.RedeemInvitation(ctx, code)
}

// Authenticate validates a presented bearer token, as extracted from an
// incoming request's Authorization/X-API-KEY header.
func (g *Guard) Authenticate(ctx context.Context, token string) (*tokenstore.Token, error) {
	if token == "" {
		return nil, apperrors.AccessDenied("missing bearer token")
	}
	return g.store.ValidateToken(ctx, token)
}

func (g *Guard) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	g.limitMu.Lock()
	limiter, ok := g.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(g.rps, g.burst)
		g.limiters[host] = limiter
	}
	g.limitMu.Unlock()

	return limiter.Allow()
}

// IsLocalNetwork reports whether remoteAddr (host, or host:port) names a
// loopback or RFC1918/ULA private address — the same boundary the original
// invitation endpoint enforces before minting a code.
func IsLocalNetwork(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
