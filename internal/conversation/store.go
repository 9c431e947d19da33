// Package conversation persists chat turns and serves the bounded history
// window that feeds the completion context.
package conversation

import (
	"context"
	"errors"

	"github.com/derslik/tutor/internal/identity"
)

var ErrEmptyContent = errors.New("conversation: empty content")

// Store is an append-only turn log scoped by identity. Recent reads return
// at most limit turns ordered oldest first, since the assembled completion
// context must read chronologically.
type Store interface {
	AppendTurn(ctx context.Context, ident identity.Identity, role, content string) (*Turn, error)

	// RecentBefore returns the most recent turns strictly older than
	// beforeID, oldest first. beforeID == 0 means no upper bound.
	RecentBefore(ctx context.Context, ident identity.Identity, limit int, beforeID uint64) ([]Turn, error)

	Recent(ctx context.Context, ident identity.Identity, limit int) ([]Turn, error)
}

// Router dispatches between the durable store for registered users and the
// session-lifetime store for everyone else.
type Router struct {
	Users *Repo
	Anon  *AnonStore
}

func (r *Router) pick(ident identity.Identity) Store {
	if ident.Kind == identity.KindUser {
		return r.Users
	}
	return r.Anon
}

func (r *Router) AppendTurn(ctx context.Context, ident identity.Identity, role, content string) (*Turn, error) {
	return r.pick(ident).AppendTurn(ctx, ident, role, content)
}

func (r *Router) RecentBefore(ctx context.Context, ident identity.Identity, limit int, beforeID uint64) ([]Turn, error) {
	return r.pick(ident).RecentBefore(ctx, ident, limit, beforeID)
}

func (r *Router) Recent(ctx context.Context, ident identity.Identity, limit int) ([]Turn, error) {
	return r.pick(ident).Recent(ctx, ident, limit)
}
