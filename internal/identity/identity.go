// Package identity models the acting principal of a request. Exactly one
// variant applies per request: an anonymous browser session, a registered
// user, or an admin principal.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

type Kind int

const (
	KindAnonymous Kind = iota
	KindUser
	KindAdmin
)

type Identity struct {
	Kind      Kind
	UserID    uint64 // set for KindUser
	SessionID string // set for KindAnonymous
	AdminName string // set for KindAdmin
}

func Anonymous(sessionID string) Identity {
	return Identity{Kind: KindAnonymous, SessionID: sessionID}
}

func User(id uint64) Identity {
	return Identity{Kind: KindUser, UserID: id}
}

func Admin(name string) Identity {
	return Identity{Kind: KindAdmin, AdminName: name}
}

// NewSessionID mints the key for a fresh anonymous session.
func NewSessionID() string {
	return uuid.NewString()
}

// Key is the stable per-identity key used for conversation scoping and
// per-identity serialization.
func (i Identity) Key() string {
	switch i.Kind {
	case KindUser:
		return fmt.Sprintf("user:%d", i.UserID)
	case KindAdmin:
		return "admin:" + i.AdminName
	default:
		return "anon:" + i.SessionID
	}
}
