// Package routing resolves an inbound chat identity to a session scope.
//
// The single-user/multi-user branching lives behind one Strategy interface
// selected at startup, so intake handlers stay mode-agnostic.
package routing

import (
	"context"
	"log"

	"github.com/xiaot623/hitl-relay/directory"
	"github.com/xiaot623/hitl-relay/linkcode"
)

// Kind is the outcome class of a resolution.
type Kind string

const (
	// KindScoped routes to one user's sessions only.
	KindScoped Kind = "scoped"
	// KindGlobal routes with no user scope.
	KindGlobal Kind = "global"
	// KindRejected means the identity is not permitted. Benign, not an error.
	KindRejected Kind = "rejected"
	// KindNeedsLinking means the identity is unmapped and a link code was
	// issued for it.
	KindNeedsLinking Kind = "needs_linking"
)

// Resolution is the outcome of resolving a channel identity. Every branch is
// a normal return value; resolution never fails.
type Resolution struct {
	Kind     Kind
	UserID   string // set for KindScoped
	LinkCode string // set for KindNeedsLinking
}

// Scope returns the owner scope to route with: the user id for scoped
// resolutions, empty for global.
func (r Resolution) Scope() string {
	if r.Kind == KindScoped {
		return r.UserID
	}
	return ""
}

// Strategy resolves a channel identity to a Resolution.
type Strategy interface {
	Resolve(ctx context.Context, channelID string) Resolution
}

// SingleUser permits exactly one channel identity and routes it globally.
type SingleUser struct {
	AllowedChannelID string
}

func (s *SingleUser) Resolve(ctx context.Context, channelID string) Resolution {
	if channelID != "" && channelID == s.AllowedChannelID {
		return Resolution{Kind: KindGlobal}
	}
	return Resolution{Kind: KindRejected}
}

// MultiUser resolves identities through the user directory. Unmapped
// identities get a single-use link code, except for the configured
// single-user fallback identity which degrades to global routing so both
// modes can coexist during migration.
type MultiUser struct {
	Directory directory.Directory
	Codes     linkcode.Store

	// FallbackChannelID, when non-empty, is routed globally instead of
	// entering the linking flow.
	FallbackChannelID string
}

func (m *MultiUser) Resolve(ctx context.Context, channelID string) Resolution {
	userID, err := m.Directory.LookupByChannel(ctx, channelID)
	if err == nil {
		return Resolution{Kind: KindScoped, UserID: userID}
	}
	// Any lookup failure degrades to the not-found branch.

	if m.FallbackChannelID != "" && channelID == m.FallbackChannelID {
		return Resolution{Kind: KindGlobal}
	}

	code, err := m.Codes.Issue(ctx, channelID)
	if err != nil {
		log.Printf("ERROR: failed to issue link code for %s: %v", channelID, err)
		return Resolution{Kind: KindRejected}
	}
	return Resolution{Kind: KindNeedsLinking, LinkCode: code}
}
