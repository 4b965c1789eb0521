// Package policy decides who may act on an approval instance.  It is
// deliberately decoupled from the approval service so that embedding a
// Policy is entirely opt-in; a nil *Policy means "any authenticated user
// may act" and is therefore the zero-cost default.
package policy

import (
	"context"
	"strings"
)

// Actor resolution modes.
const (
	ModeAny  = "any"  // any authenticated user may act (default)
	ModeList = "list" // only allow-listed users or groups may act
	ModeDeny = "deny" // nobody may act, the instance is poll/expiry only
)

// Policy represents the acting rules of one approval instance.
//
//   - Mode controls the high-level behaviour (any / list / deny).
//   - AllowUsers, AllowGroups select actors when Mode==list.
//   - BlockUsers always wins, regardless of Mode.
type Policy struct {
	Mode        string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowUsers  []string `json:"allowUsers,omitempty" yaml:"allowUsers,omitempty"`
	AllowGroups []string `json:"allowGroups,omitempty" yaml:"allowGroups,omitempty"`
	BlockUsers  []string `json:"blockUsers,omitempty" yaml:"blockUsers,omitempty"`
}

// IsAllowed reports whether the user (with its group memberships) may act.
// All comparisons are case-insensitive exact matches.
func (p *Policy) IsAllowed(user string, groups []string) bool {
	if p == nil {
		return true
	}
	normalized := strings.ToLower(user)

	// BlockUsers has priority.
	for _, blocked := range p.BlockUsers {
		if normalized == strings.ToLower(blocked) {
			return false
		}
	}

	switch p.Mode {
	case ModeDeny:
		return false
	case ModeList:
		for _, allowed := range p.AllowUsers {
			if normalized == strings.ToLower(allowed) {
				return true
			}
		}
		for _, group := range groups {
			for _, allowed := range p.AllowGroups {
				if strings.EqualFold(group, allowed) {
					return true
				}
			}
		}
		return false
	}
	return true
}

// Clone creates a copy of the policy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	return &Policy{
		Mode:        p.Mode,
		AllowUsers:  append([]string(nil), p.AllowUsers...),
		AllowGroups: append([]string(nil), p.AllowGroups...),
		BlockUsers:  append([]string(nil), p.BlockUsers...),
	}
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// Actor identifies the caller submitting an approval activity.
type Actor struct {
	User   string
	Groups []string
}

// WithActor embeds the acting caller in ctx.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, actor)
}

// ActorFromContext extracts the acting caller, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Actor); ok {
		return v
	}
	return nil
}
