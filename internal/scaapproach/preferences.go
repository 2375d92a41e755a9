package scaapproach

import (
	"context"

	"xs2a/internal/domain"
)

// Preferences are the TPP's optional approach hints from the request headers.
// A nil field means the header was absent.
type Preferences struct {
	Redirect  *bool
	Decoupled *bool
	Explicit  *bool
}

type preferencesKey struct{}

// WithPreferences stores the request's preferences in ctx.
func WithPreferences(ctx context.Context, p Preferences) context.Context {
	return context.WithValue(ctx, preferencesKey{}, p)
}

// PreferencesFrom returns the preferences stored in ctx, or none.
func PreferencesFrom(ctx context.Context) Preferences {
	if p, ok := ctx.Value(preferencesKey{}).(Preferences); ok {
		return p
	}
	return Preferences{}
}

// ExplicitPreferred reports whether the TPP asked for explicit authorisation.
func (p Preferences) ExplicitPreferred() bool {
	return p.Explicit != nil && *p.Explicit
}

// Resolve picks the approach for a new authorisation from the ASPSP's ordered
// list of supported approaches. The first supported approach is the default.
func Resolve(supported []domain.ScaApproach, p Preferences) domain.ScaApproach {
	if len(supported) == 0 {
		return ""
	}
	has := func(a domain.ScaApproach) bool {
		for _, s := range supported {
			if s == a {
				return true
			}
		}
		return false
	}

	switch {
	case p.Redirect != nil && *p.Redirect:
		for _, s := range supported {
			if s.IsRedirectLike() {
				return s
			}
		}
	case p.Redirect != nil && !*p.Redirect:
		if p.Decoupled != nil && *p.Decoupled && has(domain.ScaApproachDecoupled) {
			return domain.ScaApproachDecoupled
		}
		if has(domain.ScaApproachEmbedded) {
			return domain.ScaApproachEmbedded
		}
		if has(domain.ScaApproachDecoupled) {
			return domain.ScaApproachDecoupled
		}
	case p.Decoupled != nil && *p.Decoupled:
		if has(domain.ScaApproachDecoupled) {
			return domain.ScaApproachDecoupled
		}
	}
	return supported[0]
}
