// Package scaapproach selects the service responsible for an SCA approach.
package scaapproach

import (
	"context"
	"errors"
	"fmt"

	"xs2a/internal/domain"
)

// Service is implemented by everything that handles exactly one approach.
type Service interface {
	ScaApproach() domain.ScaApproach
}

// ApproachLookup reads the approach persisted for an authorisation.
type ApproachLookup interface {
	GetAuthorisationScaApproach(ctx context.Context, authorisationID string) (domain.ScaApproach, error)
}

// ErrUnsupportedApproach is returned when no service handles an approach.
var ErrUnsupportedApproach = errors.New("sca approach not supported")

// Resolver maps approaches to services. It is built once at startup and is
// safe for concurrent use.
type Resolver[T Service] struct {
	supported []domain.ScaApproach
	services  map[domain.ScaApproach]T
	lookup    ApproachLookup
}

// NewResolver registers the services and fails if an approach the ASPSP can
// reach has no service. Decoupled is reachable whenever embedded is, because a
// single decoupled SCA method switches an embedded authorisation over.
func NewResolver[T Service](supported []domain.ScaApproach, lookup ApproachLookup, services ...T) (*Resolver[T], error) {
	if len(supported) == 0 {
		return nil, errors.New("resolver: no supported sca approaches")
	}
	r := &Resolver[T]{
		supported: append([]domain.ScaApproach(nil), supported...),
		services:  make(map[domain.ScaApproach]T, len(services)),
		lookup:    lookup,
	}
	for _, s := range services {
		a := s.ScaApproach()
		if !a.IsValid() {
			return nil, fmt.Errorf("resolver: service declares unknown approach %q", a)
		}
		if _, dup := r.services[a]; dup {
			return nil, fmt.Errorf("resolver: approach %s registered twice", a)
		}
		r.services[a] = s
	}
	for _, a := range Reachable(supported) {
		if _, ok := r.services[a]; !ok {
			return nil, fmt.Errorf("resolver: no service for approach %s: %w", a, ErrUnsupportedApproach)
		}
	}
	return r, nil
}

// Reachable lists the approaches an authorisation may end up with.
func Reachable(supported []domain.ScaApproach) []domain.ScaApproach {
	out := make([]domain.ScaApproach, 0, len(supported)+1)
	seen := make(map[domain.ScaApproach]bool, len(supported)+1)
	add := func(a domain.ScaApproach) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, a := range supported {
		add(a)
		if a == domain.ScaApproachEmbedded {
			add(domain.ScaApproachDecoupled)
		}
	}
	return out
}

// Approach resolves the approach for a new authorisation from the request context.
func (r *Resolver[T]) Approach(ctx context.Context) domain.ScaApproach {
	return Resolve(r.supported, PreferencesFrom(ctx))
}

// Service returns the service for a new authorisation.
func (r *Resolver[T]) Service(ctx context.Context) T {
	return r.services[r.Approach(ctx)]
}

// ServiceFor returns the service registered for a.
func (r *Resolver[T]) ServiceFor(a domain.ScaApproach) (T, error) {
	s, ok := r.services[a]
	if !ok {
		var zero T
		return zero, fmt.Errorf("approach %s: %w", a, ErrUnsupportedApproach)
	}
	return s, nil
}

// ServiceForAuthorisation returns the service for the approach already
// recorded against the authorisation, so a flow never changes approach midway.
func (r *Resolver[T]) ServiceForAuthorisation(ctx context.Context, authorisationID string) (T, error) {
	a, err := r.lookup.GetAuthorisationScaApproach(ctx, authorisationID)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("reading approach of %s: %w", authorisationID, err)
	}
	return r.ServiceFor(a)
}
