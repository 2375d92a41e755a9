package scaapproach

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xs2a/internal/domain"
)

type stubService struct {
	approach domain.ScaApproach
}

func (s stubService) ScaApproach() domain.ScaApproach { return s.approach }

type stubLookup map[string]domain.ScaApproach

func (l stubLookup) GetAuthorisationScaApproach(_ context.Context, id string) (domain.ScaApproach, error) {
	a, ok := l[id]
	if !ok {
		return "", errors.New("not found")
	}
	return a, nil
}

func all() []stubService {
	return []stubService{
		{domain.ScaApproachEmbedded},
		{domain.ScaApproachDecoupled},
		{domain.ScaApproachRedirect},
		{domain.ScaApproachOAuth},
	}
}

func ptr(b bool) *bool { return &b }

func TestResolve(t *testing.T) {
	full := []domain.ScaApproach{domain.ScaApproachEmbedded, domain.ScaApproachDecoupled, domain.ScaApproachRedirect}
	redirectFirst := []domain.ScaApproach{domain.ScaApproachRedirect, domain.ScaApproachEmbedded}

	tests := []struct {
		name      string
		supported []domain.ScaApproach
		prefs     Preferences
		want      domain.ScaApproach
	}{
		{"default is first", full, Preferences{}, domain.ScaApproachEmbedded},
		{"redirect preferred", full, Preferences{Redirect: ptr(true)}, domain.ScaApproachRedirect},
		{"redirect preferred falls back to oauth", []domain.ScaApproach{domain.ScaApproachEmbedded, domain.ScaApproachOAuth}, Preferences{Redirect: ptr(true)}, domain.ScaApproachOAuth},
		{"redirect preferred but unsupported", []domain.ScaApproach{domain.ScaApproachEmbedded}, Preferences{Redirect: ptr(true)}, domain.ScaApproachEmbedded},
		{"redirect refused picks embedded", redirectFirst, Preferences{Redirect: ptr(false)}, domain.ScaApproachEmbedded},
		{"redirect refused decoupled preferred", full, Preferences{Redirect: ptr(false), Decoupled: ptr(true)}, domain.ScaApproachDecoupled},
		{"redirect refused only decoupled", []domain.ScaApproach{domain.ScaApproachRedirect, domain.ScaApproachDecoupled}, Preferences{Redirect: ptr(false)}, domain.ScaApproachDecoupled},
		{"decoupled preferred", full, Preferences{Decoupled: ptr(true)}, domain.ScaApproachDecoupled},
		{"decoupled not preferred", redirectFirst, Preferences{Decoupled: ptr(false)}, domain.ScaApproachRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.supported, tt.prefs))
		})
	}
}

func TestNewResolverCompleteness(t *testing.T) {
	tests := []struct {
		name      string
		supported []domain.ScaApproach
		services  []stubService
		wantErr   bool
	}{
		{"all registered", domain.ScaApproaches, all(), false},
		{"redirect only", []domain.ScaApproach{domain.ScaApproachRedirect}, []stubService{{domain.ScaApproachRedirect}}, false},
		{"missing oauth", []domain.ScaApproach{domain.ScaApproachOAuth}, []stubService{{domain.ScaApproachRedirect}}, true},
		{"embedded needs decoupled", []domain.ScaApproach{domain.ScaApproachEmbedded}, []stubService{{domain.ScaApproachEmbedded}}, true},
		{"duplicate", []domain.ScaApproach{domain.ScaApproachRedirect}, []stubService{{domain.ScaApproachRedirect}, {domain.ScaApproachRedirect}}, true},
		{"unknown approach", []domain.ScaApproach{domain.ScaApproachRedirect}, []stubService{{domain.ScaApproachRedirect}, {"SMOKE_SIGNAL"}}, true},
		{"nothing supported", nil, all(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.supported, stubLookup{}, tt.services...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := NewResolver([]domain.ScaApproach{domain.ScaApproachEmbedded}, stubLookup{}, stubService{domain.ScaApproachEmbedded})
	assert.ErrorIs(t, err, ErrUnsupportedApproach)
}

func TestServiceUsesRequestPreferences(t *testing.T) {
	r, err := NewResolver(domain.ScaApproaches, stubLookup{}, all()...)
	require.NoError(t, err)

	assert.Equal(t, domain.ScaApproachEmbedded, r.Service(context.Background()).ScaApproach())

	ctx := WithPreferences(context.Background(), Preferences{Redirect: ptr(true)})
	assert.Equal(t, domain.ScaApproachRedirect, r.Service(ctx).ScaApproach())
}

func TestServiceForAuthorisationUsesPersistedApproach(t *testing.T) {
	lookup := stubLookup{"a1": domain.ScaApproachDecoupled}
	r, err := NewResolver([]domain.ScaApproach{domain.ScaApproachEmbedded}, lookup, all()...)
	require.NoError(t, err)

	ctx := WithPreferences(context.Background(), Preferences{Redirect: ptr(true)})
	s, err := r.ServiceForAuthorisation(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScaApproachDecoupled, s.ScaApproach())

	_, err = r.ServiceForAuthorisation(ctx, "missing")
	assert.Error(t, err)
}

func TestServiceForUnregistered(t *testing.T) {
	r, err := NewResolver([]domain.ScaApproach{domain.ScaApproachRedirect}, stubLookup{}, stubService{domain.ScaApproachRedirect})
	require.NoError(t, err)
	_, err = r.ServiceFor(domain.ScaApproachOAuth)
	assert.ErrorIs(t, err, ErrUnsupportedApproach)
}

func TestPreferencesFromEmptyContext(t *testing.T) {
	p := PreferencesFrom(context.Background())
	assert.Nil(t, p.Redirect)
	assert.False(t, p.ExplicitPreferred())
}
