package decoupled

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
	"xs2a/internal/spi/spitest"
)

func setup(t *testing.T) (*cms.MemoryStore, *domain.Authorisation, authorisation.Request) {
	t.Helper()
	store := cms.NewMemoryStore()
	psu := domain.PsuIdData{ID: "PSU-1"}
	store.SaveBusinessObject(domain.BusinessObject{ID: "consent-1", Type: domain.AuthorisationTypeAIS, TppID: "tpp"})

	created, err := store.CreateAuthorisation(context.Background(), "consent-1", domain.AuthorisationTypeAIS, cms.CreateAuthorisationRequest{
		Psu:         psu,
		ScaApproach: domain.ScaApproachDecoupled,
		ScaStatus:   domain.ScaStatusPsuIdentified,
	})
	require.NoError(t, err)
	auth, err := store.GetAuthorisation(context.Background(), created.AuthorisationID)
	require.NoError(t, err)

	req := authorisation.Request{
		AuthorisationID:  auth.ID,
		BusinessObjectID: "consent-1",
		Type:             domain.AuthorisationTypeAIS,
		Psu:              psu,
	}
	return store, auth, req
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProceedDefaultsToStarted(t *testing.T) {
	store, auth, req := setup(t)
	fake := spitest.New()
	fake.DecoupledResp = spi.OK(spi.DecoupledScaResult{PsuMessage: "Please confirm in your app"})

	resp := NewNotifier(fake, store, nil, logger()).Proceed(context.Background(), req, auth, "push")

	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusStarted, resp.ScaStatus)
	assert.Equal(t, domain.ScaApproachDecoupled, resp.ScaApproach)
	assert.Equal(t, "Please confirm in your app", resp.PsuMessage)
	require.NotNil(t, resp.ChosenMethod)
	assert.Equal(t, "push", resp.ChosenMethod.ID)
	assert.Equal(t, "push", fake.MethodID())
	assert.Equal(t, 1, fake.Calls(spitest.OpStartDecoupled))
}

func TestProceedUsesDeclaredStatus(t *testing.T) {
	store, auth, req := setup(t)
	fake := spitest.New()
	fake.DecoupledResp = spi.OK(spi.DecoupledScaResult{ScaStatus: domain.ScaStatusFinalised})

	resp := NewNotifier(fake, store, nil, logger()).Proceed(context.Background(), req, auth, "push")
	assert.Equal(t, domain.ScaStatusFinalised, resp.ScaStatus)
}

func TestProceedCredentialsInvalidPersistsFailed(t *testing.T) {
	store, auth, req := setup(t)
	fake := spitest.New()
	fake.DecoupledResp = spi.Fail[spi.DecoupledScaResult](domain.CodePsuCredentialsInvalid)

	resp := NewNotifier(fake, store, nil, logger()).Proceed(context.Background(), req, auth, "push")

	require.True(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusFailed, resp.ScaStatus)
	assert.True(t, resp.Error.HasCode(domain.CodePsuCredentialsInvalid))
	assert.Equal(t, "AIS_401", resp.Error.Type().String())
	assert.True(t, resp.Persisted)

	stored, err := store.GetAuthorisation(context.Background(), auth.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScaStatusFailed, stored.ScaStatus)
}

func TestProceedOtherErrorsAreNotPersisted(t *testing.T) {
	store, auth, req := setup(t)
	fake := spitest.New()
	fake.DecoupledResp = spi.Fail[spi.DecoupledScaResult](domain.CodeServiceBlocked)

	resp := NewNotifier(fake, store, nil, logger()).Proceed(context.Background(), req, auth, "push")

	require.True(t, resp.HasError())
	stored, err := store.GetAuthorisation(context.Background(), auth.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScaStatusPsuIdentified, stored.ScaStatus)
}
