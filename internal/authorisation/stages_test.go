package authorisation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xs2a/internal/domain"
	"xs2a/internal/spi"
	"xs2a/internal/spi/spitest"
)

func TestReceivedWithoutPsuIsFormatError(t *testing.T) {
	h := newHarness(t, payment())
	id := h.create(t, domain.ScaStatusReceived, domain.ScaApproachEmbedded)
	auth, err := h.store.GetAuthorisation(context.Background(), id)
	require.NoError(t, err)

	resp := h.chain.Apply(context.Background(), Request{AuthorisationID: id}, auth)

	require.True(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusFailed, resp.ScaStatus)
	assert.True(t, resp.Error.HasCode(domain.CodeFormatError))
	assert.Equal(t, 0, h.spi.TotalCalls())
}

func TestReceivedWithPasswordAuthenticatesAtOnce(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{Methods: []domain.AuthenticationObject{{ID: "sms"}}})
	id := h.create(t, domain.ScaStatusReceived, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{Password: "secret"})

	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusScaMethodSelected, resp.ScaStatus)
	assert.Equal(t, 1, h.spi.Calls(spitest.OpAuthorisePsu))
}

func TestPsuIdentifiedRequiresPassword(t *testing.T) {
	h := newHarness(t, payment())
	id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{})
	require.True(t, resp.HasError())
	assert.Equal(t, "psuData.password", resp.Error.Messages()[0].Path)

	resp = h.apply(t, id, Request{UpdatePsuIdentification: true})
	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusPsuIdentified, resp.ScaStatus)
}

func TestZeroMethodsExecutesWithoutSca(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{})
	h.spi.ExecuteResp = spi.OK(spi.ExecutionResult{TransactionStatus: domain.TransactionStatusACSC})
	id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{Password: "secret"})

	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusFinalised, resp.ScaStatus)
	assert.Equal(t, 1, h.spi.Calls(spitest.OpExecuteWithoutSca))
	assert.Equal(t, domain.ScaStatusFinalised, h.status(t, id))

	obj, err := h.store.GetBusinessObject(context.Background(), "pay-1", domain.AuthorisationTypePISCreation)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusACSC, obj.TransactionStatus)
}

func TestSingleDecoupledMethodForcesApproach(t *testing.T) {
	for _, initial := range []domain.ScaApproach{domain.ScaApproachEmbedded, domain.ScaApproachRedirect} {
		t.Run(string(initial), func(t *testing.T) {
			h := newHarness(t, payment())
			h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{Methods: []domain.AuthenticationObject{
				{ID: "push", Type: "PUSH_OTP", Decoupled: true},
			}})
			id := h.create(t, domain.ScaStatusPsuIdentified, initial)

			resp := h.apply(t, id, Request{Password: "secret"})

			require.False(t, resp.HasError())
			assert.Equal(t, domain.ScaStatusStarted, resp.ScaStatus)
			assert.Equal(t, domain.ScaApproachDecoupled, resp.ScaApproach)
			assert.Equal(t, 1, h.decoupled.calls)
			assert.Equal(t, "push", h.decoupled.methodID)

			approach, err := h.store.GetAuthorisationScaApproach(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, domain.ScaApproachDecoupled, approach)
			assert.Equal(t, domain.ScaStatusStarted, h.status(t, id))
			assert.Equal(t, 0, h.spi.Calls(spitest.OpRequestCode))
		})
	}
}

func TestSingleMethodRequestsCodeImmediately(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{Methods: []domain.AuthenticationObject{{ID: "sms", Type: "SMS_OTP"}}})
	h.spi.AuthorisationCodeResp = spi.OK(spi.AuthorisationCodeResult{
		Challenge: &domain.ChallengeData{AdditionalInformation: "code sent to +49***12"},
	})
	id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{Password: "secret"})

	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusScaMethodSelected, resp.ScaStatus)
	assert.Equal(t, "sms", h.spi.MethodID())
	require.NotNil(t, resp.ChosenMethod)
	assert.Equal(t, "SMS_OTP", resp.ChosenMethod.Type)

	auth, err := h.store.GetAuthorisation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "sms", auth.ChosenScaMethod)
}

func TestCredentialFailurePersistsFailedImmediately(t *testing.T) {
	tests := []struct {
		name string
		resp spi.Response[spi.PsuAuthorisationResult]
	}{
		{"mapped error", spi.Fail[spi.PsuAuthorisationResult](domain.CodePsuCredentialsInvalid)},
		{"failure status", spi.OK(spi.PsuAuthorisationResult{Status: spi.AuthorisationFailure})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, payment())
			h.spi.AuthorisePsuResp = tt.resp
			id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

			resp := h.apply(t, id, Request{Password: "wrong"})

			require.True(t, resp.HasError())
			assert.Equal(t, domain.ScaStatusFailed, resp.ScaStatus)
			assert.True(t, resp.Error.HasCode(domain.CodePsuCredentialsInvalid))
			assert.Equal(t, 401, resp.Error.Type().Status)
			assert.Equal(t, domain.ScaStatusFailed, h.status(t, id))
			assert.Contains(t, h.store.StatusHistory(id), domain.ScaStatusFailed)
			assert.Equal(t, 0, h.spi.Calls(spitest.OpRequestScaMethods))
		})
	}
}

func TestOtherAuthenticationErrorsAreNotPersisted(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.AuthorisePsuResp = spi.Fail[spi.PsuAuthorisationResult](domain.CodeServiceBlocked)
	id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{Password: "secret"})

	require.True(t, resp.HasError())
	assert.Equal(t, "PIS_403", resp.Error.Type().String())
	assert.Equal(t, domain.ScaStatusPsuIdentified, h.status(t, id))
}

func TestAttemptFailureKeepsStatus(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.AuthorisePsuResp = spi.OK(spi.PsuAuthorisationResult{Status: spi.AuthorisationAttemptFailure})
	id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{Password: "wrong"})

	require.True(t, resp.HasError())
	assert.True(t, resp.Error.HasCode(domain.CodePsuCredentialsInvalid))
	assert.Equal(t, domain.ScaStatusPsuIdentified, resp.ScaStatus)
	assert.Equal(t, domain.ScaStatusPsuIdentified, h.status(t, id))
	assert.NotContains(t, h.store.StatusHistory(id), domain.ScaStatusFailed)
}

func TestScaExemption(t *testing.T) {
	t.Run("on authentication", func(t *testing.T) {
		h := newHarness(t, payment())
		h.spi.AuthorisePsuResp = spi.OK(spi.PsuAuthorisationResult{Status: spi.AuthorisationSuccess, ScaExempted: true})
		id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

		resp := h.apply(t, id, Request{Password: "secret"})

		require.False(t, resp.HasError())
		assert.Equal(t, domain.ScaStatusExempted, resp.ScaStatus)
		assert.Equal(t, 1, h.spi.Calls(spitest.OpExecuteWithoutSca))
		assert.Equal(t, 0, h.spi.Calls(spitest.OpRequestScaMethods))
	})

	t.Run("on method listing", func(t *testing.T) {
		h := newHarness(t, payment())
		h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{ScaExempted: true})
		id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

		resp := h.apply(t, id, Request{Password: "secret"})

		require.False(t, resp.HasError())
		assert.Equal(t, domain.ScaStatusExempted, h.status(t, id))
		assert.Equal(t, domain.ScaStatusExempted, resp.ScaStatus)
	})
}

func TestMethodSelection(t *testing.T) {
	methods := []domain.AuthenticationObject{{ID: "sms"}, {ID: "push", Decoupled: true}}

	newAuthenticated := func(t *testing.T) (*harness, string) {
		h := newHarness(t, payment())
		h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{Methods: methods})
		id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)
		resp := h.apply(t, id, Request{Password: "secret"})
		require.Equal(t, domain.ScaStatusPsuAuthenticated, resp.ScaStatus)
		return h, id
	}

	t.Run("missing method", func(t *testing.T) {
		h, id := newAuthenticated(t)
		resp := h.apply(t, id, Request{})
		require.True(t, resp.HasError())
		assert.True(t, resp.Error.HasCode(domain.CodeFormatError))
	})

	t.Run("unknown method", func(t *testing.T) {
		h, id := newAuthenticated(t)
		resp := h.apply(t, id, Request{AuthenticationMethodID: "fax"})
		require.True(t, resp.HasError())
		assert.True(t, resp.Error.HasCode(domain.CodeScaMethodUnknown))
		assert.Equal(t, domain.ScaStatusPsuAuthenticated, h.status(t, id))
	})

	t.Run("decoupled method", func(t *testing.T) {
		h, id := newAuthenticated(t)
		resp := h.apply(t, id, Request{AuthenticationMethodID: "push"})
		require.False(t, resp.HasError())
		assert.Equal(t, domain.ScaStatusStarted, resp.ScaStatus)
		assert.Equal(t, 1, h.decoupled.calls)

		approach, err := h.store.GetAuthorisationScaApproach(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.ScaApproachDecoupled, approach)
	})

	t.Run("code request fails", func(t *testing.T) {
		h, id := newAuthenticated(t)
		h.spi.AuthorisationCodeResp = spi.Fail[spi.AuthorisationCodeResult](domain.CodeScaMethodUnknown)
		resp := h.apply(t, id, Request{AuthenticationMethodID: "sms"})
		require.True(t, resp.HasError())
		assert.Equal(t, domain.ScaStatusFailed, resp.ScaStatus)
	})
}

func TestMethodListingFailure(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.ScaMethodsResp = spi.Fail[spi.AvailableScaMethods](domain.CodeServiceBlocked)
	id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{Password: "secret"})

	require.True(t, resp.HasError())
	assert.True(t, resp.Error.HasCode(domain.CodeServiceBlocked))
	assert.Equal(t, domain.ScaStatusPsuIdentified, h.status(t, id))
}

func TestScaMethodSelectedRequiresAuthenticationData(t *testing.T) {
	h := newHarness(t, payment())
	id := h.create(t, domain.ScaStatusScaMethodSelected, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{})

	require.True(t, resp.HasError())
	assert.Equal(t, "scaAuthenticationData", resp.Error.Messages()[0].Path)
	assert.Equal(t, 0, h.spi.TotalCalls())
}
