package authorisation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

func TestNewChainServiceRequiresEveryStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cms.NewMemoryStore()
	all := Processors(Dependencies{Repo: store, Logger: logger})

	_, err := NewChainService(store, nil, nil, logger, all...)
	require.NoError(t, err)

	_, err = NewChainService(store, nil, nil, logger, all[1:]...)
	assert.ErrorContains(t, err, "received")

	_, err = NewChainService(store, nil, nil, logger, append(all, all[0])...)
	assert.ErrorContains(t, err, "twice")

	_, err = NewChainService(store, nil, nil, logger, append(all, rejectingStage{status: "bogus"})...)
	assert.Error(t, err)
}

func TestApplyWithoutSnapshotPanics(t *testing.T) {
	h := newHarness(t, payment())
	assert.Panics(t, func() {
		h.chain.Apply(context.Background(), Request{}, nil)
	})
}

func TestEmbeddedFlowProgressesMonotonically(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.ScaMethodsResp = spi.OK(spi.AvailableScaMethods{Methods: []domain.AuthenticationObject{
		{ID: "sms", Type: "SMS_OTP"},
		{ID: "chip", Type: "CHIP_OTP"},
	}})
	h.spi.AuthorisationCodeResp = spi.OK(spi.AuthorisationCodeResult{
		Method:    domain.AuthenticationObject{ID: "sms", Type: "SMS_OTP"},
		Challenge: &domain.ChallengeData{OtpMaxLength: 6, OtpFormat: "integer"},
	})
	h.spi.VerifyResp = spi.OK(spi.ExecutionResult{TransactionStatus: domain.TransactionStatusACSP})

	id := h.create(t, domain.ScaStatusReceived, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{})
	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusPsuIdentified, resp.ScaStatus)

	resp = h.apply(t, id, Request{Password: "secret"})
	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusPsuAuthenticated, resp.ScaStatus)
	assert.Len(t, resp.AvailableMethods, 2)
	assert.Equal(t, "secret", h.spi.Password())

	resp = h.apply(t, id, Request{AuthenticationMethodID: "sms"})
	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusScaMethodSelected, resp.ScaStatus)
	require.NotNil(t, resp.Challenge)
	assert.Equal(t, 6, resp.Challenge.OtpMaxLength)

	resp = h.apply(t, id, Request{ScaAuthenticationData: "123456"})
	require.False(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusFinalised, resp.ScaStatus)
	assert.Equal(t, "123456", h.spi.Code())

	history := h.store.StatusHistory(id)
	assert.Equal(t, []domain.ScaStatus{
		domain.ScaStatusReceived,
		domain.ScaStatusPsuIdentified,
		domain.ScaStatusPsuAuthenticated,
		domain.ScaStatusScaMethodSelected,
		domain.ScaStatusFinalised,
	}, history)
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i].Rank(), history[i-1].Rank())
	}

	auth, err := h.store.GetAuthorisation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, testPsu, auth.Psu)
	assert.Equal(t, "sms", auth.ChosenScaMethod)

	obj, err := h.store.GetBusinessObject(context.Background(), "pay-1", domain.AuthorisationTypePISCreation)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusACSP, obj.TransactionStatus)

	n, err := testutil.GatherAndCount(h.metrics.Registry(), "xs2a_sca_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestTerminalAndWaitingStatusesRejectWithoutBackendCalls(t *testing.T) {
	statuses := []domain.ScaStatus{
		domain.ScaStatusFinalised,
		domain.ScaStatusFailed,
		domain.ScaStatusExempted,
		domain.ScaStatusStarted,
		domain.ScaStatusUnconfirmed,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t, payment())
			id := h.create(t, status, domain.ScaApproachEmbedded)

			resp := h.apply(t, id, Request{
				Password:               "secret",
				AuthenticationMethodID: "sms",
				ScaAuthenticationData:  "123456",
			})

			require.True(t, resp.HasError())
			assert.Equal(t, domain.ScaStatusFailed, resp.ScaStatus)
			assert.True(t, resp.Error.HasCode(domain.CodeStatusInvalid))
			assert.Equal(t, 0, h.spi.TotalCalls())
			assert.Equal(t, status, h.status(t, id))
		})
	}
}

func TestPsuMismatchIsRejectedOnPersist(t *testing.T) {
	h := newHarness(t, payment())
	created, err := h.store.CreateAuthorisation(context.Background(), "pay-1", domain.AuthorisationTypePISCreation, cms.CreateAuthorisationRequest{
		Psu:         testPsu,
		ScaApproach: domain.ScaApproachEmbedded,
	})
	require.NoError(t, err)

	resp := h.apply(t, created.AuthorisationID, Request{Psu: domain.PsuIdData{ID: "intruder"}})

	require.True(t, resp.HasError())
	assert.True(t, resp.Error.HasCode(domain.CodePsuCredentialsInvalid))
	assert.Equal(t, domain.ScaStatusReceived, h.status(t, created.AuthorisationID))
}

func TestFailedResponsesAreNotPersistedByChain(t *testing.T) {
	h := newHarness(t, payment())
	h.spi.VerifyResp = spi.Fail[spi.ExecutionResult](domain.CodeScaInvalid)
	id := h.create(t, domain.ScaStatusScaMethodSelected, domain.ScaApproachEmbedded)

	resp := h.apply(t, id, Request{ScaAuthenticationData: "000000"})

	require.True(t, resp.HasError())
	assert.Equal(t, domain.ScaStatusFailed, resp.ScaStatus)
	assert.Equal(t, "PIS_400: SCA_INVALID", resp.Error.Error())
	assert.Equal(t, domain.ScaStatusScaMethodSelected, h.status(t, id))
}

func TestPersistedFailureIsRecordedAsTransition(t *testing.T) {
	tests := []struct {
		name   string
		resp   spi.Response[spi.PsuAuthorisationResult]
		series int
		status domain.ScaStatus
	}{
		{name: "credentials refused", resp: spi.Fail[spi.PsuAuthorisationResult](domain.CodePsuCredentialsInvalid), series: 1, status: domain.ScaStatusFailed},
		{name: "failure status", resp: spi.OK(spi.PsuAuthorisationResult{Status: spi.AuthorisationFailure}), series: 1, status: domain.ScaStatusFailed},
		{name: "service blocked", resp: spi.Fail[spi.PsuAuthorisationResult](domain.CodeServiceBlocked), series: 0, status: domain.ScaStatusPsuIdentified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, payment())
			h.spi.AuthorisePsuResp = tt.resp
			id := h.create(t, domain.ScaStatusPsuIdentified, domain.ScaApproachEmbedded)

			resp := h.apply(t, id, Request{Password: "wrong"})

			require.True(t, resp.HasError())
			assert.Equal(t, tt.series == 1, resp.Persisted)
			assert.Equal(t, tt.status, h.status(t, id))
			n, err := testutil.GatherAndCount(h.metrics.Registry(), "xs2a_sca_transitions_total")
			require.NoError(t, err)
			assert.Equal(t, tt.series, n)
		})
	}
}
