package cms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xs2a/internal/common/database"
	"xs2a/internal/common/money"
	"xs2a/internal/domain"
)

type seeder func(t *testing.T, obj domain.BusinessObject)

// runRepositoryContract exercises behaviour every Repository must share.
func runRepositoryContract(t *testing.T, repo Repository, seed seeder, prefix string) {
	ctx := context.Background()
	alice := domain.PsuIdData{ID: "alice", IDType: "retail"}

	payment := domain.BusinessObject{
		ID:                prefix + "pay-1",
		Type:              domain.AuthorisationTypePISCreation,
		TppID:             "tpp-1",
		Psus:              []domain.PsuIdData{alice},
		TransactionStatus: domain.TransactionStatusRCVD,
		PaymentProduct:    "sepa-credit-transfers",
		InstructedAmount:  &money.Money{AmountMinor: 12345, Currency: money.EUR},
	}
	seed(t, payment)

	t.Run("create requires parent", func(t *testing.T) {
		_, err := repo.CreateAuthorisation(ctx, prefix+"missing", domain.AuthorisationTypePISCreation, CreateAuthorisationRequest{})
		assert.True(t, database.IsNotFound(err))
	})

	t.Run("authorisation lifecycle", func(t *testing.T) {
		created, err := repo.CreateAuthorisation(ctx, payment.ID, domain.AuthorisationTypePISCreation, CreateAuthorisationRequest{
			ScaApproach: domain.ScaApproachEmbedded,
			ExpiresAt:   time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ScaStatusReceived, created.ScaStatus)

		ids, err := repo.GetAuthorisationIDs(ctx, payment.ID, domain.AuthorisationTypePISCreation)
		require.NoError(t, err)
		assert.Contains(t, ids, created.AuthorisationID)

		updated, err := repo.UpdateAuthorisation(ctx, created.AuthorisationID, UpdateAuthorisationRequest{
			ScaStatus: domain.ScaStatusPsuIdentified,
			Psu:       alice,
		})
		require.NoError(t, err)
		assert.Equal(t, alice, updated.Psu)

		_, err = repo.UpdateAuthorisation(ctx, created.AuthorisationID, UpdateAuthorisationRequest{
			Psu: domain.PsuIdData{ID: "mallory"},
		})
		assert.ErrorIs(t, err, domain.ErrPsuMismatch)

		methods := []domain.AuthenticationObject{
			{ID: "sms", Type: "SMS_OTP"},
			{ID: "push", Type: "PUSH_OTP", Decoupled: true},
		}
		ok, err := repo.SaveAuthenticationMethods(ctx, created.AuthorisationID, methods)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, repo.UpdateScaApproach(ctx, created.AuthorisationID, domain.ScaApproachDecoupled))
		approach, err := repo.GetAuthorisationScaApproach(ctx, created.AuthorisationID)
		require.NoError(t, err)
		assert.Equal(t, domain.ScaApproachDecoupled, approach)

		require.NoError(t, repo.UpdateAuthorisationStatus(ctx, created.AuthorisationID, domain.ScaStatusFailed))

		got, err := repo.GetAuthorisation(ctx, created.AuthorisationID)
		require.NoError(t, err)
		assert.Equal(t, domain.ScaStatusFailed, got.ScaStatus)
		assert.Equal(t, alice, got.Psu)
		assert.Equal(t, methods, got.AvailableMethods)
	})

	t.Run("unknown authorisation", func(t *testing.T) {
		_, err := repo.GetAuthorisation(ctx, prefix+"nope")
		assert.True(t, database.IsNotFound(err))
		assert.True(t, database.IsNotFound(repo.UpdateAuthorisationStatus(ctx, prefix+"nope", domain.ScaStatusFailed)))
	})

	t.Run("business object kind", func(t *testing.T) {
		obj, err := repo.GetBusinessObject(ctx, payment.ID, domain.AuthorisationTypePISCancellation)
		require.NoError(t, err)
		assert.Equal(t, payment.InstructedAmount, obj.InstructedAmount)

		_, err = repo.GetBusinessObject(ctx, payment.ID, domain.AuthorisationTypeAIS)
		assert.True(t, database.IsNotFound(err))

		require.NoError(t, repo.UpdateTransactionStatus(ctx, payment.ID, domain.TransactionStatusACSC))
		obj, err = repo.GetBusinessObject(ctx, payment.ID, domain.AuthorisationTypePISCreation)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusACSC, obj.TransactionStatus)
	})

	t.Run("terminate old consents", func(t *testing.T) {
		consent := func(id string, status domain.ConsentStatus, psu domain.PsuIdData, tpp string) domain.BusinessObject {
			return domain.BusinessObject{
				ID:                 prefix + id,
				Type:               domain.AuthorisationTypeAIS,
				TppID:              prefix + tpp,
				Psus:               []domain.PsuIdData{psu},
				ConsentStatus:      status,
				RecurringIndicator: true,
			}
		}
		seed(t, consent("old-valid", domain.ConsentStatusValid, alice, "tpp-1"))
		seed(t, consent("old-expired", domain.ConsentStatusExpired, alice, "tpp-1"))
		seed(t, consent("other-psu", domain.ConsentStatusValid, domain.PsuIdData{ID: "bob"}, "tpp-1"))
		seed(t, consent("other-tpp", domain.ConsentStatusValid, alice, "tpp-2"))
		seed(t, consent("new", domain.ConsentStatusValid, alice, "tpp-1"))

		ids, err := repo.FindAndTerminateOldConsents(ctx, prefix+"new")
		require.NoError(t, err)
		assert.Equal(t, []string{prefix + "old-valid"}, ids)

		old, err := repo.GetBusinessObject(ctx, prefix+"old-valid", domain.AuthorisationTypeAIS)
		require.NoError(t, err)
		assert.Equal(t, domain.ConsentStatusTerminatedByTpp, old.ConsentStatus)

		untouched, err := repo.GetBusinessObject(ctx, prefix+"other-tpp", domain.AuthorisationTypeAIS)
		require.NoError(t, err)
		assert.Equal(t, domain.ConsentStatusValid, untouched.ConsentStatus)
	})
}
