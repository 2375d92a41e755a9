package authorisation

import (
	"context"
	"fmt"
	"log/slog"

	"xs2a/internal/cms"
	"xs2a/internal/common/events"
	"xs2a/internal/domain"
)

// BusinessStatusApplier writes the consent or payment status the backend
// reported after SCA. A consent that becomes valid terminates the consents it
// supersedes.
type BusinessStatusApplier struct {
	repo   cms.Repository
	events *events.Emitter
	logger *slog.Logger
}

// NewBusinessStatusApplier creates an applier.
func NewBusinessStatusApplier(repo cms.Repository, emitter *events.Emitter, logger *slog.Logger) *BusinessStatusApplier {
	return &BusinessStatusApplier{repo: repo, events: emitter, logger: logger}
}

// Apply stores whichever of the statuses matches the object kind. Empty
// statuses are ignored.
func (a *BusinessStatusApplier) Apply(ctx context.Context, obj *domain.BusinessObject, authorisationID string, tx domain.TransactionStatus, consent domain.ConsentStatus) error {
	if obj == nil {
		return nil
	}
	if obj.Type.IsConsent() {
		return a.applyConsent(ctx, obj, authorisationID, consent)
	}
	return a.applyPayment(ctx, obj, authorisationID, tx)
}

// Reject marks the object rejected.
func (a *BusinessStatusApplier) Reject(ctx context.Context, obj *domain.BusinessObject, authorisationID string) error {
	return a.Apply(ctx, obj, authorisationID, domain.TransactionStatusRJCT, domain.ConsentStatusRejected)
}

func (a *BusinessStatusApplier) applyConsent(ctx context.Context, obj *domain.BusinessObject, authorisationID string, status domain.ConsentStatus) error {
	if status == "" {
		return nil
	}
	if err := a.repo.UpdateConsentStatus(ctx, obj.ID, status); err != nil {
		return fmt.Errorf("updating consent status: %w", err)
	}
	obj.ConsentStatus = status
	a.events.Emit(ctx, events.EventConsentStatusChanged, events.AggregateConsent, obj.ID, events.BusinessStatusChangedData{
		ID:              obj.ID,
		Type:            string(obj.Type),
		Status:          string(status),
		AuthorisationID: authorisationID,
	})

	if status != domain.ConsentStatusValid {
		return nil
	}
	terminated, err := a.repo.FindAndTerminateOldConsents(ctx, obj.ID)
	if err != nil {
		return fmt.Errorf("terminating old consents: %w", err)
	}
	if len(terminated) > 0 {
		a.logger.Info("obsolete consents terminated",
			"consent_id", obj.ID,
			"terminated", terminated,
		)
		a.events.Emit(ctx, events.EventConsentObsoleteTerminated, events.AggregateConsent, obj.ID, events.ConsentsTerminatedData{
			ConsentID:  obj.ID,
			Terminated: terminated,
		})
	}
	return nil
}

func (a *BusinessStatusApplier) applyPayment(ctx context.Context, obj *domain.BusinessObject, authorisationID string, status domain.TransactionStatus) error {
	if status == "" {
		return nil
	}
	if err := a.repo.UpdateTransactionStatus(ctx, obj.ID, status); err != nil {
		return fmt.Errorf("updating transaction status: %w", err)
	}
	obj.TransactionStatus = status
	a.events.Emit(ctx, events.EventPaymentStatusChanged, events.AggregatePayment, obj.ID, events.BusinessStatusChangedData{
		ID:              obj.ID,
		Type:            string(obj.Type),
		Status:          string(status),
		AuthorisationID: authorisationID,
	})
	return nil
}
