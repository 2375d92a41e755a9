// Package decoupled starts SCA on the PSU's decoupled channel, such as a
// banking app push message.
package decoupled

import (
	"context"
	"log/slog"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/common/events"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// Notifier asks the backend to start decoupled SCA.
type Notifier struct {
	spi    spi.AuthorisationSpi
	repo   cms.Repository
	events *events.Emitter
	logger *slog.Logger
}

var _ authorisation.DecoupledStarter = (*Notifier)(nil)

// NewNotifier creates a notifier.
func NewNotifier(backend spi.AuthorisationSpi, repo cms.Repository, emitter *events.Emitter, logger *slog.Logger) *Notifier {
	return &Notifier{spi: backend, repo: repo, events: emitter, logger: logger}
}

// Proceed starts the decoupled channel for the chosen method. The resulting
// status is the one the backend declares, STARTED if it declares none.
func (n *Notifier) Proceed(ctx context.Context, req authorisation.Request, auth *domain.Authorisation, methodID string) authorisation.Response {
	result := n.spi.StartScaDecoupled(ctx, req.ContextData(), auth.ID, methodID, req.Object)
	if result.HasError() {
		e := spi.MapError(result, req.Service())
		persisted := false
		if e.HasCode(domain.CodePsuCredentialsInvalid) {
			if err := n.repo.UpdateAuthorisationStatus(ctx, auth.ID, domain.ScaStatusFailed); err != nil {
				n.logger.Error("persisting failed status", "authorisation_id", auth.ID, "error", err)
			} else {
				persisted = true
			}
		}
		n.logger.Warn("decoupled sca not started",
			"authorisation_id", auth.ID,
			"errors", e.String(),
		)
		resp := authorisation.Failed(req, e)
		resp.ScaApproach = domain.ScaApproachDecoupled
		resp.Persisted = persisted
		return resp
	}

	status := result.Payload.ScaStatus
	if status == "" {
		status = domain.ScaStatusStarted
	}
	resp := authorisation.NewResponse(req, status)
	resp.ScaApproach = domain.ScaApproachDecoupled
	resp.PsuMessage = result.Payload.PsuMessage
	if methodID != "" {
		resp.ChosenMethod = &domain.AuthenticationObject{ID: methodID, Decoupled: true}
	}

	n.events.Emit(ctx, events.EventDecoupledStarted, events.AggregateAuthorisation, auth.ID, events.DecoupledStartedData{
		AuthorisationID:  auth.ID,
		BusinessObjectID: auth.ParentID,
		MethodID:         methodID,
		PsuMessage:       result.Payload.PsuMessage,
	})
	return resp
}
