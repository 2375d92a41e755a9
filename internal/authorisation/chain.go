package authorisation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"xs2a/internal/cms"
	"xs2a/internal/common/database"
	"xs2a/internal/common/events"
	"xs2a/internal/common/metrics"
	"xs2a/internal/domain"
)

// Processor handles authorisations in exactly one SCA status.
type Processor interface {
	Status() domain.ScaStatus
	Process(ctx context.Context, req Request, auth *domain.Authorisation) Response
}

// ChainService dispatches an update to the processor responsible for the
// authorisation's current status and persists the outcome.
type ChainService struct {
	processors map[domain.ScaStatus]Processor
	repo       cms.Repository
	metrics    *metrics.Metrics
	events     *events.Emitter
	logger     *slog.Logger
}

// NewChainService registers the processors. Every status needs exactly one.
func NewChainService(repo cms.Repository, m *metrics.Metrics, emitter *events.Emitter, logger *slog.Logger, processors ...Processor) (*ChainService, error) {
	byStatus := make(map[domain.ScaStatus]Processor, len(processors))
	for _, p := range processors {
		s := p.Status()
		if !s.IsValid() {
			return nil, fmt.Errorf("chain: processor for unknown status %q", s)
		}
		if _, dup := byStatus[s]; dup {
			return nil, fmt.Errorf("chain: status %s handled twice", s)
		}
		byStatus[s] = p
	}
	for _, s := range domain.ScaStatuses {
		if _, ok := byStatus[s]; !ok {
			return nil, fmt.Errorf("chain: no processor for status %s", s)
		}
	}
	return &ChainService{
		processors: byStatus,
		repo:       repo,
		metrics:    m,
		events:     emitter,
		logger:     logger,
	}, nil
}

// Apply runs one SCA step. Expected failures come back inside the Response.
// A nil snapshot is a programming error and panics.
func (c *ChainService) Apply(ctx context.Context, req Request, auth *domain.Authorisation) Response {
	if auth == nil {
		panic("authorisation: Apply called without an authorisation snapshot")
	}
	if req.AuthorisationID == "" {
		req.AuthorisationID = auth.ID
	}
	if req.BusinessObjectID == "" {
		req.BusinessObjectID = auth.ParentID
	}
	if req.Type == "" {
		req.Type = auth.Type
	}

	from := auth.ScaStatus
	p, ok := c.processors[from]
	if !ok {
		return Fail(req, domain.CodeStatusInvalid, fmt.Sprintf("unknown sca status %q", from))
	}

	resp := p.Process(ctx, req, auth)
	if resp.ScaApproach == "" {
		resp.ScaApproach = auth.ScaApproach
	}
	if resp.HasError() {
		c.logger.Warn("sca step failed",
			"authorisation_id", auth.ID,
			"status", from,
			"approach", resp.ScaApproach,
			"errors", resp.Error.String(),
		)
		if resp.Persisted {
			c.Transitioned(ctx, auth, from, resp.ScaStatus, resp.ScaApproach)
		}
		return resp
	}

	update := cms.UpdateAuthorisationRequest{
		ScaStatus:             resp.ScaStatus,
		Psu:                   resp.Psu,
		ScaAuthenticationData: resp.ScaAuthenticationData,
	}
	if resp.ChosenMethod != nil {
		update.ChosenMethodID = resp.ChosenMethod.ID
	}
	if _, err := c.repo.UpdateAuthorisation(ctx, auth.ID, update); err != nil {
		return c.persistFailure(req, auth, err)
	}

	c.Transitioned(ctx, auth, from, resp.ScaStatus, resp.ScaApproach)
	return resp
}

// Transitioned records a status change made by the chain or by a caller that
// persisted it directly.
func (c *ChainService) Transitioned(ctx context.Context, auth *domain.Authorisation, from, to domain.ScaStatus, approach domain.ScaApproach) {
	if from == to {
		return
	}
	c.logger.Info("sca status changed",
		"authorisation_id", auth.ID,
		"from", from,
		"to", to,
		"approach", approach,
	)
	c.metrics.ScaTransition(string(from), string(to))
	c.events.Emit(ctx, events.EventScaStatusChanged, events.AggregateAuthorisation, auth.ID, events.ScaStatusChangedData{
		AuthorisationID:  auth.ID,
		BusinessObjectID: auth.ParentID,
		Type:             string(auth.Type),
		ScaApproach:      string(approach),
		From:             string(from),
		To:               string(to),
	})
}

func (c *ChainService) persistFailure(req Request, auth *domain.Authorisation, err error) Response {
	switch {
	case errors.Is(err, domain.ErrPsuMismatch):
		return Fail(req, domain.CodePsuCredentialsInvalid, "PSU does not match the authorisation")
	case database.IsNotFound(err):
		return Fail(req, domain.CodeResourceUnknown, "authorisation not found")
	}
	c.logger.Error("persisting sca step",
		"authorisation_id", auth.ID,
		"error", err,
	)
	return Fail(req, domain.CodeInternalServerError, "")
}
