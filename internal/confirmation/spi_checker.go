package confirmation

import (
	"context"
	"log/slog"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// SpiChecker forwards the code to the backend, which owns the comparison.
type SpiChecker struct {
	spi      spi.AuthorisationSpi
	repo     cms.Repository
	business *authorisation.BusinessStatusApplier
	logger   *slog.Logger
}

// NewSpiChecker creates the backend-side checker.
func NewSpiChecker(backend spi.AuthorisationSpi, repo cms.Repository, business *authorisation.BusinessStatusApplier, logger *slog.Logger) *SpiChecker {
	return &SpiChecker{spi: backend, repo: repo, business: business, logger: logger}
}

// Check persists the resulting SCA status after the round trip whether the
// backend accepted the code or not. A backend error rejects the consent or
// payment.
func (c *SpiChecker) Check(ctx context.Context, req authorisation.Request, auth *domain.Authorisation) authorisation.Response {
	result := c.spi.CheckConfirmationCode(ctx, req.ContextData(), spi.CheckConfirmationCodeRequest{
		AuthorisationID:  auth.ID,
		ConfirmationCode: req.ConfirmationCode,
	}, req.Object)

	var resp authorisation.Response
	if result.HasError() {
		resp = authorisation.Failed(req, spi.MapError(result, req.Service()))
		if err := c.business.Reject(ctx, req.Object, auth.ID); err != nil {
			c.logger.Error("rejecting business object", "authorisation_id", auth.ID, "error", err)
		}
	} else {
		status := result.Payload.ScaStatus
		if status == "" {
			status = domain.ScaStatusFinalised
		}
		resp = authorisation.NewResponse(req, status)
		if err := c.business.Apply(ctx, req.Object, auth.ID, result.Payload.TransactionStatus, result.Payload.ConsentStatus); err != nil {
			c.logger.Error("applying business status", "authorisation_id", auth.ID, "error", err)
			resp = authorisation.Fail(req, domain.CodeInternalServerError, "")
		}
	}

	if err := c.repo.UpdateAuthorisationStatus(ctx, auth.ID, resp.ScaStatus); err != nil {
		c.logger.Error("persisting sca status", "authorisation_id", auth.ID, "error", err)
		return resp
	}
	resp.Persisted = true
	return resp
}
