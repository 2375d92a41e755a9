package confirmation

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// Xs2aChecker compares the code with the one stored on the authorisation and
// tells the backend the verdict.
type Xs2aChecker struct {
	spi      spi.AuthorisationSpi
	repo     cms.Repository
	business *authorisation.BusinessStatusApplier
	logger   *slog.Logger
}

// NewXs2aChecker creates the XS2A-side checker.
func NewXs2aChecker(backend spi.AuthorisationSpi, repo cms.Repository, business *authorisation.BusinessStatusApplier, logger *slog.Logger) *Xs2aChecker {
	return &Xs2aChecker{spi: backend, repo: repo, business: business, logger: logger}
}

// Check notifies the backend exactly once whatever the outcome. A mismatch
// fails the request without touching the stored statuses.
func (c *Xs2aChecker) Check(ctx context.Context, req authorisation.Request, auth *domain.Authorisation) authorisation.Response {
	valid := codesMatch(auth.ScaAuthenticationData, req.ConfirmationCode)

	notified := c.spi.NotifyConfirmationCodeValidation(ctx, req.ContextData(), valid, req.Object)
	if !valid {
		c.logger.Warn("confirmation code mismatch", "authorisation_id", auth.ID)
		return authorisation.Fail(req, domain.CodeScaInvalid, "confirmation code does not match")
	}
	if notified.HasError() {
		return authorisation.Failed(req, spi.MapError(notified, req.Service()))
	}

	result := notified.Payload
	if err := c.business.Apply(ctx, req.Object, auth.ID, result.TransactionStatus, result.ConsentStatus); err != nil {
		c.logger.Error("applying business status", "authorisation_id", auth.ID, "error", err)
		return authorisation.Fail(req, domain.CodeInternalServerError, "")
	}

	status := result.ScaStatus
	if status == "" {
		status = domain.ScaStatusFinalised
	}
	if err := c.repo.UpdateAuthorisationStatus(ctx, auth.ID, status); err != nil {
		c.logger.Error("persisting sca status", "authorisation_id", auth.ID, "error", err)
		return authorisation.Fail(req, domain.CodeInternalServerError, "")
	}
	resp := authorisation.NewResponse(req, status)
	resp.Persisted = true
	return resp
}

func codesMatch(stored, submitted string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}
