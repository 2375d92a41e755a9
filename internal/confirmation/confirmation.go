// Package confirmation validates the confirmation code that finalises an
// authorisation left UNCONFIRMED after redirect SCA.
package confirmation

import (
	"context"
	"log/slog"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/common/database"
	"xs2a/internal/domain"
	"xs2a/internal/profile"
	"xs2a/internal/spi"
)

// Checker compares the code and drives the resulting status change.
type Checker interface {
	Check(ctx context.Context, req authorisation.Request, auth *domain.Authorisation) authorisation.Response
}

// NewChecker selects the XS2A-side or the backend-side check from the profile.
func NewChecker(p profile.Profile, backend spi.AuthorisationSpi, repo cms.Repository, business *authorisation.BusinessStatusApplier, logger *slog.Logger) Checker {
	if p.AuthorisationConfirmationCheckByXs2a {
		return NewXs2aChecker(backend, repo, business, logger)
	}
	return NewSpiChecker(backend, repo, business, logger)
}

// Service checks the preconditions shared by both checkers.
type Service struct {
	repo    cms.Repository
	checker Checker
	logger  *slog.Logger
}

// NewService creates a confirmation service.
func NewService(repo cms.Repository, checker Checker, logger *slog.Logger) *Service {
	return &Service{repo: repo, checker: checker, logger: logger}
}

// ProcessAuthorisationConfirmation validates req.ConfirmationCode for an
// UNCONFIRMED authorisation.
func (s *Service) ProcessAuthorisationConfirmation(ctx context.Context, req authorisation.Request) authorisation.Response {
	auth, err := s.repo.GetAuthorisation(ctx, req.AuthorisationID)
	switch {
	case database.IsNotFound(err):
		return authorisation.Fail(req, unknownCode(req.Type), "authorisation not found")
	case err != nil:
		s.logger.Error("reading authorisation", "authorisation_id", req.AuthorisationID, "error", err)
		return authorisation.Fail(req, domain.CodeInternalServerError, "")
	}
	if req.BusinessObjectID != "" && auth.ParentID != req.BusinessObjectID {
		return authorisation.Fail(req, unknownCode(req.Type), "authorisation not found")
	}
	if req.Type == "" {
		req.Type = auth.Type
	}
	req.BusinessObjectID = auth.ParentID

	if auth.ScaStatus != domain.ScaStatusUnconfirmed {
		return authorisation.Fail(req, domain.CodeScaInvalid, "authorisation is not waiting for a confirmation code")
	}
	if req.ConfirmationCode == "" {
		return authorisation.FailAt(req, domain.CodeFormatError, "confirmationCode", "confirmation code is missing")
	}
	if req.Object == nil {
		obj, err := s.repo.GetBusinessObject(ctx, auth.ParentID, auth.Type)
		if err != nil {
			if database.IsNotFound(err) {
				return authorisation.Fail(req, unknownCode(req.Type), "")
			}
			s.logger.Error("reading business object", "id", auth.ParentID, "error", err)
			return authorisation.Fail(req, domain.CodeInternalServerError, "")
		}
		req.Object = obj
	}

	resp := s.checker.Check(ctx, req, auth)
	resp.ScaApproach = auth.ScaApproach
	return resp
}

// unknownCode is the opaque not-found code of the service.
func unknownCode(t domain.AuthorisationType) domain.MessageErrorCode {
	if t.IsConsent() {
		return domain.CodeConsentUnknown
	}
	return domain.CodeResourceUnknown
}
