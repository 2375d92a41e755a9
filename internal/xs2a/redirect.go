package xs2a

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/profile"
)

// RedirectService handles approaches where SCA happens on the ASPSP's own
// pages. The TPP only receives a link and cannot update the authorisation.
type RedirectService struct {
	approach domain.ScaApproach
	repo     cms.Repository
	profile  profile.Profile
	logger   *slog.Logger
	now      func() time.Time
}

// NewRedirectService creates the redirect approach service.
func NewRedirectService(repo cms.Repository, p profile.Profile, logger *slog.Logger) *RedirectService {
	return &RedirectService{approach: domain.ScaApproachRedirect, repo: repo, profile: p, logger: logger, now: time.Now}
}

// NewOAuthService creates the OAuth approach service.
func NewOAuthService(repo cms.Repository, p profile.Profile, logger *slog.Logger) *RedirectService {
	return &RedirectService{approach: domain.ScaApproachOAuth, repo: repo, profile: p, logger: logger, now: time.Now}
}

func (s *RedirectService) ScaApproach() domain.ScaApproach { return s.approach }

// StartAuthorisation creates the authorisation and returns the link the PSU
// is sent to.
func (s *RedirectService) StartAuthorisation(ctx context.Context, obj *domain.BusinessObject, parentType domain.AuthorisationType, in StartRequest) (StartResponse, *domain.ErrorHolder) {
	created, err := s.repo.CreateAuthorisation(ctx, obj.ID, parentType, cms.CreateAuthorisationRequest{
		Psu:         in.Psu,
		ScaApproach: s.approach,
		ScaStatus:   initialStatus(in.Psu),
		ExpiresAt:   s.now().Add(s.profile.AuthorisationExpiration).UTC(),
	})
	if err != nil {
		return StartResponse{}, createError(s.logger, parentType, obj.ID, err)
	}
	out := StartResponse{
		AuthorisationID:  created.AuthorisationID,
		BusinessObjectID: obj.ID,
		Type:             parentType,
		ScaStatus:        created.ScaStatus,
		ScaApproach:      created.ScaApproach,
		created:          created.ScaStatus,
	}
	if s.approach == domain.ScaApproachOAuth {
		out.ScaOAuth = s.profile.OAuthConfigurationURL
	} else {
		out.ScaRedirect = s.profile.RedirectLink(created.AuthorisationID, redirectReference(obj.ID, created.AuthorisationID))
	}
	return out, nil
}

// UpdateAuthorisation is not available: the PSU authenticates at the ASPSP.
func (s *RedirectService) UpdateAuthorisation(_ context.Context, req authorisation.Request, _ *domain.Authorisation) authorisation.Response {
	return authorisation.Fail(req, domain.CodeServiceInvalid, "PSU data cannot be updated for "+string(s.approach)+" SCA")
}

// redirectReference is the opaque id the ASPSP pages use to find the
// authorisation again.
func redirectReference(objectID, authorisationID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(objectID + "_=_" + authorisationID))
}
