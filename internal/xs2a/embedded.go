package xs2a

import (
	"context"
	"log/slog"
	"time"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/profile"
)

// ChainApproachService runs embedded and decoupled authorisations through the
// stage chain. The two approaches differ only in what the backend offers.
type ChainApproachService struct {
	approach   domain.ScaApproach
	repo       cms.Repository
	chain      *authorisation.ChainService
	expiration time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewEmbeddedService creates the embedded approach service.
func NewEmbeddedService(repo cms.Repository, chain *authorisation.ChainService, p profile.Profile, logger *slog.Logger) *ChainApproachService {
	return newChainApproachService(domain.ScaApproachEmbedded, repo, chain, p, logger)
}

// NewDecoupledService creates the decoupled approach service.
func NewDecoupledService(repo cms.Repository, chain *authorisation.ChainService, p profile.Profile, logger *slog.Logger) *ChainApproachService {
	return newChainApproachService(domain.ScaApproachDecoupled, repo, chain, p, logger)
}

func newChainApproachService(a domain.ScaApproach, repo cms.Repository, chain *authorisation.ChainService, p profile.Profile, logger *slog.Logger) *ChainApproachService {
	return &ChainApproachService{
		approach:   a,
		repo:       repo,
		chain:      chain,
		expiration: p.AuthorisationExpiration,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ChainApproachService) ScaApproach() domain.ScaApproach { return s.approach }

// StartAuthorisation creates the authorisation and, when a password comes
// with the request, authenticates the PSU in the same call.
func (s *ChainApproachService) StartAuthorisation(ctx context.Context, obj *domain.BusinessObject, parentType domain.AuthorisationType, in StartRequest) (StartResponse, *domain.ErrorHolder) {
	created, err := s.repo.CreateAuthorisation(ctx, obj.ID, parentType, cms.CreateAuthorisationRequest{
		Psu:         in.Psu,
		ScaApproach: s.approach,
		ScaStatus:   initialStatus(in.Psu),
		ExpiresAt:   s.now().Add(s.expiration).UTC(),
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
	if in.Password == "" || in.Psu.IsEmpty() {
		return out, nil
	}

	auth, err := s.repo.GetAuthorisation(ctx, created.AuthorisationID)
	if err != nil {
		s.logger.Error("reading new authorisation", "authorisation_id", created.AuthorisationID, "error", err)
		return StartResponse{}, domain.NewError(parentType.ServiceType(), domain.CodeInternalServerError, "")
	}
	resp := s.chain.Apply(ctx, authorisation.Request{
		AuthorisationID:  auth.ID,
		BusinessObjectID: obj.ID,
		Type:             parentType,
		Psu:              in.Psu,
		Password:         in.Password,
		RequestID:        in.RequestID,
		Object:           obj,
	}, auth)
	if resp.HasError() {
		return StartResponse{}, resp.Error
	}
	out.ScaStatus = resp.ScaStatus
	out.ScaApproach = resp.ScaApproach
	out.AvailableMethods = resp.AvailableMethods
	out.ChosenMethod = resp.ChosenMethod
	out.Challenge = resp.Challenge
	out.PsuMessage = resp.PsuMessage
	return out, nil
}

// UpdateAuthorisation runs one stage.
func (s *ChainApproachService) UpdateAuthorisation(ctx context.Context, req authorisation.Request, auth *domain.Authorisation) authorisation.Response {
	return s.chain.Apply(ctx, req, auth)
}
