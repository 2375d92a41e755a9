package xs2a

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/common/database"
	"xs2a/internal/confirmation"
	"xs2a/internal/domain"
	"xs2a/internal/profile"
	"xs2a/internal/scaapproach"
)

// UpdateRequest is the body of an update-PSU-data call.
type UpdateRequest struct {
	Psu                    domain.PsuIdData
	Password               string
	AuthenticationMethodID string
	ScaAuthenticationData  string
	ConfirmationCode       string
	RequestID              string
}

// RedirectOutcome is reported by the ASPSP pages once the PSU is done.
type RedirectOutcome struct {
	Succeeded         bool
	ConfirmationCode  string
	TransactionStatus domain.TransactionStatus
	ConsentStatus     domain.ConsentStatus
}

// Service is the entry point of the HTTP layer.
type Service struct {
	repo         cms.Repository
	resolver     *scaapproach.Resolver[ApproachService]
	chain        *authorisation.ChainService
	confirmation *confirmation.Service
	business     *authorisation.BusinessStatusApplier
	decider      authorisation.Decider
	profile      profile.Profile
	logger       *slog.Logger
	now          func() time.Time
}

// Dependencies groups the collaborators of the Service.
type Dependencies struct {
	Repo         cms.Repository
	Resolver     *scaapproach.Resolver[ApproachService]
	Chain        *authorisation.ChainService
	Confirmation *confirmation.Service
	Business     *authorisation.BusinessStatusApplier
	Profile      profile.Profile
	Logger       *slog.Logger
}

// NewService creates the facade.
func NewService(d Dependencies) *Service {
	return &Service{
		repo:         d.Repo,
		resolver:     d.Resolver,
		chain:        d.Chain,
		confirmation: d.Confirmation,
		business:     d.Business,
		decider:      authorisation.NewDecider(d.Profile),
		profile:      d.Profile,
		logger:       d.Logger,
		now:          time.Now,
	}
}

// StartAuthorisation creates an authorisation with the approach resolved from
// the request preferences.
func (s *Service) StartAuthorisation(ctx context.Context, parentType domain.AuthorisationType, parentID string, in StartRequest) (StartResponse, *domain.ErrorHolder) {
	obj, e := s.loadObject(ctx, parentType, parentID, in.Psu)
	if e != nil {
		return StartResponse{}, e
	}
	return s.start(ctx, obj, parentType, in)
}

// StartImplicitAuthorisation starts an authorisation right after initiation
// unless the flow has to be explicit. The bool reports whether one was created.
func (s *Service) StartImplicitAuthorisation(ctx context.Context, parentType domain.AuthorisationType, parentID string, in StartRequest) (StartResponse, bool, *domain.ErrorHolder) {
	obj, e := s.loadObject(ctx, parentType, parentID, in.Psu)
	if e != nil {
		return StartResponse{}, false, e
	}
	prefs := scaapproach.PreferencesFrom(ctx)
	if s.decider.IsExplicitMethod(prefs.ExplicitPreferred(), obj.MultilevelScaRequired) {
		s.logger.Debug("explicit authorisation required", "id", parentID, "multilevel", obj.MultilevelScaRequired)
		return StartResponse{}, false, nil
	}
	resp, e := s.start(ctx, obj, parentType, in)
	if e != nil {
		return StartResponse{}, false, e
	}
	return resp, true, nil
}

func (s *Service) start(ctx context.Context, obj *domain.BusinessObject, parentType domain.AuthorisationType, in StartRequest) (StartResponse, *domain.ErrorHolder) {
	svc := s.resolver.Service(ctx)
	resp, e := svc.StartAuthorisation(ctx, obj, parentType, in)
	if e != nil {
		return StartResponse{}, e
	}
	s.chain.Transitioned(ctx, &domain.Authorisation{ID: resp.AuthorisationID, ParentID: obj.ID, Type: parentType}, "", resp.created, resp.ScaApproach)
	s.logger.Info("authorisation started",
		"authorisation_id", resp.AuthorisationID,
		"parent_id", obj.ID,
		"type", parentType,
		"approach", resp.ScaApproach,
		"status", resp.ScaStatus,
	)
	return resp, nil
}

// UpdateAuthorisation applies one PSU step. A confirmation code goes to the
// confirmation validator when the ASPSP mandates the confirmation request.
func (s *Service) UpdateAuthorisation(ctx context.Context, parentType domain.AuthorisationType, parentID, authorisationID string, in UpdateRequest) authorisation.Response {
	req := authorisation.Request{
		AuthorisationID:        authorisationID,
		BusinessObjectID:       parentID,
		Type:                   parentType,
		Psu:                    in.Psu,
		Password:               in.Password,
		AuthenticationMethodID: in.AuthenticationMethodID,
		ScaAuthenticationData:  in.ScaAuthenticationData,
		ConfirmationCode:       in.ConfirmationCode,
		RequestID:              in.RequestID,
	}
	req.UpdatePsuIdentification = !in.Psu.IsEmpty() && in.Password == "" &&
		in.AuthenticationMethodID == "" && in.ScaAuthenticationData == "" && in.ConfirmationCode == ""

	auth, e := s.loadAuthorisation(ctx, parentType, parentID, authorisationID)
	if e != nil {
		return authorisation.Failed(req, e)
	}
	if !auth.Psu.IsEmpty() && !in.Psu.IsEmpty() && !auth.Psu.Matches(in.Psu) {
		return authorisation.Failed(req, unknown(parentType))
	}
	if !auth.IsFinal() && auth.IsExpired(s.now()) {
		return authorisation.Fail(req, domain.CodeResourceExpired, "authorisation has expired")
	}
	obj, e := s.loadObject(ctx, parentType, parentID, in.Psu)
	if e != nil {
		return authorisation.Failed(req, e)
	}
	req.Object = obj

	if in.ConfirmationCode != "" && s.profile.AuthorisationConfirmationRequestMandated {
		resp := s.confirmation.ProcessAuthorisationConfirmation(ctx, req)
		if resp.Persisted {
			s.chain.Transitioned(ctx, auth, auth.ScaStatus, resp.ScaStatus, auth.ScaApproach)
		}
		return resp
	}

	svc, err := s.resolver.ServiceForAuthorisation(ctx, auth.ID)
	if err != nil {
		s.logger.Error("resolving approach service", "authorisation_id", auth.ID, "error", err)
		return authorisation.Fail(req, domain.CodeInternalServerError, "")
	}
	return svc.UpdateAuthorisation(ctx, req, auth)
}

// GetScaStatus returns the current status of the authorisation.
func (s *Service) GetScaStatus(ctx context.Context, parentType domain.AuthorisationType, parentID, authorisationID string) (domain.ScaStatus, *domain.ErrorHolder) {
	auth, e := s.loadAuthorisation(ctx, parentType, parentID, authorisationID)
	if e != nil {
		return "", e
	}
	return auth.ScaStatus, nil
}

// GetAuthorisationIDs lists the authorisations of the object.
func (s *Service) GetAuthorisationIDs(ctx context.Context, parentType domain.AuthorisationType, parentID string, psu domain.PsuIdData) ([]string, *domain.ErrorHolder) {
	if _, e := s.loadObject(ctx, parentType, parentID, psu); e != nil {
		return nil, e
	}
	ids, err := s.repo.GetAuthorisationIDs(ctx, parentID, parentType)
	if err != nil {
		return nil, s.repoError(parentType, parentID, err)
	}
	return ids, nil
}

// RecordRedirectOutcome finishes an authorisation performed on the ASPSP's
// pages or on the decoupled channel. With a mandated confirmation request a
// successful outcome leaves the authorisation UNCONFIRMED until the TPP sends
// the code; otherwise it is finalised and the business status applied.
func (s *Service) RecordRedirectOutcome(ctx context.Context, authorisationID string, out RedirectOutcome) (domain.ScaStatus, *domain.ErrorHolder) {
	auth, err := s.repo.GetAuthorisation(ctx, authorisationID)
	if err != nil {
		return "", s.repoError(domain.AuthorisationTypePISCreation, authorisationID, err)
	}
	service := auth.Type.ServiceType()

	if !auth.ScaApproach.IsRedirectLike() && auth.ScaApproach != domain.ScaApproachDecoupled {
		return "", domain.NewError(service, domain.CodeServiceInvalid, "authorisation is not performed at the ASPSP")
	}
	if auth.IsFinal() || auth.ScaStatus == domain.ScaStatusUnconfirmed {
		return "", domain.NewError(service, domain.CodeStatusInvalid, fmt.Sprintf("authorisation is %s", auth.ScaStatus))
	}

	var next domain.ScaStatus
	switch {
	case !out.Succeeded:
		next = domain.ScaStatusFailed
		if err := s.repo.UpdateAuthorisationStatus(ctx, auth.ID, next); err != nil {
			return "", s.repoError(auth.Type, auth.ID, err)
		}
	case s.profile.AuthorisationConfirmationRequestMandated:
		if out.ConfirmationCode == "" {
			return "", domain.NewErrorHolder(domain.ErrorType{Service: service, Status: 400},
				domain.TppMessage{Code: domain.CodeFormatError, Text: "confirmation code is missing", Path: "confirmationCode"})
		}
		next = domain.ScaStatusUnconfirmed
		if _, err := s.repo.UpdateAuthorisation(ctx, auth.ID, cms.UpdateAuthorisationRequest{
			ScaStatus:             next,
			ScaAuthenticationData: out.ConfirmationCode,
		}); err != nil {
			return "", s.repoError(auth.Type, auth.ID, err)
		}
	default:
		obj, err := s.repo.GetBusinessObject(ctx, auth.ParentID, auth.Type)
		if err != nil {
			return "", s.repoError(auth.Type, auth.ParentID, err)
		}
		if err := s.business.Apply(ctx, obj, auth.ID, out.TransactionStatus, out.ConsentStatus); err != nil {
			s.logger.Error("applying business status", "authorisation_id", auth.ID, "error", err)
			return "", domain.NewError(service, domain.CodeInternalServerError, "")
		}
		next = domain.ScaStatusFinalised
		if err := s.repo.UpdateAuthorisationStatus(ctx, auth.ID, next); err != nil {
			return "", s.repoError(auth.Type, auth.ID, err)
		}
	}

	s.chain.Transitioned(ctx, auth, auth.ScaStatus, next, auth.ScaApproach)
	return next, nil
}

// loadObject reads the parent and checks that the PSU may act on it.
func (s *Service) loadObject(ctx context.Context, parentType domain.AuthorisationType, parentID string, psu domain.PsuIdData) (*domain.BusinessObject, *domain.ErrorHolder) {
	obj, err := s.repo.GetBusinessObject(ctx, parentID, parentType)
	if err != nil {
		return nil, s.repoError(parentType, parentID, err)
	}
	if !obj.HasPsu(psu) {
		s.logger.Warn("psu does not own object", "id", parentID, "type", parentType)
		return nil, unknown(parentType)
	}
	if obj.Type.IsConsent() && obj.ConsentStatus.IsFinal() {
		return nil, domain.NewError(parentType.ServiceType(), domain.CodeStatusInvalid, fmt.Sprintf("consent is %s", obj.ConsentStatus))
	}
	if !obj.Type.IsConsent() && obj.TransactionStatus.IsFinal() {
		return nil, domain.NewError(parentType.ServiceType(), domain.CodeStatusInvalid, fmt.Sprintf("payment is %s", obj.TransactionStatus))
	}
	return obj, nil
}

// loadAuthorisation reads an authorisation and checks it belongs to the parent.
func (s *Service) loadAuthorisation(ctx context.Context, parentType domain.AuthorisationType, parentID, authorisationID string) (*domain.Authorisation, *domain.ErrorHolder) {
	auth, err := s.repo.GetAuthorisation(ctx, authorisationID)
	if err != nil {
		return nil, s.repoError(parentType, authorisationID, err)
	}
	if auth.ParentID != parentID || auth.Type != parentType {
		return nil, unknown(parentType)
	}
	return auth, nil
}

func (s *Service) repoError(parentType domain.AuthorisationType, id string, err error) *domain.ErrorHolder {
	if database.IsNotFound(err) {
		return unknown(parentType)
	}
	s.logger.Error("cms request failed", "id", id, "error", err)
	return domain.NewError(parentType.ServiceType(), domain.CodeInternalServerError, "")
}

// createError maps a failed CreateAuthorisation.
func createError(logger *slog.Logger, parentType domain.AuthorisationType, parentID string, err error) *domain.ErrorHolder {
	if database.IsNotFound(err) {
		return unknown(parentType)
	}
	logger.Error("creating authorisation", "parent_id", parentID, "error", err)
	return domain.NewError(parentType.ServiceType(), domain.CodeInternalServerError, "")
}

// unknown is the opaque 403 used for missing objects and ownership mismatches.
func unknown(parentType domain.AuthorisationType) *domain.ErrorHolder {
	code := domain.CodeResourceUnknown
	if parentType.IsConsent() {
		code = domain.CodeConsentUnknown
	}
	return domain.NewError(parentType.ServiceType(), code, "")
}
