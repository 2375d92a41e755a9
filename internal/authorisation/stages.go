package authorisation

import (
	"context"
	"log/slog"

	"xs2a/internal/cms"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// DecoupledStarter hands an authorisation over to the decoupled channel.
type DecoupledStarter interface {
	Proceed(ctx context.Context, req Request, auth *domain.Authorisation, methodID string) Response
}

// Dependencies are the collaborators shared by the stage processors.
type Dependencies struct {
	Repo      cms.Repository
	Spi       spi.AuthorisationSpi
	Decoupled DecoupledStarter
	Business  *BusinessStatusApplier
	Logger    *slog.Logger
}

// Processors returns one processor per SCA status.
func Processors(d Dependencies) []Processor {
	identified := &psuIdentifiedStage{d}
	return []Processor{
		&receivedStage{identified: identified},
		identified,
		&psuAuthenticatedStage{d},
		&scaMethodSelectedStage{d},
		rejectingStage{status: domain.ScaStatusStarted, text: "authorisation is waiting for the decoupled confirmation"},
		rejectingStage{status: domain.ScaStatusUnconfirmed, text: "authorisation is waiting for a confirmation code"},
		rejectingStage{status: domain.ScaStatusFinalised, text: "authorisation is finalised"},
		rejectingStage{status: domain.ScaStatusFailed, text: "authorisation has failed"},
		rejectingStage{status: domain.ScaStatusExempted, text: "authorisation is exempted from SCA"},
	}
}

// receivedStage identifies the PSU and authenticates right away when the
// request already carries a password.
type receivedStage struct {
	identified *psuIdentifiedStage
}

func (s *receivedStage) Status() domain.ScaStatus { return domain.ScaStatusReceived }

func (s *receivedStage) Process(ctx context.Context, req Request, auth *domain.Authorisation) Response {
	if req.Psu.IsEmpty() {
		req.Psu = auth.Psu
	}
	if req.Psu.IsEmpty() {
		return FailAt(req, domain.CodeFormatError, "PSU-ID", "PSU identification is missing")
	}
	if req.Password == "" {
		return NewResponse(req, domain.ScaStatusPsuIdentified)
	}
	return s.identified.authenticate(ctx, req, auth)
}

// psuIdentifiedStage verifies the PSU credentials and requests the SCA methods.
type psuIdentifiedStage struct {
	Dependencies
}

func (s *psuIdentifiedStage) Status() domain.ScaStatus { return domain.ScaStatusPsuIdentified }

func (s *psuIdentifiedStage) Process(ctx context.Context, req Request, auth *domain.Authorisation) Response {
	if req.Psu.IsEmpty() {
		req.Psu = auth.Psu
	}
	if req.Psu.IsEmpty() {
		return FailAt(req, domain.CodeFormatError, "PSU-ID", "PSU identification is missing")
	}
	if req.Password == "" {
		if req.UpdatePsuIdentification {
			return NewResponse(req, domain.ScaStatusPsuIdentified)
		}
		return FailAt(req, domain.CodeFormatError, "psuData.password", "password is missing")
	}
	return s.authenticate(ctx, req, auth)
}

func (s *psuIdentifiedStage) authenticate(ctx context.Context, req Request, auth *domain.Authorisation) Response {
	cd := req.ContextData()
	result := s.Spi.AuthorisePsu(ctx, cd, req.Psu, req.Password, req.Object)
	if result.HasError() {
		e := spi.MapError(result, req.Service())
		resp := Failed(req, e)
		if e.HasCode(domain.CodePsuCredentialsInvalid) {
			resp.Persisted = s.persistFailed(ctx, auth.ID)
		}
		return resp
	}

	switch result.Payload.Status {
	case spi.AuthorisationFailure:
		resp := Fail(req, domain.CodePsuCredentialsInvalid, "")
		resp.Persisted = s.persistFailed(ctx, auth.ID)
		return resp
	case spi.AuthorisationAttemptFailure:
		resp := Fail(req, domain.CodePsuCredentialsInvalid, "")
		resp.ScaStatus = auth.ScaStatus
		return resp
	}
	if result.Payload.ScaExempted {
		return s.executeWithoutSca(ctx, req, auth, domain.ScaStatusExempted)
	}

	available := s.Spi.RequestAvailableScaMethods(ctx, cd, req.Object)
	if available.HasError() {
		return Failed(req, spi.MapError(available, req.Service()))
	}
	if available.Payload.ScaExempted {
		return s.executeWithoutSca(ctx, req, auth, domain.ScaStatusExempted)
	}

	methods := available.Payload.Methods
	switch {
	case len(methods) == 0:
		return s.executeWithoutSca(ctx, req, auth, domain.ScaStatusFinalised)
	case len(methods) == 1 && methods[0].Decoupled:
		return proceedDecoupled(ctx, s.Dependencies, req, auth, methods[0])
	case len(methods) == 1:
		return requestCode(ctx, s.Dependencies, req, methods[0])
	}

	ok, err := s.Repo.SaveAuthenticationMethods(ctx, auth.ID, methods)
	if err != nil || !ok {
		s.Logger.Error("saving sca methods", "authorisation_id", auth.ID, "error", err)
		return Fail(req, domain.CodeInternalServerError, "")
	}
	resp := NewResponse(req, domain.ScaStatusPsuAuthenticated)
	resp.AvailableMethods = methods
	return resp
}

func (s *psuIdentifiedStage) executeWithoutSca(ctx context.Context, req Request, auth *domain.Authorisation, status domain.ScaStatus) Response {
	result := s.Spi.ExecuteWithoutSca(ctx, req.ContextData(), req.Object)
	if result.HasError() {
		return Failed(req, spi.MapError(result, req.Service()))
	}
	if err := s.Business.Apply(ctx, req.Object, auth.ID, result.Payload.TransactionStatus, result.Payload.ConsentStatus); err != nil {
		s.Logger.Error("applying business status", "authorisation_id", auth.ID, "error", err)
		return Fail(req, domain.CodeInternalServerError, "")
	}
	resp := NewResponse(req, status)
	resp.PsuMessage = result.Payload.PsuMessage
	return resp
}

// persistFailed writes FAILED at once so the next read sees it. The failure
// response is never persisted by the chain.
func (s *psuIdentifiedStage) persistFailed(ctx context.Context, authorisationID string) bool {
	if err := s.Repo.UpdateAuthorisationStatus(ctx, authorisationID, domain.ScaStatusFailed); err != nil {
		s.Logger.Error("persisting failed status", "authorisation_id", authorisationID, "error", err)
		return false
	}
	return true
}

// psuAuthenticatedStage validates the PSU's choice among the stored methods.
type psuAuthenticatedStage struct {
	Dependencies
}

func (s *psuAuthenticatedStage) Status() domain.ScaStatus { return domain.ScaStatusPsuAuthenticated }

func (s *psuAuthenticatedStage) Process(ctx context.Context, req Request, auth *domain.Authorisation) Response {
	if req.Psu.IsEmpty() {
		req.Psu = auth.Psu
	}
	if req.AuthenticationMethodID == "" {
		return FailAt(req, domain.CodeFormatError, "authenticationMethodId", "authentication method is missing")
	}
	method, ok := domain.FindMethod(auth.AvailableMethods, req.AuthenticationMethodID)
	if !ok {
		return Fail(req, domain.CodeScaMethodUnknown, "authentication method is not offered")
	}
	if method.Decoupled {
		return proceedDecoupled(ctx, s.Dependencies, req, auth, method)
	}
	return requestCode(ctx, s.Dependencies, req, method)
}

// scaMethodSelectedStage verifies the authentication code and executes the action.
type scaMethodSelectedStage struct {
	Dependencies
}

func (s *scaMethodSelectedStage) Status() domain.ScaStatus { return domain.ScaStatusScaMethodSelected }

func (s *scaMethodSelectedStage) Process(ctx context.Context, req Request, auth *domain.Authorisation) Response {
	if req.Psu.IsEmpty() {
		req.Psu = auth.Psu
	}
	if req.ScaAuthenticationData == "" {
		return FailAt(req, domain.CodeFormatError, "scaAuthenticationData", "authentication data is missing")
	}
	result := s.Spi.VerifyScaAuthorisationAndExecute(ctx, req.ContextData(), auth.ID, req.ScaAuthenticationData, req.Object)
	if result.HasError() {
		return Failed(req, spi.MapError(result, req.Service()))
	}
	if err := s.Business.Apply(ctx, req.Object, auth.ID, result.Payload.TransactionStatus, result.Payload.ConsentStatus); err != nil {
		s.Logger.Error("applying business status", "authorisation_id", auth.ID, "error", err)
		return Fail(req, domain.CodeInternalServerError, "")
	}
	resp := NewResponse(req, domain.ScaStatusFinalised)
	resp.PsuMessage = result.Payload.PsuMessage
	return resp
}

// rejectingStage refuses updates in statuses the TPP cannot advance.
type rejectingStage struct {
	status domain.ScaStatus
	text   string
}

func (s rejectingStage) Status() domain.ScaStatus { return s.status }

func (s rejectingStage) Process(_ context.Context, req Request, _ *domain.Authorisation) Response {
	return Fail(req, domain.CodeStatusInvalid, s.text)
}

func requestCode(ctx context.Context, d Dependencies, req Request, method domain.AuthenticationObject) Response {
	result := d.Spi.RequestAuthorisationCode(ctx, req.ContextData(), method.ID, req.Object)
	if result.HasError() {
		return Failed(req, spi.MapError(result, req.Service()))
	}
	chosen := result.Payload.Method
	if chosen.ID == "" {
		chosen = method
	}
	resp := NewResponse(req, domain.ScaStatusScaMethodSelected)
	resp.ChosenMethod = &chosen
	resp.Challenge = result.Payload.Challenge
	resp.ScaAuthenticationData = result.Payload.ScaAuthenticationData
	return resp
}

// proceedDecoupled switches the authorisation to the decoupled approach
// before the decoupled channel is started.
func proceedDecoupled(ctx context.Context, d Dependencies, req Request, auth *domain.Authorisation, method domain.AuthenticationObject) Response {
	if err := d.Repo.UpdateScaApproach(ctx, auth.ID, domain.ScaApproachDecoupled); err != nil {
		d.Logger.Error("switching to decoupled approach", "authorisation_id", auth.ID, "error", err)
		return Fail(req, domain.CodeInternalServerError, "")
	}
	resp := d.Decoupled.Proceed(ctx, req, auth, method.ID)
	resp.ScaApproach = domain.ScaApproachDecoupled
	if !resp.HasError() {
		resp.ChosenMethod = &method
	}
	return resp
}
