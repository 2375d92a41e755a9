// Package xs2a implements the authorisation endpoints of the XS2A interface
// on top of the SCA state machine.
package xs2a

import (
	"context"

	"xs2a/internal/authorisation"
	"xs2a/internal/domain"
)

// StartRequest is the body of a start-authorisation call.
type StartRequest struct {
	Psu       domain.PsuIdData
	Password  string
	RequestID string
}

// StartResponse describes a newly created authorisation.
type StartResponse struct {
	AuthorisationID  string
	BusinessObjectID string
	Type             domain.AuthorisationType
	ScaStatus        domain.ScaStatus
	ScaApproach      domain.ScaApproach
	ScaRedirect      string
	ScaOAuth         string
	AvailableMethods []domain.AuthenticationObject
	ChosenMethod     *domain.AuthenticationObject
	Challenge        *domain.ChallengeData
	PsuMessage       string

	created domain.ScaStatus
}

// ApproachService runs authorisations of one SCA approach.
type ApproachService interface {
	ScaApproach() domain.ScaApproach
	StartAuthorisation(ctx context.Context, obj *domain.BusinessObject, parentType domain.AuthorisationType, in StartRequest) (StartResponse, *domain.ErrorHolder)
	UpdateAuthorisation(ctx context.Context, req authorisation.Request, auth *domain.Authorisation) authorisation.Response
}

// initialStatus is PSUIDENTIFIED when the PSU is already known.
func initialStatus(psu domain.PsuIdData) domain.ScaStatus {
	if psu.IsEmpty() {
		return domain.ScaStatusReceived
	}
	return domain.ScaStatusPsuIdentified
}
