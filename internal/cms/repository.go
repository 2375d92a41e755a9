// Package cms is the gateway to the consent management system that persists
// authorisations and the consents, payments and signing baskets they belong to.
package cms

import (
	"context"
	"time"

	"xs2a/internal/domain"
)

// CreateAuthorisationRequest is the initial state of a new authorisation.
type CreateAuthorisationRequest struct {
	Psu         domain.PsuIdData
	ScaApproach domain.ScaApproach
	ScaStatus   domain.ScaStatus
	ExpiresAt   time.Time
}

// CreateAuthorisationResponse identifies the stored authorisation.
type CreateAuthorisationResponse struct {
	AuthorisationID string
	ScaStatus       domain.ScaStatus
	ScaApproach     domain.ScaApproach
}

// UpdateAuthorisationRequest carries the result of one SCA step. Empty fields
// leave the stored value untouched.
type UpdateAuthorisationRequest struct {
	ScaStatus             domain.ScaStatus
	Psu                   domain.PsuIdData
	ChosenMethodID        string
	ScaAuthenticationData string
}

// Repository is the contract of the consent management system used by the
// SCA flows. Reads of an authorisation reflect the caller's latest write.
type Repository interface {
	CreateAuthorisation(ctx context.Context, parentID string, parentType domain.AuthorisationType, req CreateAuthorisationRequest) (CreateAuthorisationResponse, error)
	GetAuthorisation(ctx context.Context, authorisationID string) (*domain.Authorisation, error)
	GetAuthorisationIDs(ctx context.Context, parentID string, parentType domain.AuthorisationType) ([]string, error)
	UpdateAuthorisation(ctx context.Context, authorisationID string, req UpdateAuthorisationRequest) (*domain.Authorisation, error)
	UpdateAuthorisationStatus(ctx context.Context, authorisationID string, status domain.ScaStatus) error
	UpdateScaApproach(ctx context.Context, authorisationID string, approach domain.ScaApproach) error
	GetAuthorisationScaApproach(ctx context.Context, authorisationID string) (domain.ScaApproach, error)
	SaveAuthenticationMethods(ctx context.Context, authorisationID string, methods []domain.AuthenticationObject) (bool, error)

	GetBusinessObject(ctx context.Context, id string, parentType domain.AuthorisationType) (*domain.BusinessObject, error)
	UpdateTransactionStatus(ctx context.Context, paymentID string, status domain.TransactionStatus) error
	UpdateConsentStatus(ctx context.Context, consentID string, status domain.ConsentStatus) error
	FindAndTerminateOldConsents(ctx context.Context, newConsentID string) ([]string, error)
}

// obsoleteBy reports whether old is superseded once next becomes valid: a
// recurring AIS consent of the same TPP for an overlapping PSU that is still
// usable.
func obsoleteBy(old, next *domain.BusinessObject) bool {
	if old.ID == next.ID || old.Type != domain.AuthorisationTypeAIS {
		return false
	}
	if !old.RecurringIndicator || old.TppID != next.TppID {
		return false
	}
	switch old.ConsentStatus {
	case domain.ConsentStatusReceived, domain.ConsentStatusValid, domain.ConsentStatusPartiallyAuthorised:
	default:
		return false
	}
	return old.SharesPsu(next)
}

// supersedes reports whether a consent may terminate older ones at all.
func supersedes(next *domain.BusinessObject) bool {
	return next.Type == domain.AuthorisationTypeAIS && next.RecurringIndicator && len(next.Psus) > 0
}
