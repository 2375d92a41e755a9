package domain

import (
	"errors"
	"fmt"
	"time"
)

// AuthorisationType identifies what kind of parent object an authorisation belongs to.
type AuthorisationType string

const (
	AuthorisationTypeAIS             AuthorisationType = "AIS"
	AuthorisationTypePISCreation     AuthorisationType = "PIS_CREATION"
	AuthorisationTypePISCancellation AuthorisationType = "PIS_CANCELLATION"
	AuthorisationTypePIIS            AuthorisationType = "PIIS"
	AuthorisationTypeSigningBasket   AuthorisationType = "SIGNING_BASKET"
)

// ServiceType is the XS2A service an authorisation is performed for.
type ServiceType string

const (
	ServiceAIS  ServiceType = "AIS"
	ServicePIS  ServiceType = "PIS"
	ServicePIIS ServiceType = "PIIS"
	ServiceSB   ServiceType = "SB"
)

// ServiceType maps the parent type to the service used for error classification.
func (t AuthorisationType) ServiceType() ServiceType {
	switch t {
	case AuthorisationTypeAIS:
		return ServiceAIS
	case AuthorisationTypePISCreation, AuthorisationTypePISCancellation:
		return ServicePIS
	case AuthorisationTypePIIS:
		return ServicePIIS
	case AuthorisationTypeSigningBasket:
		return ServiceSB
	}
	return ServicePIS
}

// IsConsent reports whether the parent is a consent rather than a payment.
func (t AuthorisationType) IsConsent() bool {
	return t == AuthorisationTypeAIS || t == AuthorisationTypePIIS
}

// IsValid reports whether t is a known parent type.
func (t AuthorisationType) IsValid() bool {
	switch t {
	case AuthorisationTypeAIS, AuthorisationTypePISCreation, AuthorisationTypePISCancellation,
		AuthorisationTypePIIS, AuthorisationTypeSigningBasket:
		return true
	}
	return false
}

// PsuIdData identifies the payment service user. All fields are optional.
type PsuIdData struct {
	ID              string `json:"psuId,omitempty"`
	IDType          string `json:"psuIdType,omitempty"`
	CorporateID     string `json:"psuCorporateId,omitempty"`
	CorporateIDType string `json:"psuCorporateIdType,omitempty"`
	IPAddress       string `json:"psuIpAddress,omitempty"`
}

// IsEmpty is true when neither the PSU nor the corporate id is present.
func (p PsuIdData) IsEmpty() bool {
	return p.ID == "" && p.CorporateID == ""
}

// Matches compares identity fields only. Transport attributes such as the IP address are ignored.
func (p PsuIdData) Matches(other PsuIdData) bool {
	return p.ID == other.ID &&
		p.IDType == other.IDType &&
		p.CorporateID == other.CorporateID &&
		p.CorporateIDType == other.CorporateIDType
}

// ErrPsuMismatch is returned when a different PSU tries to take over an authorisation.
var ErrPsuMismatch = errors.New("psu data does not match authorisation")

// Authorisation is a single SCA flow attached to a consent or payment.
type Authorisation struct {
	ID                    string                 `json:"authorisationId"`
	ParentID              string                 `json:"parentId"`
	Type                  AuthorisationType      `json:"authorisationType"`
	Psu                   PsuIdData              `json:"psuData"`
	ScaStatus             ScaStatus              `json:"scaStatus"`
	ScaApproach           ScaApproach            `json:"scaApproach"`
	ScaAuthenticationData string                 `json:"-"`
	ChosenScaMethod       string                 `json:"chosenScaMethod,omitempty"`
	AvailableMethods      []AuthenticationObject `json:"availableScaMethods,omitempty"`
	CreatedAt             time.Time              `json:"createdAt"`
	ExpiresAt             time.Time              `json:"expiresAt"`
}

// AssignPsu sets the PSU if the authorisation has none yet. A known PSU may be
// confirmed but never replaced by a different one.
func (a *Authorisation) AssignPsu(psu PsuIdData) error {
	if psu.IsEmpty() {
		return nil
	}
	if a.Psu.IsEmpty() {
		a.Psu = psu
		return nil
	}
	if !a.Psu.Matches(psu) {
		return fmt.Errorf("authorisation %s: %w", a.ID, ErrPsuMismatch)
	}
	return nil
}

// IsExpired reports whether the authorisation may no longer progress.
func (a *Authorisation) IsExpired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// IsFinal delegates to the current status.
func (a *Authorisation) IsFinal() bool {
	return a.ScaStatus.IsFinal()
}
