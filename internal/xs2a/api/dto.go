package api

import (
	"xs2a/internal/authorisation"
	"xs2a/internal/domain"
	"xs2a/internal/xs2a"
)

// PsuData carries the PSU password. Identity comes from the PSU-* headers.
type PsuData struct {
	Password string `json:"password,omitempty" validate:"max=512"`
}

// StartAuthorisationRequest is the optional body of POST .../authorisations.
type StartAuthorisationRequest struct {
	PsuData *PsuData `json:"psuData,omitempty"`
}

// UpdatePsuDataRequest is the body of PUT .../authorisations/{authorisationId}.
type UpdatePsuDataRequest struct {
	PsuData                *PsuData `json:"psuData,omitempty"`
	AuthenticationMethodID string   `json:"authenticationMethodId,omitempty" validate:"max=35"`
	ScaAuthenticationData  string   `json:"scaAuthenticationData,omitempty" validate:"max=512"`
	ConfirmationCode       string   `json:"confirmationCode,omitempty" validate:"max=512"`
}

func (r UpdatePsuDataRequest) password() string {
	if r.PsuData == nil {
		return ""
	}
	return r.PsuData.Password
}

// RedirectOutcomeRequest is sent by the ASPSP's SCA pages.
type RedirectOutcomeRequest struct {
	Succeeded         bool   `json:"succeeded"`
	ConfirmationCode  string `json:"confirmationCode,omitempty" validate:"max=512"`
	TransactionStatus string `json:"transactionStatus,omitempty" validate:"omitempty,oneof=RCVD PDNG PATC ACTC ACCP ACSP ACSC RJCT CANC"`
	ConsentStatus     string `json:"consentStatus,omitempty" validate:"omitempty,oneof=received valid rejected partiallyAuthorised revokedByPsu expired terminatedByTpp terminatedByAspsp"`
}

// ImplicitAuthorisationRequest asks for an authorisation right after initiation.
type ImplicitAuthorisationRequest struct {
	ParentID   string `json:"parentId" validate:"required"`
	ParentType string `json:"parentType" validate:"required,oneof=AIS PIS_CREATION PIS_CANCELLATION PIIS SIGNING_BASKET"`
}

// Link is a hypermedia reference.
type Link struct {
	Href string `json:"href"`
}

// ScaMethod is an authentication method as shown to the TPP.
type ScaMethod struct {
	AuthenticationType     string `json:"authenticationType"`
	AuthenticationVersion  string `json:"authenticationVersion,omitempty"`
	AuthenticationMethodID string `json:"authenticationMethodId"`
	Name                   string `json:"name,omitempty"`
	Explanation            string `json:"explanation,omitempty"`
}

// AuthorisationResponse is returned by start and update calls.
type AuthorisationResponse struct {
	ScaStatus       domain.ScaStatus      `json:"scaStatus"`
	AuthorisationID string                `json:"authorisationId"`
	ScaMethods      []ScaMethod           `json:"scaMethods,omitempty"`
	ChosenScaMethod *ScaMethod            `json:"chosenScaMethod,omitempty"`
	ChallengeData   *domain.ChallengeData `json:"challengeData,omitempty"`
	PsuMessage      string                `json:"psuMessage,omitempty"`
	Links           map[string]Link       `json:"_links,omitempty"`
}

// ScaStatusResponse is returned by GET .../authorisations/{authorisationId}.
type ScaStatusResponse struct {
	ScaStatus domain.ScaStatus `json:"scaStatus"`
}

// AuthorisationsResponse lists the authorisation ids of a resource.
type AuthorisationsResponse struct {
	AuthorisationIDs []string `json:"authorisationIds"`
}

func toScaMethod(m domain.AuthenticationObject) ScaMethod {
	return ScaMethod{
		AuthenticationType:     m.Type,
		AuthenticationVersion:  m.Version,
		AuthenticationMethodID: m.ID,
		Name:                   m.Name,
		Explanation:            m.ExplanationText,
	}
}

func toScaMethods(methods []domain.AuthenticationObject) []ScaMethod {
	if len(methods) == 0 {
		return nil
	}
	out := make([]ScaMethod, len(methods))
	for i, m := range methods {
		out[i] = toScaMethod(m)
	}
	return out
}

func fromStart(resp xs2a.StartResponse, self string) AuthorisationResponse {
	out := AuthorisationResponse{
		ScaStatus:       resp.ScaStatus,
		AuthorisationID: resp.AuthorisationID,
		ScaMethods:      toScaMethods(resp.AvailableMethods),
		ChallengeData:   resp.Challenge,
		PsuMessage:      resp.PsuMessage,
		Links:           links(self, resp.ScaStatus, resp.ScaApproach),
	}
	if resp.ChosenMethod != nil {
		m := toScaMethod(*resp.ChosenMethod)
		out.ChosenScaMethod = &m
	}
	if resp.ScaRedirect != "" {
		out.Links["scaRedirect"] = Link{Href: resp.ScaRedirect}
	}
	if resp.ScaOAuth != "" {
		out.Links["scaOAuth"] = Link{Href: resp.ScaOAuth}
	}
	return out
}

func fromUpdate(resp authorisation.Response, self string) AuthorisationResponse {
	out := AuthorisationResponse{
		ScaStatus:       resp.ScaStatus,
		AuthorisationID: resp.AuthorisationID,
		ScaMethods:      toScaMethods(resp.AvailableMethods),
		ChallengeData:   resp.Challenge,
		PsuMessage:      resp.PsuMessage,
		Links:           links(self, resp.ScaStatus, resp.ScaApproach),
	}
	if resp.ChosenMethod != nil {
		m := toScaMethod(*resp.ChosenMethod)
		out.ChosenScaMethod = &m
	}
	return out
}

// links names the next step the TPP can take on the authorisation resource.
func links(self string, status domain.ScaStatus, approach domain.ScaApproach) map[string]Link {
	out := map[string]Link{}
	if self == "" {
		return out
	}
	out["scaStatus"] = Link{Href: self}
	if approach.IsRedirectLike() || approach == domain.ScaApproachDecoupled {
		if status == domain.ScaStatusUnconfirmed {
			out["confirmation"] = Link{Href: self}
		}
		return out
	}
	switch status {
	case domain.ScaStatusReceived:
		out["updatePsuIdentification"] = Link{Href: self}
	case domain.ScaStatusPsuIdentified:
		out["updatePsuAuthentication"] = Link{Href: self}
	case domain.ScaStatusPsuAuthenticated:
		out["selectAuthenticationMethod"] = Link{Href: self}
	case domain.ScaStatusScaMethodSelected:
		out["authoriseTransaction"] = Link{Href: self}
	case domain.ScaStatusUnconfirmed:
		out["confirmation"] = Link{Href: self}
	}
	return out
}
