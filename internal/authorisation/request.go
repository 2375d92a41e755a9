// Package authorisation drives an authorisation through the SCA lifecycle.
package authorisation

import (
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// Request is one authorisation update as seen by the stage processors.
type Request struct {
	AuthorisationID        string
	BusinessObjectID       string
	Type                   domain.AuthorisationType
	Psu                    domain.PsuIdData
	Password               string
	AuthenticationMethodID string
	ScaAuthenticationData  string
	ConfirmationCode       string
	// UpdatePsuIdentification is set when the call only identifies the PSU.
	UpdatePsuIdentification bool
	RequestID               string

	// Object is the consent, payment or basket the authorisation belongs to.
	Object *domain.BusinessObject
}

// ContextData builds the backend context for the request.
func (r Request) ContextData() spi.ContextData {
	cd := spi.ContextData{Psu: r.Psu, XRequestID: r.RequestID}
	if r.Object != nil {
		cd.TppID = r.Object.TppID
	}
	return cd
}

// Service is the error classifier of the request.
func (r Request) Service() domain.ServiceType {
	return r.Type.ServiceType()
}

// Response is the outcome of one stage. When Error is set ScaStatus is the
// status reported to the TPP, which is not necessarily persisted.
type Response struct {
	ScaStatus        domain.ScaStatus
	AuthorisationID  string
	BusinessObjectID string
	Type             domain.AuthorisationType
	ScaApproach      domain.ScaApproach
	Psu              domain.PsuIdData
	AvailableMethods []domain.AuthenticationObject
	ChosenMethod     *domain.AuthenticationObject
	Challenge        *domain.ChallengeData
	PsuMessage       string
	// ScaAuthenticationData is bank data to store on the authorisation.
	ScaAuthenticationData string
	Error                 *domain.ErrorHolder
	// Persisted is set when the status was already stored, such as FAILED
	// after a credential refusal.
	Persisted bool
}

// HasError reports whether the stage failed.
func (r Response) HasError() bool {
	return r.Error != nil
}

// NewResponse starts a response for the request with the given status.
func NewResponse(req Request, status domain.ScaStatus) Response {
	return Response{
		ScaStatus:        status,
		AuthorisationID:  req.AuthorisationID,
		BusinessObjectID: req.BusinessObjectID,
		Type:             req.Type,
		Psu:              req.Psu,
	}
}

// Failed builds a FAILED response carrying e.
func Failed(req Request, e *domain.ErrorHolder) Response {
	resp := NewResponse(req, domain.ScaStatusFailed)
	resp.Error = e
	return resp
}

// Fail builds a FAILED response with a single message.
func Fail(req Request, code domain.MessageErrorCode, text string) Response {
	return Failed(req, domain.NewError(req.Service(), code, text))
}

// FailAt builds a FAILED format error pointing at a request field.
func FailAt(req Request, code domain.MessageErrorCode, path, text string) Response {
	msg := domain.TppMessage{Code: code, Text: text, Path: path}
	return Failed(req, domain.NewErrorHolder(domain.ErrorType{Service: req.Service(), Status: code.HTTPStatus()}, msg))
}
