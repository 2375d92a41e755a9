// Package spi defines the contract between the SCA flows and the ASPSP backend.
package spi

import (
	"context"

	"xs2a/internal/domain"
)

// Response is the outcome of one backend call: either a payload or a list of
// error messages. Callers check HasError before reading Payload.
type Response[T any] struct {
	Payload  T
	Messages []domain.TppMessage
}

// OK wraps a successful payload.
func OK[T any](payload T) Response[T] {
	return Response[T]{Payload: payload}
}

// Fail builds an error response with the given codes.
func Fail[T any](codes ...domain.MessageErrorCode) Response[T] {
	msgs := make([]domain.TppMessage, len(codes))
	for i, c := range codes {
		msgs[i] = domain.NewTppMessage(c, "")
	}
	return Response[T]{Messages: msgs}
}

// HasError reports whether the backend rejected the call.
func (r Response[T]) HasError() bool {
	return len(r.Messages) > 0
}

// ContextData is the request context forwarded to the backend.
type ContextData struct {
	Psu        domain.PsuIdData `json:"psuData"`
	XRequestID string           `json:"xRequestId"`
	TppID      string           `json:"tppId,omitempty"`
}

// AuthorisationStatus is the backend's verdict on PSU credentials.
type AuthorisationStatus string

const (
	AuthorisationSuccess        AuthorisationStatus = "SUCCESS"
	AuthorisationFailure        AuthorisationStatus = "FAILURE"
	AuthorisationAttemptFailure AuthorisationStatus = "ATTEMPT_FAILURE"
)

// PsuAuthorisationResult is returned by AuthorisePsu.
type PsuAuthorisationResult struct {
	Status      AuthorisationStatus `json:"spiAuthorisationStatus"`
	ScaExempted bool                `json:"scaExempted"`
}

// AvailableScaMethods is returned by RequestAvailableScaMethods.
type AvailableScaMethods struct {
	ScaExempted bool                          `json:"scaExempted"`
	Methods     []domain.AuthenticationObject `json:"availableScaMethods"`
}

// AuthorisationCodeResult is returned by RequestAuthorisationCode.
type AuthorisationCodeResult struct {
	Method                domain.AuthenticationObject `json:"selectedScaMethod"`
	Challenge             *domain.ChallengeData       `json:"challengeData,omitempty"`
	ScaAuthenticationData string                      `json:"scaAuthenticationData,omitempty"`
}

// ExecutionResult carries the business status after the action was executed.
type ExecutionResult struct {
	TransactionStatus domain.TransactionStatus `json:"transactionStatus,omitempty"`
	ConsentStatus     domain.ConsentStatus     `json:"consentStatus,omitempty"`
	PsuMessage        string                   `json:"psuMessage,omitempty"`
}

// DecoupledScaResult is returned by StartScaDecoupled.
type DecoupledScaResult struct {
	ScaStatus  domain.ScaStatus `json:"scaStatus,omitempty"`
	PsuMessage string           `json:"psuMessage,omitempty"`
}

// ConfirmationCodeResult is the backend's verdict on a confirmation code.
type ConfirmationCodeResult struct {
	ScaStatus         domain.ScaStatus         `json:"scaStatus"`
	TransactionStatus domain.TransactionStatus `json:"transactionStatus,omitempty"`
	ConsentStatus     domain.ConsentStatus     `json:"consentStatus,omitempty"`
}

// CheckConfirmationCodeRequest is sent when the backend validates the code itself.
type CheckConfirmationCodeRequest struct {
	AuthorisationID  string `json:"authorisationId"`
	ConfirmationCode string `json:"confirmationCode"`
}

// AuthorisationSpi is implemented by ASPSP connectors. Every call is
// synchronous and reports failure through the Response, not the Go error
// channel.
type AuthorisationSpi interface {
	AuthorisePsu(ctx context.Context, cd ContextData, psu domain.PsuIdData, password string, obj *domain.BusinessObject) Response[PsuAuthorisationResult]
	RequestAvailableScaMethods(ctx context.Context, cd ContextData, obj *domain.BusinessObject) Response[AvailableScaMethods]
	RequestAuthorisationCode(ctx context.Context, cd ContextData, methodID string, obj *domain.BusinessObject) Response[AuthorisationCodeResult]
	StartScaDecoupled(ctx context.Context, cd ContextData, authorisationID, methodID string, obj *domain.BusinessObject) Response[DecoupledScaResult]
	VerifyScaAuthorisationAndExecute(ctx context.Context, cd ContextData, authorisationID, scaAuthenticationData string, obj *domain.BusinessObject) Response[ExecutionResult]
	ExecuteWithoutSca(ctx context.Context, cd ContextData, obj *domain.BusinessObject) Response[ExecutionResult]
	CheckConfirmationCode(ctx context.Context, cd ContextData, req CheckConfirmationCodeRequest, obj *domain.BusinessObject) Response[ConfirmationCodeResult]
	NotifyConfirmationCodeValidation(ctx context.Context, cd ContextData, valid bool, obj *domain.BusinessObject) Response[ConfirmationCodeResult]
}
