package spi

import (
	"xs2a/internal/domain"
)

// MapError converts backend messages to a TPP-facing holder for the service.
// The first message decides the HTTP status. An error response without
// messages becomes INTERNAL_SERVER_ERROR.
func MapError[T any](resp Response[T], service domain.ServiceType) *domain.ErrorHolder {
	if len(resp.Messages) == 0 {
		return domain.NewError(service, domain.CodeInternalServerError, "")
	}
	status := resp.Messages[0].Code.HTTPStatus()
	return domain.NewErrorHolder(domain.ErrorType{Service: service, Status: status}, resp.Messages...)
}
