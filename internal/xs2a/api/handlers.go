// Package api exposes the XS2A authorisation endpoints and the PSU-API
// callback used by the ASPSP's own SCA pages.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"xs2a/internal/common/api"
	"xs2a/internal/common/middleware"
	"xs2a/internal/domain"
	"xs2a/internal/xs2a"
)

// Handler handles authorisation HTTP requests
type Handler struct {
	service *xs2a.Service
	logger  *slog.Logger
}

// NewHandler creates a new authorisation handler
func NewHandler(service *xs2a.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// resource describes one family of authorisation endpoints.
type resource struct {
	typ   domain.AuthorisationType
	param string
}

// Routes returns the XS2A routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Payment initiation and cancellation
	r.Route("/v1/{payment-service}/{payment-product}/{paymentId}/authorisations", h.authorisations(resource{domain.AuthorisationTypePISCreation, "paymentId"}))
	r.Route("/v1/{payment-service}/{payment-product}/{paymentId}/cancellation-authorisations", h.authorisations(resource{domain.AuthorisationTypePISCancellation, "paymentId"}))

	// Consents and baskets
	r.Route("/v1/consents/{consentId}/authorisations", h.authorisations(resource{domain.AuthorisationTypeAIS, "consentId"}))
	r.Route("/v2/consents/confirmation-of-funds/{consentId}/authorisations", h.authorisations(resource{domain.AuthorisationTypePIIS, "consentId"}))
	r.Route("/v1/signing-baskets/{basketId}/authorisations", h.authorisations(resource{domain.AuthorisationTypeSigningBasket, "basketId"}))

	// ASPSP-facing
	r.Put("/psu-api/v1/authorisations/{authorisationId}/redirect-outcome", h.RecordRedirectOutcome)
	r.Post("/psu-api/v1/implicit-authorisations", h.StartImplicitAuthorisation)

	return r
}

func (h *Handler) authorisations(res resource) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", h.StartAuthorisation(res))
		r.Get("/", h.ListAuthorisations(res))
		r.Get("/{authorisationId}", h.GetScaStatus(res))
		r.Put("/{authorisationId}", h.UpdatePsuData(res))
	}
}

// StartAuthorisation handles POST .../authorisations
func (h *Handler) StartAuthorisation(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartAuthorisationRequest
		if err := api.DecodeAndValidate(r, &req); err != nil {
			api.ValidationError(w, res.typ.ServiceType(), err)
			return
		}
		in := xs2a.StartRequest{
			Psu:       middleware.GetPsu(r.Context()),
			RequestID: middleware.GetRequestID(r.Context()),
		}
		if req.PsuData != nil {
			in.Password = req.PsuData.Password
		}

		resp, e := h.service.StartAuthorisation(r.Context(), res.typ, chi.URLParam(r, res.param), in)
		if e != nil {
			api.WriteError(w, e)
			return
		}
		api.WriteJSON(w, http.StatusCreated, fromStart(resp, selfLink(r, resp.AuthorisationID)))
	}
}

// ListAuthorisations handles GET .../authorisations
func (h *Handler) ListAuthorisations(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, e := h.service.GetAuthorisationIDs(r.Context(), res.typ, chi.URLParam(r, res.param), middleware.GetPsu(r.Context()))
		if e != nil {
			api.WriteError(w, e)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		api.WriteJSON(w, http.StatusOK, AuthorisationsResponse{AuthorisationIDs: ids})
	}
}

// GetScaStatus handles GET .../authorisations/{authorisationId}
func (h *Handler) GetScaStatus(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, e := h.service.GetScaStatus(r.Context(), res.typ, chi.URLParam(r, res.param), chi.URLParam(r, "authorisationId"))
		if e != nil {
			api.WriteError(w, e)
			return
		}
		api.WriteJSON(w, http.StatusOK, ScaStatusResponse{ScaStatus: status})
	}
}

// UpdatePsuData handles PUT .../authorisations/{authorisationId}
func (h *Handler) UpdatePsuData(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdatePsuDataRequest
		if err := api.DecodeAndValidate(r, &req); err != nil {
			api.ValidationError(w, res.typ.ServiceType(), err)
			return
		}

		resp := h.service.UpdateAuthorisation(r.Context(), res.typ, chi.URLParam(r, res.param), chi.URLParam(r, "authorisationId"), xs2a.UpdateRequest{
			Psu:                    middleware.GetPsu(r.Context()),
			Password:               req.password(),
			AuthenticationMethodID: req.AuthenticationMethodID,
			ScaAuthenticationData:  req.ScaAuthenticationData,
			ConfirmationCode:       req.ConfirmationCode,
			RequestID:              middleware.GetRequestID(r.Context()),
		})
		if resp.HasError() {
			api.WriteError(w, resp.Error)
			return
		}
		api.WriteJSON(w, http.StatusOK, fromUpdate(resp, r.URL.Path))
	}
}

// RecordRedirectOutcome handles PUT /psu-api/v1/authorisations/{authorisationId}/redirect-outcome
func (h *Handler) RecordRedirectOutcome(w http.ResponseWriter, r *http.Request) {
	var req RedirectOutcomeRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, domain.ServicePIS, err)
		return
	}

	status, e := h.service.RecordRedirectOutcome(r.Context(), chi.URLParam(r, "authorisationId"), xs2a.RedirectOutcome{
		Succeeded:         req.Succeeded,
		ConfirmationCode:  req.ConfirmationCode,
		TransactionStatus: domain.TransactionStatus(req.TransactionStatus),
		ConsentStatus:     domain.ConsentStatus(req.ConsentStatus),
	})
	if e != nil {
		api.WriteError(w, e)
		return
	}
	api.WriteJSON(w, http.StatusOK, ScaStatusResponse{ScaStatus: status})
}

// StartImplicitAuthorisation handles POST /psu-api/v1/implicit-authorisations.
// It answers 204 when the TPP has to start the authorisation explicitly.
func (h *Handler) StartImplicitAuthorisation(w http.ResponseWriter, r *http.Request) {
	var req ImplicitAuthorisationRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, domain.ServicePIS, err)
		return
	}
	typ := domain.AuthorisationType(req.ParentType)

	resp, started, e := h.service.StartImplicitAuthorisation(r.Context(), typ, req.ParentID, xs2a.StartRequest{
		Psu:       middleware.GetPsu(r.Context()),
		RequestID: middleware.GetRequestID(r.Context()),
	})
	if e != nil {
		api.WriteError(w, e)
		return
	}
	if !started {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	api.WriteJSON(w, http.StatusCreated, fromStart(resp, ""))
}

func selfLink(r *http.Request, authorisationID string) string {
	return strings.TrimSuffix(r.URL.Path, "/") + "/" + authorisationID
}
