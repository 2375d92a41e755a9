// Package httpconnector implements the backend contract against an ASPSP that
// exposes its SCA operations as JSON over HTTP.
package httpconnector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"xs2a/internal/common/metrics"
	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// Config holds connector configuration.
type Config struct {
	BaseURL      string        `envconfig:"SPI_BASE_URL" default:"http://localhost:8090/spi/v1"`
	Timeout      time.Duration `envconfig:"SPI_TIMEOUT" default:"30s"`
	TokenURL     string        `envconfig:"SPI_TOKEN_URL"`
	ClientID     string        `envconfig:"SPI_CLIENT_ID"`
	ClientSecret string        `envconfig:"SPI_CLIENT_SECRET"`
	Scopes       []string      `envconfig:"SPI_SCOPES"`
}

// Connector calls the ASPSP backend.
type Connector struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

var _ spi.AuthorisationSpi = (*Connector)(nil)

// New creates a connector. When a token URL is configured every call carries
// an access token obtained with the OAuth2 client credentials grant.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Connector {
	base := &http.Client{Timeout: cfg.Timeout}
	client := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
	}
	return &Connector{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		metrics:    m,
		logger:     logger,
	}
}

// request is the body of every backend call. Only the fields relevant to the
// operation are set.
type request struct {
	Context               spi.ContextData        `json:"context"`
	BusinessObject        *domain.BusinessObject `json:"businessObject"`
	Psu                   *domain.PsuIdData      `json:"psuData,omitempty"`
	Password              string                 `json:"password,omitempty"`
	AuthorisationID       string                 `json:"authorisationId,omitempty"`
	AuthenticationMethod  string                 `json:"authenticationMethodId,omitempty"`
	ScaAuthenticationData string                 `json:"scaAuthenticationData,omitempty"`
	ConfirmationCode      string                 `json:"confirmationCode,omitempty"`
	CodeValid             *bool                  `json:"confirmationCodeValid,omitempty"`
}

type envelope[T any] struct {
	Payload     T                   `json:"payload"`
	TppMessages []domain.TppMessage `json:"tppMessages,omitempty"`
}

func (c *Connector) AuthorisePsu(ctx context.Context, cd spi.ContextData, psu domain.PsuIdData, password string, obj *domain.BusinessObject) spi.Response[spi.PsuAuthorisationResult] {
	return call[spi.PsuAuthorisationResult](ctx, c, "authorise_psu", "/authorisations/psu", request{
		Context: cd, BusinessObject: obj, Psu: &psu, Password: password,
	})
}

func (c *Connector) RequestAvailableScaMethods(ctx context.Context, cd spi.ContextData, obj *domain.BusinessObject) spi.Response[spi.AvailableScaMethods] {
	return call[spi.AvailableScaMethods](ctx, c, "request_sca_methods", "/authorisations/sca-methods", request{
		Context: cd, BusinessObject: obj,
	})
}

func (c *Connector) RequestAuthorisationCode(ctx context.Context, cd spi.ContextData, methodID string, obj *domain.BusinessObject) spi.Response[spi.AuthorisationCodeResult] {
	return call[spi.AuthorisationCodeResult](ctx, c, "request_authorisation_code", "/authorisations/code", request{
		Context: cd, BusinessObject: obj, AuthenticationMethod: methodID,
	})
}

func (c *Connector) StartScaDecoupled(ctx context.Context, cd spi.ContextData, authorisationID, methodID string, obj *domain.BusinessObject) spi.Response[spi.DecoupledScaResult] {
	return call[spi.DecoupledScaResult](ctx, c, "start_sca_decoupled", "/authorisations/decoupled", request{
		Context: cd, BusinessObject: obj, AuthorisationID: authorisationID, AuthenticationMethod: methodID,
	})
}

func (c *Connector) VerifyScaAuthorisationAndExecute(ctx context.Context, cd spi.ContextData, authorisationID, scaAuthenticationData string, obj *domain.BusinessObject) spi.Response[spi.ExecutionResult] {
	return call[spi.ExecutionResult](ctx, c, "verify_and_execute", "/authorisations/verify", request{
		Context: cd, BusinessObject: obj, AuthorisationID: authorisationID, ScaAuthenticationData: scaAuthenticationData,
	})
}

func (c *Connector) ExecuteWithoutSca(ctx context.Context, cd spi.ContextData, obj *domain.BusinessObject) spi.Response[spi.ExecutionResult] {
	return call[spi.ExecutionResult](ctx, c, "execute_without_sca", "/authorisations/execute", request{
		Context: cd, BusinessObject: obj,
	})
}

func (c *Connector) CheckConfirmationCode(ctx context.Context, cd spi.ContextData, req spi.CheckConfirmationCodeRequest, obj *domain.BusinessObject) spi.Response[spi.ConfirmationCodeResult] {
	return call[spi.ConfirmationCodeResult](ctx, c, "check_confirmation_code", "/authorisations/confirmation-code/check", request{
		Context: cd, BusinessObject: obj, AuthorisationID: req.AuthorisationID, ConfirmationCode: req.ConfirmationCode,
	})
}

func (c *Connector) NotifyConfirmationCodeValidation(ctx context.Context, cd spi.ContextData, valid bool, obj *domain.BusinessObject) spi.Response[spi.ConfirmationCodeResult] {
	return call[spi.ConfirmationCodeResult](ctx, c, "notify_confirmation_code", "/authorisations/confirmation-code/notify", request{
		Context: cd, BusinessObject: obj, CodeValid: &valid,
	})
}

// call posts the request and decodes the envelope. Transport and decoding
// failures are reported as INTERNAL_SERVER_ERROR so callers see a single
// failure shape.
func call[T any](ctx context.Context, c *Connector, operation, path string, body request) spi.Response[T] {
	start := time.Now()
	resp, err := post[T](ctx, c, path, body)
	if err != nil {
		c.logger.Error("spi call failed",
			"operation", operation,
			"x_request_id", body.Context.XRequestID,
			"error", err,
		)
		resp = spi.Fail[T](domain.CodeInternalServerError)
	}
	c.metrics.SpiCall(operation, resp.HasError(), time.Since(start))
	return resp
}

func post[T any](ctx context.Context, c *Connector, path string, body request) (spi.Response[T], error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return spi.Response[T]{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return spi.Response[T]{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if body.Context.XRequestID != "" {
		httpReq.Header.Set("X-Request-ID", body.Context.XRequestID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return spi.Response[T]{}, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return spi.Response[T]{}, fmt.Errorf("read response: %w", err)
	}

	var env envelope[T]
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil {
			return spi.Response[T]{}, fmt.Errorf("unmarshal response: status=%d: %w", httpResp.StatusCode, err)
		}
	}

	// Messages reject the call even on a 2xx reply.
	if len(env.TppMessages) > 0 {
		return spi.Response[T]{Messages: env.TppMessages}, nil
	}
	if httpResp.StatusCode >= 400 {
		return spi.Response[T]{}, fmt.Errorf("spi error: status=%d body=%s", httpResp.StatusCode, string(respBody))
	}
	return spi.OK(env.Payload), nil
}
