package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xs2a/internal/domain"
)

func TestWriteErrorUsesHolderStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, domain.NewError(domain.ServicePIS, domain.CodeServiceInvalid, "not for redirect"))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.TppMessages, 1)
	assert.Equal(t, domain.CategoryError, body.TppMessages[0].Category)
	assert.Equal(t, domain.CodeServiceInvalid, body.TppMessages[0].Code)
	assert.Equal(t, "not for redirect", body.TppMessages[0].Text)
}

type updateBody struct {
	Code string `json:"confirmationCode" validate:"max=8"`
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		var b updateBody
		req := httptest.NewRequest(http.MethodPut, "/", http.NoBody)
		assert.NoError(t, DecodeAndValidate(req, &b))
	})

	t.Run("valid", func(t *testing.T) {
		var b updateBody
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"confirmationCode":"123"}`))
		require.NoError(t, DecodeAndValidate(req, &b))
		assert.Equal(t, "123", b.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		var b updateBody
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"confirmationCode":"123456789"}`))
		err := DecodeAndValidate(req, &b)
		require.Error(t, err)

		rec := httptest.NewRecorder()
		ValidationError(rec, domain.ServiceAIS, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"path":"Code"`)
	})

	t.Run("malformed", func(t *testing.T) {
		var b updateBody
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{`))
		assert.Error(t, DecodeAndValidate(req, &b))
	})
}

func TestServiceFromPath(t *testing.T) {
	assert.Equal(t, domain.ServicePIIS, ServiceFromPath("/v2/consents/confirmation-of-funds/c/authorisations"))
	assert.Equal(t, domain.ServiceAIS, ServiceFromPath("/v1/consents/c/authorisations"))
	assert.Equal(t, domain.ServiceSB, ServiceFromPath("/v1/signing-baskets/b/authorisations"))
	assert.Equal(t, domain.ServicePIS, ServiceFromPath("/v1/payments/sepa/p/authorisations"))
}
