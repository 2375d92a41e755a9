package authorisation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"xs2a/internal/cms"
	"xs2a/internal/common/metrics"
	"xs2a/internal/domain"
	"xs2a/internal/spi/spitest"
)

var testPsu = domain.PsuIdData{ID: "PSU-1", IDType: "login"}

type stubDecoupled struct {
	calls    int
	methodID string
	status   domain.ScaStatus
}

func (s *stubDecoupled) Proceed(_ context.Context, req Request, _ *domain.Authorisation, methodID string) Response {
	s.calls++
	s.methodID = methodID
	status := s.status
	if status == "" {
		status = domain.ScaStatusStarted
	}
	return NewResponse(req, status)
}

type harness struct {
	store     *cms.MemoryStore
	spi       *spitest.Fake
	decoupled *stubDecoupled
	metrics   *metrics.Metrics
	chain     *ChainService
	object    domain.BusinessObject
}

func newHarness(t *testing.T, obj domain.BusinessObject) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		store:     cms.NewMemoryStore(),
		spi:       spitest.New(),
		decoupled: &stubDecoupled{},
		metrics:   metrics.New(),
		object:    obj,
	}
	h.store.SaveBusinessObject(obj)

	deps := Dependencies{
		Repo:      h.store,
		Spi:       h.spi,
		Decoupled: h.decoupled,
		Business:  NewBusinessStatusApplier(h.store, nil, logger),
		Logger:    logger,
	}
	chain, err := NewChainService(h.store, h.metrics, nil, logger, Processors(deps)...)
	require.NoError(t, err)
	h.chain = chain
	return h
}

func payment() domain.BusinessObject {
	return domain.BusinessObject{
		ID:                "pay-1",
		Type:              domain.AuthorisationTypePISCreation,
		TppID:             "tpp-1",
		Psus:              []domain.PsuIdData{testPsu},
		TransactionStatus: domain.TransactionStatusRCVD,
	}
}

func consent(id string) domain.BusinessObject {
	return domain.BusinessObject{
		ID:                 id,
		Type:               domain.AuthorisationTypeAIS,
		TppID:              "tpp-1",
		Psus:               []domain.PsuIdData{testPsu},
		RecurringIndicator: true,
		ConsentStatus:      domain.ConsentStatusReceived,
	}
}

// create stores an authorisation for the harness object in the given status.
func (h *harness) create(t *testing.T, status domain.ScaStatus, approach domain.ScaApproach) string {
	t.Helper()
	resp, err := h.store.CreateAuthorisation(context.Background(), h.object.ID, h.object.Type, cms.CreateAuthorisationRequest{
		ScaStatus:   status,
		ScaApproach: approach,
	})
	require.NoError(t, err)
	return resp.AuthorisationID
}

// apply reads the current snapshot and runs one step, like the facade does.
func (h *harness) apply(t *testing.T, id string, req Request) Response {
	t.Helper()
	ctx := context.Background()
	auth, err := h.store.GetAuthorisation(ctx, id)
	require.NoError(t, err)
	obj, err := h.store.GetBusinessObject(ctx, auth.ParentID, auth.Type)
	require.NoError(t, err)
	req.AuthorisationID = id
	req.Object = obj
	if req.Psu.IsEmpty() {
		req.Psu = testPsu
	}
	return h.chain.Apply(ctx, req, auth)
}

func (h *harness) status(t *testing.T, id string) domain.ScaStatus {
	t.Helper()
	auth, err := h.store.GetAuthorisation(context.Background(), id)
	require.NoError(t, err)
	return auth.ScaStatus
}
