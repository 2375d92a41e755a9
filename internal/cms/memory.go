package cms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"xs2a/internal/common/database"
	"xs2a/internal/domain"
)

// MemoryStore is an in-process Repository. It backs local runs and tests.
type MemoryStore struct {
	mu             sync.Mutex
	authorisations map[string]*domain.Authorisation
	objects        map[string]*domain.BusinessObject
	history        map[string][]domain.ScaStatus
	now            func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		authorisations: make(map[string]*domain.Authorisation),
		objects:        make(map[string]*domain.BusinessObject),
		history:        make(map[string][]domain.ScaStatus),
		now:            time.Now,
	}
}

var _ Repository = (*MemoryStore)(nil)

// SaveBusinessObject stores or replaces a consent, payment or basket.
func (s *MemoryStore) SaveBusinessObject(obj domain.BusinessObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID] = cloneObject(&obj)
}

// StatusHistory returns every status written for the authorisation, in order.
func (s *MemoryStore) StatusHistory(authorisationID string) []domain.ScaStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ScaStatus(nil), s.history[authorisationID]...)
}

func (s *MemoryStore) CreateAuthorisation(_ context.Context, parentID string, parentType domain.AuthorisationType, req CreateAuthorisationRequest) (CreateAuthorisationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[parentID]; !ok {
		return CreateAuthorisationResponse{}, fmt.Errorf("parent %s: %w", parentID, database.ErrNotFound)
	}
	status := req.ScaStatus
	if status == "" {
		status = domain.ScaStatusReceived
	}
	a := &domain.Authorisation{
		ID:          ulid.Make().String(),
		ParentID:    parentID,
		Type:        parentType,
		Psu:         req.Psu,
		ScaStatus:   status,
		ScaApproach: req.ScaApproach,
		CreatedAt:   s.now().UTC(),
		ExpiresAt:   req.ExpiresAt,
	}
	s.authorisations[a.ID] = a
	s.history[a.ID] = append(s.history[a.ID], status)

	return CreateAuthorisationResponse{
		AuthorisationID: a.ID,
		ScaStatus:       a.ScaStatus,
		ScaApproach:     a.ScaApproach,
	}, nil
}

func (s *MemoryStore) GetAuthorisation(_ context.Context, authorisationID string) (*domain.Authorisation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorisations[authorisationID]
	if !ok {
		return nil, fmt.Errorf("authorisation %s: %w", authorisationID, database.ErrNotFound)
	}
	return cloneAuthorisation(a), nil
}

func (s *MemoryStore) GetAuthorisationIDs(_ context.Context, parentID string, parentType domain.AuthorisationType) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[parentID]; !ok {
		return nil, fmt.Errorf("parent %s: %w", parentID, database.ErrNotFound)
	}
	var found []*domain.Authorisation
	for _, a := range s.authorisations {
		if a.ParentID == parentID && a.Type == parentType {
			found = append(found, a)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })

	ids := make([]string, len(found))
	for i, a := range found {
		ids[i] = a.ID
	}
	return ids, nil
}

func (s *MemoryStore) UpdateAuthorisation(_ context.Context, authorisationID string, req UpdateAuthorisationRequest) (*domain.Authorisation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorisations[authorisationID]
	if !ok {
		return nil, fmt.Errorf("authorisation %s: %w", authorisationID, database.ErrNotFound)
	}
	if err := a.AssignPsu(req.Psu); err != nil {
		return nil, err
	}
	if req.ChosenMethodID != "" {
		a.ChosenScaMethod = req.ChosenMethodID
	}
	if req.ScaAuthenticationData != "" {
		a.ScaAuthenticationData = req.ScaAuthenticationData
	}
	if req.ScaStatus != "" {
		a.ScaStatus = req.ScaStatus
		s.history[a.ID] = append(s.history[a.ID], req.ScaStatus)
	}
	return cloneAuthorisation(a), nil
}

func (s *MemoryStore) UpdateAuthorisationStatus(_ context.Context, authorisationID string, status domain.ScaStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorisations[authorisationID]
	if !ok {
		return fmt.Errorf("authorisation %s: %w", authorisationID, database.ErrNotFound)
	}
	a.ScaStatus = status
	s.history[a.ID] = append(s.history[a.ID], status)
	return nil
}

func (s *MemoryStore) UpdateScaApproach(_ context.Context, authorisationID string, approach domain.ScaApproach) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorisations[authorisationID]
	if !ok {
		return fmt.Errorf("authorisation %s: %w", authorisationID, database.ErrNotFound)
	}
	a.ScaApproach = approach
	return nil
}

func (s *MemoryStore) GetAuthorisationScaApproach(_ context.Context, authorisationID string) (domain.ScaApproach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorisations[authorisationID]
	if !ok {
		return "", fmt.Errorf("authorisation %s: %w", authorisationID, database.ErrNotFound)
	}
	return a.ScaApproach, nil
}

func (s *MemoryStore) SaveAuthenticationMethods(_ context.Context, authorisationID string, methods []domain.AuthenticationObject) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorisations[authorisationID]
	if !ok {
		return false, fmt.Errorf("authorisation %s: %w", authorisationID, database.ErrNotFound)
	}
	a.AvailableMethods = append([]domain.AuthenticationObject(nil), methods...)
	return true, nil
}

func (s *MemoryStore) GetBusinessObject(_ context.Context, id string, parentType domain.AuthorisationType) (*domain.BusinessObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok || !sameKind(obj.Type, parentType) {
		return nil, fmt.Errorf("%s %s: %w", parentType, id, database.ErrNotFound)
	}
	return cloneObject(obj), nil
}

func (s *MemoryStore) UpdateTransactionStatus(_ context.Context, paymentID string, status domain.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[paymentID]
	if !ok {
		return fmt.Errorf("payment %s: %w", paymentID, database.ErrNotFound)
	}
	obj.TransactionStatus = status
	return nil
}

func (s *MemoryStore) UpdateConsentStatus(_ context.Context, consentID string, status domain.ConsentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[consentID]
	if !ok {
		return fmt.Errorf("consent %s: %w", consentID, database.ErrNotFound)
	}
	obj.ConsentStatus = status
	return nil
}

func (s *MemoryStore) FindAndTerminateOldConsents(_ context.Context, newConsentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.objects[newConsentID]
	if !ok {
		return nil, fmt.Errorf("consent %s: %w", newConsentID, database.ErrNotFound)
	}
	if !supersedes(next) {
		return nil, nil
	}
	var terminated []string
	for _, old := range s.objects {
		if obsoleteBy(old, next) {
			old.ConsentStatus = domain.ConsentStatusTerminatedByTpp
			terminated = append(terminated, old.ID)
		}
	}
	sort.Strings(terminated)
	return terminated, nil
}

// sameKind treats payment initiation and cancellation as the same payment.
func sameKind(stored, requested domain.AuthorisationType) bool {
	if stored == requested {
		return true
	}
	isPayment := func(t domain.AuthorisationType) bool {
		return t == domain.AuthorisationTypePISCreation || t == domain.AuthorisationTypePISCancellation
	}
	return isPayment(stored) && isPayment(requested)
}

func cloneAuthorisation(a *domain.Authorisation) *domain.Authorisation {
	c := *a
	c.AvailableMethods = append([]domain.AuthenticationObject(nil), a.AvailableMethods...)
	return &c
}

func cloneObject(o *domain.BusinessObject) *domain.BusinessObject {
	c := *o
	c.Psus = append([]domain.PsuIdData(nil), o.Psus...)
	c.AspspConsentData = append([]byte(nil), o.AspspConsentData...)
	if o.InstructedAmount != nil {
		amount := *o.InstructedAmount
		c.InstructedAmount = &amount
	}
	return &c
}
