package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"xs2a/internal/common/database"
	"xs2a/internal/common/money"
	"xs2a/internal/domain"
)

// PostgresStore is the Repository backed by the CMS PostgreSQL schema.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store on an open pool.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Repository = (*PostgresStore)(nil)

const authorisationColumns = `
	id, parent_id, parent_type, psu, sca_status, sca_approach,
	sca_authentication_data, chosen_sca_method, available_methods,
	created_at, expires_at`

const objectColumns = `
	id, object_type, tpp_id, psus, multilevel_sca_required, consent_status,
	recurring_indicator, valid_until, transaction_status, payment_product,
	instructed_amount, debtor_iban, creditor_iban, aspsp_consent_data`

// SaveBusinessObject inserts or replaces a consent, payment or basket.
func (s *PostgresStore) SaveBusinessObject(ctx context.Context, obj domain.BusinessObject) error {
	psus, err := json.Marshal(nonNilPsus(obj.Psus))
	if err != nil {
		return fmt.Errorf("encoding psus: %w", err)
	}
	var amount *string
	if obj.InstructedAmount != nil {
		b, err := json.Marshal(obj.InstructedAmount)
		if err != nil {
			return fmt.Errorf("encoding amount: %w", err)
		}
		v := string(b)
		amount = &v
	}
	var validUntil *time.Time
	if !obj.ValidUntil.IsZero() {
		validUntil = &obj.ValidUntil
	}

	query := `
		INSERT INTO business_objects (` + objectColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO UPDATE SET
			object_type = EXCLUDED.object_type,
			tpp_id = EXCLUDED.tpp_id,
			psus = EXCLUDED.psus,
			multilevel_sca_required = EXCLUDED.multilevel_sca_required,
			consent_status = EXCLUDED.consent_status,
			recurring_indicator = EXCLUDED.recurring_indicator,
			valid_until = EXCLUDED.valid_until,
			transaction_status = EXCLUDED.transaction_status,
			payment_product = EXCLUDED.payment_product,
			instructed_amount = EXCLUDED.instructed_amount,
			debtor_iban = EXCLUDED.debtor_iban,
			creditor_iban = EXCLUDED.creditor_iban,
			aspsp_consent_data = EXCLUDED.aspsp_consent_data,
			updated_at = NOW()
	`
	_, err = s.db.Exec(ctx, query,
		obj.ID, obj.Type, obj.TppID, string(psus), obj.MultilevelScaRequired,
		obj.ConsentStatus, obj.RecurringIndicator, validUntil, obj.TransactionStatus,
		obj.PaymentProduct, amount, obj.DebtorIBAN, obj.CreditorIBAN, obj.AspspConsentData,
	)
	if err != nil {
		return fmt.Errorf("saving business object %s: %w", obj.ID, err)
	}
	return nil
}

func (s *PostgresStore) CreateAuthorisation(ctx context.Context, parentID string, parentType domain.AuthorisationType, req CreateAuthorisationRequest) (CreateAuthorisationResponse, error) {
	status := req.ScaStatus
	if status == "" {
		status = domain.ScaStatusReceived
	}
	psu, err := json.Marshal(req.Psu)
	if err != nil {
		return CreateAuthorisationResponse{}, fmt.Errorf("encoding psu: %w", err)
	}
	var expiresAt *time.Time
	if !req.ExpiresAt.IsZero() {
		expiresAt = &req.ExpiresAt
	}

	id := ulid.Make().String()
	query := `
		INSERT INTO authorisations (id, parent_id, parent_type, psu, sca_status, sca_approach, expires_at)
		SELECT $1, id, $3, $4, $5, $6, $7 FROM business_objects WHERE id = $2
	`
	tag, err := s.db.Exec(ctx, query, id, parentID, parentType, string(psu), status, req.ScaApproach, expiresAt)
	if err != nil {
		return CreateAuthorisationResponse{}, fmt.Errorf("creating authorisation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return CreateAuthorisationResponse{}, fmt.Errorf("parent %s: %w", parentID, database.ErrNotFound)
	}

	return CreateAuthorisationResponse{
		AuthorisationID: id,
		ScaStatus:       status,
		ScaApproach:     req.ScaApproach,
	}, nil
}

func (s *PostgresStore) GetAuthorisation(ctx context.Context, authorisationID string) (*domain.Authorisation, error) {
	query := `SELECT ` + authorisationColumns + ` FROM authorisations WHERE id = $1`
	a, err := scanAuthorisation(s.db.QueryRow(ctx, query, authorisationID))
	if err != nil {
		return nil, fmt.Errorf("authorisation %s: %w", authorisationID, err)
	}
	return a, nil
}

func (s *PostgresStore) GetAuthorisationIDs(ctx context.Context, parentID string, parentType domain.AuthorisationType) ([]string, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM business_objects WHERE id = $1)`, parentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking parent: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("parent %s: %w", parentID, database.ErrNotFound)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id FROM authorisations WHERE parent_id = $1 AND parent_type = $2 ORDER BY id`,
		parentID, parentType,
	)
	if err != nil {
		return nil, fmt.Errorf("listing authorisations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing authorisations: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) UpdateAuthorisation(ctx context.Context, authorisationID string, req UpdateAuthorisationRequest) (*domain.Authorisation, error) {
	var updated *domain.Authorisation
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + authorisationColumns + ` FROM authorisations WHERE id = $1 FOR UPDATE`
		a, err := scanAuthorisation(tx.QueryRow(ctx, query, authorisationID))
		if err != nil {
			return fmt.Errorf("authorisation %s: %w", authorisationID, err)
		}
		if err := a.AssignPsu(req.Psu); err != nil {
			return err
		}
		if req.ChosenMethodID != "" {
			a.ChosenScaMethod = req.ChosenMethodID
		}
		if req.ScaAuthenticationData != "" {
			a.ScaAuthenticationData = req.ScaAuthenticationData
		}
		if req.ScaStatus != "" {
			a.ScaStatus = req.ScaStatus
		}

		psu, err := json.Marshal(a.Psu)
		if err != nil {
			return fmt.Errorf("encoding psu: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE authorisations
			SET psu = $2, sca_status = $3, chosen_sca_method = $4,
				sca_authentication_data = $5, updated_at = NOW()
			WHERE id = $1
		`, a.ID, string(psu), a.ScaStatus, a.ChosenScaMethod, a.ScaAuthenticationData)
		if err != nil {
			return fmt.Errorf("updating authorisation: %w", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) UpdateAuthorisationStatus(ctx context.Context, authorisationID string, status domain.ScaStatus) error {
	return s.exec(ctx, authorisationID,
		`UPDATE authorisations SET sca_status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (s *PostgresStore) UpdateScaApproach(ctx context.Context, authorisationID string, approach domain.ScaApproach) error {
	return s.exec(ctx, authorisationID,
		`UPDATE authorisations SET sca_approach = $2, updated_at = NOW() WHERE id = $1`, approach)
}

func (s *PostgresStore) GetAuthorisationScaApproach(ctx context.Context, authorisationID string) (domain.ScaApproach, error) {
	var approach domain.ScaApproach
	err := s.db.QueryRow(ctx, `SELECT sca_approach FROM authorisations WHERE id = $1`, authorisationID).Scan(&approach)
	if err != nil {
		return "", fmt.Errorf("authorisation %s: %w", authorisationID, notFound(err))
	}
	return approach, nil
}

func (s *PostgresStore) SaveAuthenticationMethods(ctx context.Context, authorisationID string, methods []domain.AuthenticationObject) (bool, error) {
	b, err := json.Marshal(nonNilMethods(methods))
	if err != nil {
		return false, fmt.Errorf("encoding methods: %w", err)
	}
	err = s.exec(ctx, authorisationID,
		`UPDATE authorisations SET available_methods = $2, updated_at = NOW() WHERE id = $1`, string(b))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) GetBusinessObject(ctx context.Context, id string, parentType domain.AuthorisationType) (*domain.BusinessObject, error) {
	query := `SELECT ` + objectColumns + ` FROM business_objects WHERE id = $1`
	obj, err := scanObject(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", parentType, id, err)
	}
	if !sameKind(obj.Type, parentType) {
		return nil, fmt.Errorf("%s %s: %w", parentType, id, database.ErrNotFound)
	}
	return obj, nil
}

func (s *PostgresStore) UpdateTransactionStatus(ctx context.Context, paymentID string, status domain.TransactionStatus) error {
	return s.exec(ctx, paymentID,
		`UPDATE business_objects SET transaction_status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (s *PostgresStore) UpdateConsentStatus(ctx context.Context, consentID string, status domain.ConsentStatus) error {
	return s.exec(ctx, consentID,
		`UPDATE business_objects SET consent_status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (s *PostgresStore) FindAndTerminateOldConsents(ctx context.Context, newConsentID string) ([]string, error) {
	var terminated []string
	err := database.Retry(ctx, 3, func() error {
		terminated = nil
		return s.db.WithTx(ctx, func(tx pgx.Tx) error {
			next, err := scanObject(tx.QueryRow(ctx,
				`SELECT `+objectColumns+` FROM business_objects WHERE id = $1`, newConsentID))
			if err != nil {
				return fmt.Errorf("consent %s: %w", newConsentID, err)
			}
			if !supersedes(next) {
				return nil
			}

			rows, err := tx.Query(ctx, `
				SELECT `+objectColumns+` FROM business_objects
				WHERE tpp_id = $1 AND object_type = $2 AND id <> $3
				FOR UPDATE
			`, next.TppID, domain.AuthorisationTypeAIS, next.ID)
			if err != nil {
				return fmt.Errorf("finding old consents: %w", err)
			}
			candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.BusinessObject, error) {
				return scanObject(row)
			})
			if err != nil {
				return fmt.Errorf("finding old consents: %w", err)
			}

			for _, old := range candidates {
				if !obsoleteBy(old, next) {
					continue
				}
				_, err := tx.Exec(ctx,
					`UPDATE business_objects SET consent_status = $2, updated_at = NOW() WHERE id = $1`,
					old.ID, domain.ConsentStatusTerminatedByTpp)
				if err != nil {
					return fmt.Errorf("terminating consent %s: %w", old.ID, err)
				}
				terminated = append(terminated, old.ID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return terminated, nil
}

func (s *PostgresStore) exec(ctx context.Context, id, query string, arg any) error {
	tag, err := s.db.Exec(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, database.ErrNotFound)
	}
	return nil
}

func scanAuthorisation(row pgx.Row) (*domain.Authorisation, error) {
	var (
		a         domain.Authorisation
		psu       []byte
		methods   []byte
		expiresAt *time.Time
	)
	err := row.Scan(
		&a.ID, &a.ParentID, &a.Type, &psu, &a.ScaStatus, &a.ScaApproach,
		&a.ScaAuthenticationData, &a.ChosenScaMethod, &methods,
		&a.CreatedAt, &expiresAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(psu, &a.Psu); err != nil {
		return nil, fmt.Errorf("decoding psu: %w", err)
	}
	if err := json.Unmarshal(methods, &a.AvailableMethods); err != nil {
		return nil, fmt.Errorf("decoding methods: %w", err)
	}
	if len(a.AvailableMethods) == 0 {
		a.AvailableMethods = nil
	}
	if expiresAt != nil {
		a.ExpiresAt = *expiresAt
	}
	return &a, nil
}

func scanObject(row pgx.Row) (*domain.BusinessObject, error) {
	var (
		obj        domain.BusinessObject
		psus       []byte
		amount     []byte
		validUntil *time.Time
	)
	err := row.Scan(
		&obj.ID, &obj.Type, &obj.TppID, &psus, &obj.MultilevelScaRequired, &obj.ConsentStatus,
		&obj.RecurringIndicator, &validUntil, &obj.TransactionStatus, &obj.PaymentProduct,
		&amount, &obj.DebtorIBAN, &obj.CreditorIBAN, &obj.AspspConsentData,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(psus, &obj.Psus); err != nil {
		return nil, fmt.Errorf("decoding psus: %w", err)
	}
	if len(amount) > 0 {
		var m money.Money
		if err := json.Unmarshal(amount, &m); err != nil {
			return nil, fmt.Errorf("decoding amount: %w", err)
		}
		obj.InstructedAmount = &m
	}
	if validUntil != nil {
		obj.ValidUntil = *validUntil
	}
	return &obj, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return database.ErrNotFound
	}
	return err
}

func nonNilPsus(psus []domain.PsuIdData) []domain.PsuIdData {
	if psus == nil {
		return []domain.PsuIdData{}
	}
	return psus
}

func nonNilMethods(methods []domain.AuthenticationObject) []domain.AuthenticationObject {
	if methods == nil {
		return []domain.AuthenticationObject{}
	}
	return methods
}
