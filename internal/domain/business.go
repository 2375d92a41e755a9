package domain

import (
	"time"

	"xs2a/internal/common/money"
)

// ConsentStatus is the status of an AIS or PIIS consent.
type ConsentStatus string

const (
	ConsentStatusReceived            ConsentStatus = "received"
	ConsentStatusValid               ConsentStatus = "valid"
	ConsentStatusRejected            ConsentStatus = "rejected"
	ConsentStatusPartiallyAuthorised ConsentStatus = "partiallyAuthorised"
	ConsentStatusRevokedByPsu        ConsentStatus = "revokedByPsu"
	ConsentStatusExpired             ConsentStatus = "expired"
	ConsentStatusTerminatedByTpp     ConsentStatus = "terminatedByTpp"
	ConsentStatusTerminatedByAspsp   ConsentStatus = "terminatedByAspsp"
)

// IsFinal reports whether the consent can no longer change status.
func (s ConsentStatus) IsFinal() bool {
	switch s {
	case ConsentStatusRejected, ConsentStatusRevokedByPsu, ConsentStatusExpired,
		ConsentStatusTerminatedByTpp, ConsentStatusTerminatedByAspsp:
		return true
	}
	return false
}

// TransactionStatus is the ISO 20022 status of a payment.
type TransactionStatus string

const (
	TransactionStatusRCVD TransactionStatus = "RCVD"
	TransactionStatusPDNG TransactionStatus = "PDNG"
	TransactionStatusPATC TransactionStatus = "PATC"
	TransactionStatusACTC TransactionStatus = "ACTC"
	TransactionStatusACCP TransactionStatus = "ACCP"
	TransactionStatusACSP TransactionStatus = "ACSP"
	TransactionStatusACSC TransactionStatus = "ACSC"
	TransactionStatusRJCT TransactionStatus = "RJCT"
	TransactionStatusCANC TransactionStatus = "CANC"
)

// IsFinal reports whether the payment reached a settled or rejected state.
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case TransactionStatusACSC, TransactionStatusRJCT, TransactionStatusCANC:
		return true
	}
	return false
}

// BusinessObject is the consent, payment or signing basket an authorisation is for.
type BusinessObject struct {
	ID                    string            `json:"id"`
	Type                  AuthorisationType `json:"type"`
	TppID                 string            `json:"tppId"`
	Psus                  []PsuIdData       `json:"psuData,omitempty"`
	MultilevelScaRequired bool              `json:"multilevelScaRequired"`
	ConsentStatus         ConsentStatus     `json:"consentStatus,omitempty"`
	RecurringIndicator    bool              `json:"recurringIndicator,omitempty"`
	ValidUntil            time.Time         `json:"validUntil,omitempty"`
	TransactionStatus     TransactionStatus `json:"transactionStatus,omitempty"`
	PaymentProduct        string            `json:"paymentProduct,omitempty"`
	InstructedAmount      *money.Money      `json:"instructedAmount,omitempty"`
	DebtorIBAN            string            `json:"debtorIban,omitempty"`
	CreditorIBAN          string            `json:"creditorIban,omitempty"`
	AspspConsentData      []byte            `json:"aspspConsentData,omitempty"`
}

// HasPsu reports whether the PSU is one of the object's PSUs. Objects without
// any PSU yet accept every PSU.
func (b *BusinessObject) HasPsu(psu PsuIdData) bool {
	if len(b.Psus) == 0 || psu.IsEmpty() {
		return true
	}
	for _, p := range b.Psus {
		if p.Matches(psu) {
			return true
		}
	}
	return false
}

// SharesPsu reports whether the two objects have at least one PSU in common.
func (b *BusinessObject) SharesPsu(other *BusinessObject) bool {
	for _, p := range b.Psus {
		for _, o := range other.Psus {
			if p.Matches(o) {
				return true
			}
		}
	}
	return false
}
