package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// MessageErrorCode is a TPP-facing error classifier.
type MessageErrorCode string

const (
	CodeFormatError           MessageErrorCode = "FORMAT_ERROR"
	CodePsuCredentialsInvalid MessageErrorCode = "PSU_CREDENTIALS_INVALID"
	CodeScaMethodUnknown      MessageErrorCode = "SCA_METHOD_UNKNOWN"
	CodeScaInvalid            MessageErrorCode = "SCA_INVALID"
	CodeStatusInvalid         MessageErrorCode = "STATUS_INVALID"
	CodeConsentUnknown        MessageErrorCode = "CONSENT_UNKNOWN"
	CodeConsentInvalid        MessageErrorCode = "CONSENT_INVALID"
	CodeResourceUnknown       MessageErrorCode = "RESOURCE_UNKNOWN"
	CodeResourceExpired       MessageErrorCode = "RESOURCE_EXPIRED"
	CodeServiceInvalid        MessageErrorCode = "SERVICE_INVALID"
	CodeServiceBlocked        MessageErrorCode = "SERVICE_BLOCKED"
	CodePaymentFailed         MessageErrorCode = "PAYMENT_FAILED"
	CodeInternalServerError   MessageErrorCode = "INTERNAL_SERVER_ERROR"
)

var codeStatus = map[MessageErrorCode]int{
	CodeFormatError:           http.StatusBadRequest,
	CodePsuCredentialsInvalid: http.StatusUnauthorized,
	CodeScaMethodUnknown:      http.StatusBadRequest,
	CodeScaInvalid:            http.StatusBadRequest,
	CodeStatusInvalid:         http.StatusConflict,
	CodeConsentUnknown:        http.StatusForbidden,
	CodeConsentInvalid:        http.StatusUnauthorized,
	CodeResourceUnknown:       http.StatusForbidden,
	CodeResourceExpired:       http.StatusForbidden,
	CodeServiceInvalid:        http.StatusMethodNotAllowed,
	CodeServiceBlocked:        http.StatusForbidden,
	CodePaymentFailed:         http.StatusBadRequest,
	CodeInternalServerError:   http.StatusInternalServerError,
}

// HTTPStatus returns the default HTTP status for the code.
func (c MessageErrorCode) HTTPStatus() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusBadRequest
}

// MessageCategory is ERROR or WARNING.
type MessageCategory string

const (
	CategoryError   MessageCategory = "ERROR"
	CategoryWarning MessageCategory = "WARNING"
)

// TppMessage is one entry of the tppMessages array.
type TppMessage struct {
	Category MessageCategory  `json:"category"`
	Code     MessageErrorCode `json:"code"`
	Text     string           `json:"text,omitempty"`
	Path     string           `json:"path,omitempty"`
}

// NewTppMessage builds an ERROR message.
func NewTppMessage(code MessageErrorCode, text string) TppMessage {
	return TppMessage{Category: CategoryError, Code: code, Text: text}
}

// ErrorType classifies an error by service and HTTP status, e.g. PIS_400.
type ErrorType struct {
	Service ServiceType
	Status  int
}

func (t ErrorType) String() string {
	return fmt.Sprintf("%s_%d", t.Service, t.Status)
}

// ErrorHolder is an immutable failure carrying TPP messages in insertion order.
type ErrorHolder struct {
	errorType ErrorType
	messages  []TppMessage
}

// NewErrorHolder builds a holder. Duplicate messages are dropped.
func NewErrorHolder(errorType ErrorType, messages ...TppMessage) *ErrorHolder {
	unique := make([]TppMessage, 0, len(messages))
	seen := make(map[TppMessage]struct{}, len(messages))
	for _, m := range messages {
		if m.Category == "" {
			m.Category = CategoryError
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		unique = append(unique, m)
	}
	return &ErrorHolder{errorType: errorType, messages: unique}
}

// NewError builds a single-message holder whose status follows the code.
func NewError(service ServiceType, code MessageErrorCode, text string) *ErrorHolder {
	return NewErrorHolder(ErrorType{Service: service, Status: code.HTTPStatus()}, NewTppMessage(code, text))
}

// Type returns the error classifier.
func (e *ErrorHolder) Type() ErrorType {
	return e.errorType
}

// Messages returns a copy of the TPP messages.
func (e *ErrorHolder) Messages() []TppMessage {
	out := make([]TppMessage, len(e.messages))
	copy(out, e.messages)
	return out
}

// Codes returns the message codes in order.
func (e *ErrorHolder) Codes() []MessageErrorCode {
	codes := make([]MessageErrorCode, len(e.messages))
	for i, m := range e.messages {
		codes[i] = m.Code
	}
	return codes
}

// HasCode reports whether any message carries the code. Safe on a nil holder.
func (e *ErrorHolder) HasCode(code MessageErrorCode) bool {
	if e == nil {
		return false
	}
	for _, m := range e.messages {
		if m.Code == code {
			return true
		}
	}
	return false
}

// Equal compares the classifier and the message codes.
func (e *ErrorHolder) Equal(other *ErrorHolder) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.String() == other.String() && e.errorType == other.errorType
}

// String is the joined list of error codes.
func (e *ErrorHolder) String() string {
	parts := make([]string, len(e.messages))
	for i, m := range e.messages {
		parts[i] = string(m.Code)
	}
	return strings.Join(parts, ", ")
}

func (e *ErrorHolder) Error() string {
	return e.errorType.String() + ": " + e.String()
}
