package domain

import (
	"fmt"
	"strings"
)

// ScaStatus is the status of a single authorisation in the SCA lifecycle.
type ScaStatus string

const (
	ScaStatusReceived          ScaStatus = "received"
	ScaStatusPsuIdentified     ScaStatus = "psuIdentified"
	ScaStatusPsuAuthenticated  ScaStatus = "psuAuthenticated"
	ScaStatusScaMethodSelected ScaStatus = "scaMethodSelected"
	ScaStatusStarted           ScaStatus = "started"
	ScaStatusUnconfirmed       ScaStatus = "unconfirmed"
	ScaStatusFinalised         ScaStatus = "finalised"
	ScaStatusFailed            ScaStatus = "failed"
	ScaStatusExempted          ScaStatus = "exempted"
)

// ScaStatuses lists every status in canonical order.
var ScaStatuses = []ScaStatus{
	ScaStatusReceived,
	ScaStatusPsuIdentified,
	ScaStatusPsuAuthenticated,
	ScaStatusScaMethodSelected,
	ScaStatusStarted,
	ScaStatusUnconfirmed,
	ScaStatusFinalised,
	ScaStatusFailed,
	ScaStatusExempted,
}

// rank orders statuses along the lifecycle. All terminal statuses share the top rank.
var rank = map[ScaStatus]int{
	ScaStatusReceived:          0,
	ScaStatusPsuIdentified:     1,
	ScaStatusPsuAuthenticated:  2,
	ScaStatusScaMethodSelected: 3,
	ScaStatusStarted:           4,
	ScaStatusUnconfirmed:       5,
	ScaStatusFinalised:         6,
	ScaStatusFailed:            6,
	ScaStatusExempted:          6,
}

// IsFinal reports whether no further stage may act on the status.
func (s ScaStatus) IsFinal() bool {
	switch s {
	case ScaStatusFinalised, ScaStatusFailed, ScaStatusExempted:
		return true
	}
	return false
}

// Rank returns the position of the status in the lifecycle, or -1 if unknown.
func (s ScaStatus) Rank() int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

// IsValid reports whether s is a known status.
func (s ScaStatus) IsValid() bool {
	_, ok := rank[s]
	return ok
}

// ParseScaStatus accepts the wire value in any letter case.
func ParseScaStatus(v string) (ScaStatus, error) {
	for _, s := range ScaStatuses {
		if strings.EqualFold(string(s), v) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sca status %q", v)
}

// ScaApproach is the way the PSU performs strong customer authentication.
type ScaApproach string

const (
	ScaApproachEmbedded  ScaApproach = "EMBEDDED"
	ScaApproachDecoupled ScaApproach = "DECOUPLED"
	ScaApproachRedirect  ScaApproach = "REDIRECT"
	ScaApproachOAuth     ScaApproach = "OAUTH"
)

// ScaApproaches lists every approach.
var ScaApproaches = []ScaApproach{
	ScaApproachEmbedded,
	ScaApproachDecoupled,
	ScaApproachRedirect,
	ScaApproachOAuth,
}

// IsValid reports whether a is a known approach.
func (a ScaApproach) IsValid() bool {
	switch a {
	case ScaApproachEmbedded, ScaApproachDecoupled, ScaApproachRedirect, ScaApproachOAuth:
		return true
	}
	return false
}

// IsRedirectLike is true for approaches where SCA happens on the ASPSP's own pages.
func (a ScaApproach) IsRedirectLike() bool {
	return a == ScaApproachRedirect || a == ScaApproachOAuth
}

// ParseScaApproach accepts the approach name in any letter case.
func ParseScaApproach(v string) (ScaApproach, error) {
	a := ScaApproach(strings.ToUpper(strings.TrimSpace(v)))
	if !a.IsValid() {
		return "", fmt.Errorf("unknown sca approach %q", v)
	}
	return a, nil
}

// AuthenticationObject describes an SCA method offered by the ASPSP.
type AuthenticationObject struct {
	ID              string `json:"authenticationMethodId"`
	Type            string `json:"authenticationType"`
	Version         string `json:"authenticationVersion,omitempty"`
	Name            string `json:"name,omitempty"`
	ExplanationText string `json:"explanation,omitempty"`
	Decoupled       bool   `json:"decoupled,omitempty"`
}

// ChallengeData is what the PSU needs to produce the authentication code.
type ChallengeData struct {
	Image                 []byte   `json:"image,omitempty"`
	Data                  []string `json:"data,omitempty"`
	ImageLink             string   `json:"imageLink,omitempty"`
	OtpMaxLength          int      `json:"otpMaxLength,omitempty"`
	OtpFormat             string   `json:"otpFormat,omitempty"`
	AdditionalInformation string   `json:"additionalInformation,omitempty"`
}

// FindMethod returns the method with the given id.
func FindMethod(methods []AuthenticationObject, id string) (AuthenticationObject, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return AuthenticationObject{}, false
}
