package authorisation

import (
	"xs2a/internal/profile"
)

// Decider chooses between explicit and implicit authorisation start. It has
// no side effects.
type Decider struct {
	Mode                   profile.StartAuthorisationMode
	SigningBasketSupported bool
}

// NewDecider reads the relevant profile settings.
func NewDecider(p profile.Profile) Decider {
	return Decider{Mode: p.StartAuthorisationMode, SigningBasketSupported: p.SigningBasketSupported}
}

// IsExplicitMethod reports whether the TPP has to start the authorisation in a
// separate call. Multilevel SCA is always explicit.
func (d Decider) IsExplicitMethod(tppExplicitPreferred, multilevelScaRequired bool) bool {
	if multilevelScaRequired {
		return true
	}
	switch d.Mode {
	case profile.StartAuthorisationExplicit:
		return true
	case profile.StartAuthorisationImplicit:
		return false
	}
	return tppExplicitPreferred && d.SigningBasketSupported
}

// IsImplicitMethod is the complement of IsExplicitMethod.
func (d Decider) IsImplicitMethod(tppExplicitPreferred, multilevelScaRequired bool) bool {
	return !d.IsExplicitMethod(tppExplicitPreferred, multilevelScaRequired)
}
