// Package profile holds the ASPSP (bank) configuration that drives the SCA flows.
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"xs2a/internal/domain"
)

// StartAuthorisationMode decides whether authorisations are created by the TPP
// explicitly or implicitly with the initiation request.
type StartAuthorisationMode string

const (
	StartAuthorisationAuto     StartAuthorisationMode = "auto"
	StartAuthorisationExplicit StartAuthorisationMode = "explicit"
	StartAuthorisationImplicit StartAuthorisationMode = "implicit"
)

// Profile is the per-ASPSP configuration. It is a value object passed to the
// components that need it.
type Profile struct {
	ScaApproaches                            []domain.ScaApproach   `envconfig:"ASPSP_SCA_APPROACHES" default:"EMBEDDED,DECOUPLED,REDIRECT"`
	StartAuthorisationMode                   StartAuthorisationMode `envconfig:"ASPSP_START_AUTHORISATION_MODE" default:"auto"`
	SigningBasketSupported                   bool                   `envconfig:"ASPSP_SIGNING_BASKET_SUPPORTED" default:"false"`
	AuthorisationConfirmationRequestMandated bool                   `envconfig:"ASPSP_AUTHORISATION_CONFIRMATION_REQUEST_MANDATED" default:"false"`
	AuthorisationConfirmationCheckByXs2a     bool                   `envconfig:"ASPSP_AUTHORISATION_CONFIRMATION_CHECK_BY_XS2A" default:"false"`
	ScaRedirectURL                           string                 `envconfig:"ASPSP_SCA_REDIRECT_URL" default:"https://aspsp.example.com/sca/{redirect-id}?id={encrypted-id}"`
	OAuthConfigurationURL                    string                 `envconfig:"ASPSP_OAUTH_CONFIGURATION_URL" default:"https://aspsp.example.com/.well-known/oauth-authorization-server"`
	AuthorisationExpiration                  time.Duration          `envconfig:"ASPSP_AUTHORISATION_EXPIRATION" default:"15m"`
}

// Load reads the profile from the environment and validates it.
func Load() (Profile, error) {
	var p Profile
	if err := envconfig.Process("", &p); err != nil {
		return Profile{}, fmt.Errorf("processing profile: %w", err)
	}
	for i, a := range p.ScaApproaches {
		parsed, err := domain.ParseScaApproach(string(a))
		if err != nil {
			return Profile{}, err
		}
		p.ScaApproaches[i] = parsed
	}
	p.StartAuthorisationMode = StartAuthorisationMode(strings.ToLower(string(p.StartAuthorisationMode)))
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile for settings that cannot work together.
func (p Profile) Validate() error {
	if len(p.ScaApproaches) == 0 {
		return fmt.Errorf("profile: at least one sca approach is required")
	}
	seen := make(map[domain.ScaApproach]bool, len(p.ScaApproaches))
	for _, a := range p.ScaApproaches {
		if !a.IsValid() {
			return fmt.Errorf("profile: unknown sca approach %q", a)
		}
		if seen[a] {
			return fmt.Errorf("profile: sca approach %s listed twice", a)
		}
		seen[a] = true
	}
	switch p.StartAuthorisationMode {
	case StartAuthorisationAuto, StartAuthorisationExplicit, StartAuthorisationImplicit:
	default:
		return fmt.Errorf("profile: unknown start authorisation mode %q", p.StartAuthorisationMode)
	}
	if seen[domain.ScaApproachRedirect] && p.ScaRedirectURL == "" {
		return fmt.Errorf("profile: redirect approach needs ASPSP_SCA_REDIRECT_URL")
	}
	if seen[domain.ScaApproachOAuth] && p.OAuthConfigurationURL == "" {
		return fmt.Errorf("profile: oauth approach needs ASPSP_OAUTH_CONFIGURATION_URL")
	}
	if p.AuthorisationExpiration <= 0 {
		return fmt.Errorf("profile: authorisation expiration must be positive")
	}
	return nil
}

// Supports reports whether the ASPSP offers the approach.
func (p Profile) Supports(a domain.ScaApproach) bool {
	for _, s := range p.ScaApproaches {
		if s == a {
			return true
		}
	}
	return false
}

// RedirectLink fills the redirect URL template.
func (p Profile) RedirectLink(redirectID, encryptedID string) string {
	r := strings.NewReplacer("{redirect-id}", redirectID, "{encrypted-id}", encryptedID)
	return r.Replace(p.ScaRedirectURL)
}
