// Package totpplugin adds a TOTP second factor to signin, backed by
// github.com/pquerna/otp. Grounded in the supplemented original plugin
// crate's second-factor design; no teacher file covers MFA directly, so
// the hook wiring follows the same before/after shape as jwtplugin.
package totpplugin

import (
	"fmt"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/autherr"
	"github.com/authcore/runtime/internal/plugins"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Plugin checks a TOTP code for any user whose extension bag carries a
// non-empty "totp_secret". The check runs only when the signin flow calls
// Verify; the signin hooks themselves do not enforce it.
type Plugin struct {
	plugins.BasePlugin
	issuer string
	// CodeProvider extracts the caller-supplied TOTP code for this signin
	// attempt, e.g. from the HookContext's request metadata. Returns ""
	// if no code was presented.
	CodeProvider func(ctx plugins.HookContext, email string) string
}

// New constructs a totpplugin.Plugin. codeProvider must not be nil.
func New(issuer string, codeProvider func(ctx plugins.HookContext, email string) string) *Plugin {
	return &Plugin{
		BasePlugin:   plugins.BasePlugin{PluginName: "totp"},
		issuer:       issuer,
		CodeProvider: codeProvider,
	}
}

// GenerateSecret returns a fresh TOTP key for accountName (typically the
// user's email), to be shown to the user as a QR code during enrollment.
func (p *Plugin) GenerateSecret(accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: p.issuer, AccountName: accountName})
	if err != nil {
		return nil, fmt.Errorf("totpplugin: generate secret: %w", err)
	}
	return key, nil
}

// OnBeforeSignin is a no-op: the hook only receives the email, not the
// resolved user, so it cannot read the user's enrolled secret. TOTP is
// checked by Verify.
func (p *Plugin) OnBeforeSignin(ctx plugins.HookContext, email string) error {
	return nil
}

// OnAfterSignin is a no-op: by the time it runs the session already
// exists, so it performs no TOTP check. A signin flow that requires TOTP
// calls Verify once the user is resolved and before the session is
// created.
func (p *Plugin) OnAfterSignin(ctx plugins.HookContext, user *authmodel.User, session *authmodel.Session) error {
	return nil
}

// Verify checks the caller-supplied TOTP code against user's enrolled
// secret. Returns nil if the user has no TOTP secret enrolled (TOTP is
// opt-in per user).
func (p *Plugin) Verify(ctx plugins.HookContext, user *authmodel.User) error {
	var secret string
	found, err := user.GetExtension("totp_secret", &secret)
	if err != nil {
		return autherr.PluginError("totp", "corrupt totp_secret extension")
	}
	if !found || secret == "" {
		return nil
	}
	code := p.CodeProvider(ctx, user.Email)
	if code == "" {
		return autherr.InvalidCredentials()
	}
	if !totp.Validate(code, secret) {
		return autherr.InvalidCredentials()
	}
	return nil
}
