// Package jwtplugin issues and verifies JWT session tokens on top of the
// Plugin Lifecycle Host. Grounded in the teacher's internal/auth/jwt.go
// (HMAC-SHA256 signing, RegisteredClaims, issuer/expiry/not-before claims)
// but adapted to stamp the extension-bag token instead of mediating a
// separate session store.
package jwtplugin

import (
	"fmt"
	"time"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/plugins"
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the teacher's JWT claim set, narrowed to what the
// runtime's flattened User/Session model carries.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Plugin issues a signed JWT alongside every session and stores it in the
// session's extension bag under "jwt".
type Plugin struct {
	plugins.BasePlugin
	secret   []byte
	issuer   string
	duration time.Duration
}

// New constructs a jwtplugin.Plugin. duration defaults to 24h, matching
// the teacher's default token lifetime.
func New(secret string, issuer string, duration time.Duration) *Plugin {
	if issuer == "" {
		issuer = "authcore-runtime"
	}
	if duration == 0 {
		duration = 24 * time.Hour
	}
	return &Plugin{
		BasePlugin: plugins.BasePlugin{PluginName: "jwt"},
		secret:     []byte(secret), issuer: issuer, duration: duration,
	}
}

// OnAfterSignin mints a token for the new session and stores it in the
// session's extension bag.
func (p *Plugin) OnAfterSignin(ctx plugins.HookContext, user *authmodel.User, session *authmodel.Session) error {
	token, err := p.issue(user, session)
	if err != nil {
		return err
	}
	return session.SetExtension("jwt", token)
}

func (p *Plugin) issue(user *authmodel.User, session *authmodel.Session) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("jwtplugin: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token previously issued by issue,
// rejecting anything not signed with HS256 and this plugin's secret.
func (p *Plugin) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("jwtplugin: unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer))
	if err != nil {
		return nil, fmt.Errorf("jwtplugin: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("jwtplugin: token failed validation")
	}
	return claims, nil
}
