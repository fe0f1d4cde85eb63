package totpplugin

import (
	"context"
	"testing"
	"time"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/plugins"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hookCtx() plugins.HookContext {
	return plugins.HookContext{Context: context.Background()}
}

func TestPlugin_Verify_NoSecretEnrolledPasses(t *testing.T) {
	p := New("authcore", func(plugins.HookContext, string) string { return "" })
	user := authmodel.NewUser("alice@example.com")

	assert.NoError(t, p.Verify(hookCtx(), user))
}

func TestPlugin_Verify_ValidCodeSucceeds(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "authcore", AccountName: "bob@example.com"})
	require.NoError(t, err)

	user := authmodel.NewUser("bob@example.com")
	require.NoError(t, user.SetExtension("totp_secret", key.Secret()))

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	p := New("authcore", func(plugins.HookContext, string) string { return code })
	assert.NoError(t, p.Verify(hookCtx(), user))
}

func TestPlugin_Verify_MissingCodeFails(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "authcore", AccountName: "carol@example.com"})
	require.NoError(t, err)

	user := authmodel.NewUser("carol@example.com")
	require.NoError(t, user.SetExtension("totp_secret", key.Secret()))

	p := New("authcore", func(plugins.HookContext, string) string { return "" })
	assert.Error(t, p.Verify(hookCtx(), user))
}

func TestPlugin_Verify_WrongCodeFails(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "authcore", AccountName: "dana@example.com"})
	require.NoError(t, err)

	user := authmodel.NewUser("dana@example.com")
	require.NoError(t, user.SetExtension("totp_secret", key.Secret()))

	p := New("authcore", func(plugins.HookContext, string) string { return "000000" })
	assert.Error(t, p.Verify(hookCtx(), user))
}

func TestPlugin_GenerateSecret_ReturnsKeyForAccount(t *testing.T) {
	p := New("authcore", nil)
	key, err := p.GenerateSecret("erin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", key.AccountName())
	assert.Equal(t, "authcore", key.Issuer())
}

func TestPlugin_OnBeforeSignin_And_OnAfterSignin_AreNoOps(t *testing.T) {
	p := New("authcore", nil)
	user := authmodel.NewUser("frank@example.com")
	session := authmodel.NewSession(user.ID)

	assert.NoError(t, p.OnBeforeSignin(hookCtx(), user.Email))
	assert.NoError(t, p.OnAfterSignin(hookCtx(), user, session))
}
