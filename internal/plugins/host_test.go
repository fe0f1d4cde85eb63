package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlugin struct {
	BasePlugin
	beforeSignupErr error
	calls           *[]string
}

func (p recordingPlugin) OnBeforeSignup(ctx HookContext, email string) error {
	*p.calls = append(*p.calls, p.Name()+":before_signup")
	return p.beforeSignupErr
}

func (p recordingPlugin) OnAfterSignup(ctx HookContext, user *authmodel.User) error {
	*p.calls = append(*p.calls, p.Name()+":after_signup")
	return nil
}

type panickingPlugin struct{ BasePlugin }

func (panickingPlugin) OnBeforeSignup(HookContext, string) error {
	panic("plugin exploded")
}

func (panickingPlugin) OnAfterSignup(HookContext, *authmodel.User) error {
	panic("plugin exploded")
}

func hookCtx() HookContext {
	return HookContext{Context: context.Background()}
}

func TestHost_RunBeforeSignup_InvokesPluginsInOrder(t *testing.T) {
	h := NewHost()
	var calls []string
	h.Register(recordingPlugin{BasePlugin: BasePlugin{PluginName: "a"}, calls: &calls})
	h.Register(recordingPlugin{BasePlugin: BasePlugin{PluginName: "b"}, calls: &calls})

	require.NoError(t, h.RunBeforeSignup(hookCtx(), "user@example.com"))
	assert.Equal(t, []string{"a:before_signup", "b:before_signup"}, calls)
}

func TestHost_RunBeforeSignup_AbortsOnFirstError(t *testing.T) {
	h := NewHost()
	var calls []string
	h.Register(recordingPlugin{BasePlugin: BasePlugin{PluginName: "a"}, calls: &calls, beforeSignupErr: errors.New("rejected")})
	h.Register(recordingPlugin{BasePlugin: BasePlugin{PluginName: "b"}, calls: &calls})

	err := h.RunBeforeSignup(hookCtx(), "user@example.com")
	assert.Error(t, err)
	assert.Equal(t, []string{"a:before_signup"}, calls, "second plugin should never run after the first rejects")
}

func TestHost_RunBeforeSignup_PanicIsRecoveredAsPluginError(t *testing.T) {
	h := NewHost()
	h.Register(panickingPlugin{BasePlugin: BasePlugin{PluginName: "boom"}})

	err := h.RunBeforeSignup(hookCtx(), "user@example.com")
	assert.Error(t, err)
}

func TestHost_RunAfterSignup_ContinuesPastFailingPlugin(t *testing.T) {
	h := NewHost()
	var calls []string
	h.Register(panickingPlugin{BasePlugin: BasePlugin{PluginName: "boom"}})
	h.Register(recordingPlugin{BasePlugin: BasePlugin{PluginName: "b"}, calls: &calls})

	user := authmodel.NewUser("a@example.com")
	assert.NotPanics(t, func() { h.RunAfterSignup(hookCtx(), user) })
	assert.Equal(t, []string{"b:after_signup"}, calls, "after-hooks are best-effort: later plugins still run")
}

func TestHost_Plugins_ReturnsRegistrationOrder(t *testing.T) {
	h := NewHost()
	h.Register(BasePlugin{PluginName: "a"})
	h.Register(BasePlugin{PluginName: "b"})

	names := h.Plugins()
	require.Len(t, names, 2)
	assert.Equal(t, "a", names[0].Name())
	assert.Equal(t, "b", names[1].Name())
}
