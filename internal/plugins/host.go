// Package plugins implements the Plugin Lifecycle Host (C17): an ordered,
// explicit invocation chain for the authentication hooks every plugin may
// implement. Grounded in the teacher's BasePlugin/PluginHandler hook set
// (internal/plugins/base_plugin.go, since repurposed) but deliberately
// dropping its global package-level registry in favor of an explicit
// ordered slice held by Host, per the runtime's "avoid global mutable
// state" design.
package plugins

import (
	"context"
	"fmt"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/autherr"
	"github.com/authcore/runtime/internal/logger"
)

// HookContext carries request-scoped data into every hook invocation.
type HookContext struct {
	context.Context
	IPAddress string
	UserAgent string
}

// Plugin is implemented by anything the Host can invoke. Embed BasePlugin
// to inherit no-op defaults and only override the hooks you need.
type Plugin interface {
	Name() string
	OnBeforeSignup(ctx HookContext, email string) error
	OnAfterSignup(ctx HookContext, user *authmodel.User) error
	OnBeforeSignin(ctx HookContext, email string) error
	OnAfterSignin(ctx HookContext, user *authmodel.User, session *authmodel.Session) error
	OnSessionLoad(ctx HookContext, session *authmodel.Session) error
	OnBeforeLogout(ctx HookContext, session *authmodel.Session) error
	OnAfterLogout(ctx HookContext, userID string) error
}

// BasePlugin provides no-op defaults for every hook. Embed it in a
// concrete plugin to only override the hooks that plugin cares about.
type BasePlugin struct{ PluginName string }

func (p BasePlugin) Name() string { return p.PluginName }

func (BasePlugin) OnBeforeSignup(HookContext, string) error                        { return nil }
func (BasePlugin) OnAfterSignup(HookContext, *authmodel.User) error                 { return nil }
func (BasePlugin) OnBeforeSignin(HookContext, string) error                         { return nil }
func (BasePlugin) OnAfterSignin(HookContext, *authmodel.User, *authmodel.Session) error { return nil }
func (BasePlugin) OnSessionLoad(HookContext, *authmodel.Session) error              { return nil }
func (BasePlugin) OnBeforeLogout(HookContext, *authmodel.Session) error             { return nil }
func (BasePlugin) OnAfterLogout(HookContext, string) error                          { return nil }

// Host invokes every registered plugin's hooks in registration order.
//
// Before-hooks (OnBeforeSignup, OnBeforeSignin, OnBeforeLogout) abort the
// operation on the first plugin error. After-hooks (OnAfterSignup,
// OnAfterSignin, OnAfterLogout, OnSessionLoad) are best-effort: a failing
// plugin is logged and the remaining plugins still run. A panicking plugin
// is recovered and surfaced as an internal PluginError rather than
// crashing the host.
type Host struct {
	plugins []Plugin
}

// NewHost returns an empty Host.
func NewHost() *Host { return &Host{} }

// Register appends plugin to the invocation order.
func (h *Host) Register(p Plugin) { h.plugins = append(h.plugins, p) }

// Plugins returns the registered plugins in invocation order.
func (h *Host) Plugins() []Plugin { return append([]Plugin(nil), h.plugins...) }

func safeCall(pluginName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = autherr.PluginError(pluginName, fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}

func (h *Host) runBefore(hookName string, fn func(p Plugin) error) error {
	for _, p := range h.plugins {
		if err := safeCall(p.Name(), func() error { return fn(p) }); err != nil {
			logger.Plugins().Warn().Str("plugin", p.Name()).Str("hook", hookName).Err(err).Msg("hook rejected operation")
			return err
		}
	}
	return nil
}

func (h *Host) runAfter(hookName string, fn func(p Plugin) error) {
	for _, p := range h.plugins {
		if err := safeCall(p.Name(), func() error { return fn(p) }); err != nil {
			logger.Plugins().Error().Str("plugin", p.Name()).Str("hook", hookName).Err(err).Msg("after-hook failed, continuing")
		}
	}
}

func (h *Host) RunBeforeSignup(ctx HookContext, email string) error {
	return h.runBefore("before_signup", func(p Plugin) error { return p.OnBeforeSignup(ctx, email) })
}

func (h *Host) RunAfterSignup(ctx HookContext, user *authmodel.User) {
	h.runAfter("after_signup", func(p Plugin) error { return p.OnAfterSignup(ctx, user) })
}

func (h *Host) RunBeforeSignin(ctx HookContext, email string) error {
	return h.runBefore("before_signin", func(p Plugin) error { return p.OnBeforeSignin(ctx, email) })
}

func (h *Host) RunAfterSignin(ctx HookContext, user *authmodel.User, session *authmodel.Session) {
	h.runAfter("after_signin", func(p Plugin) error { return p.OnAfterSignin(ctx, user, session) })
}

func (h *Host) RunSessionLoad(ctx HookContext, session *authmodel.Session) {
	h.runAfter("session_load", func(p Plugin) error { return p.OnSessionLoad(ctx, session) })
}

func (h *Host) RunBeforeLogout(ctx HookContext, session *authmodel.Session) error {
	return h.runBefore("before_logout", func(p Plugin) error { return p.OnBeforeLogout(ctx, session) })
}

func (h *Host) RunAfterLogout(ctx HookContext, userID string) {
	h.runAfter("after_logout", func(p Plugin) error { return p.OnAfterLogout(ctx, userID) })
}
