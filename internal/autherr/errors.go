// Package autherr provides the unified error taxonomy carried across every
// component of the runtime. All components return this error type (or wrap
// an underlying error inside it) rather than ad-hoc error values, so that
// callers at the edge of the system can map failures to a stable HTTP
// status without inspecting concrete types.
package autherr

import (
	"fmt"
	"net/http"
)

// Kind identifies the broad category of a failure, per the taxonomy table.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindStorage        Kind = "storage"
	KindPlugin         Kind = "plugin"
	KindToken          Kind = "token"
	KindRateLimit      Kind = "rate_limit"
	KindWebhook        Kind = "webhook"
	KindConfiguration  Kind = "configuration"
	KindInternal       Kind = "internal"
)

// Reason is a machine-readable sub-classification within a Kind.
type Reason string

const (
	// Authentication
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonUserNotFound       Reason = "user_not_found"
	ReasonSessionNotFound    Reason = "session_not_found"
	ReasonSessionExpired     Reason = "session_expired"
	ReasonEmailNotVerified   Reason = "email_not_verified"
	ReasonAccountLocked      Reason = "account_locked"

	// Validation
	ReasonMissingField  Reason = "missing_field"
	ReasonInvalidField  Reason = "invalid_field"
	ReasonInvalidEmail  Reason = "invalid_email"
	ReasonWeakPassword  Reason = "weak_password"

	// Storage
	ReasonDatabaseError  Reason = "database_error"
	ReasonNotFound       Reason = "not_found"
	ReasonDuplicateEntry Reason = "duplicate_entry"
	ReasonMigrationError Reason = "migration_error"

	// Plugin
	ReasonPluginError    Reason = "plugin_error"
	ReasonPluginDisabled Reason = "plugin_not_enabled"
	ReasonHookRejected   Reason = "hook_rejected"

	// Token
	ReasonTokenInvalid          Reason = "token_invalid"
	ReasonTokenExpired          Reason = "token_expired"
	ReasonTokenGenerationFailed Reason = "token_generation_failed"

	// Rate limiting
	ReasonRateLimitExceeded Reason = "rate_limit_exceeded"

	// Webhook
	ReasonInvalidSignature    Reason = "invalid_signature"
	ReasonExpiredSignature    Reason = "expired_signature"
	ReasonInvalidPayload      Reason = "invalid_payload"
	ReasonDeliveryFailed      Reason = "delivery_failed"
	ReasonQueueError          Reason = "queue_error"
	ReasonEndpointNotFound    Reason = "endpoint_not_found"
	ReasonHTTPError           Reason = "http_error"
	ReasonRequestTimeout      Reason = "request_timeout"
	ReasonMaxRetriesExceeded  Reason = "max_retries_exceeded"
	ReasonWebhookStorageError Reason = "webhook_storage_error"
	ReasonWebhookConfigError  Reason = "webhook_config_error"
	ReasonCircuitOpen         Reason = "circuit_open"

	// Configuration / Internal
	ReasonConfigError        Reason = "configuration_error"
	ReasonMissingConfig      Reason = "missing_configuration"
	ReasonInternal           Reason = "internal_error"
	ReasonSerializationError Reason = "serialization_error"
	ReasonUnknown            Reason = "unknown"
)

// Error is the single error value returned across the runtime.
//
// It intentionally carries structured fields (Entity/Field/Value/RetryAfter)
// rather than pre-formatting everything into Message, so that callers can
// inspect specifics without string-matching.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string

	// Populated for Storage.NotFound / Storage.DuplicateEntry.
	Entity string
	Field  string
	Value  string

	// Populated for Plugin errors.
	Plugin string

	// Populated for RateLimit errors.
	RetryAfterSeconds int

	// Wrapped underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUserError reports whether this failure should be shown to the caller as
// a client-facing 4xx, as opposed to a generic internal failure.
func (e *Error) IsUserError() bool {
	switch e.Kind {
	case KindAuthentication, KindValidation, KindRateLimit:
		return true
	case KindStorage:
		return e.Reason == ReasonNotFound || e.Reason == ReasonDuplicateEntry
	case KindToken:
		return e.Reason == ReasonTokenInvalid || e.Reason == ReasonTokenExpired
	case KindWebhook:
		return e.Reason == ReasonEndpointNotFound
	default:
		return false
	}
}

// StatusCode maps the error to the HTTP status table in spec.md §7.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindAuthentication:
		switch e.Reason {
		case ReasonAccountLocked, ReasonEmailNotVerified:
			return http.StatusForbidden
		default:
			return http.StatusUnauthorized
		}
	case KindToken:
		if e.Reason == ReasonTokenGenerationFailed {
			return http.StatusInternalServerError
		}
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindStorage:
		switch e.Reason {
		case ReasonNotFound:
			return http.StatusNotFound
		case ReasonDuplicateEntry:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindWebhook:
		if e.Reason == ReasonEndpointNotFound {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func new(kind Kind, reason Reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

// --- Authentication constructors ---

func InvalidCredentials() *Error {
	return new(KindAuthentication, ReasonInvalidCredentials, "invalid credentials")
}

func UserNotFound(id string) *Error {
	e := new(KindAuthentication, ReasonUserNotFound, fmt.Sprintf("user not found: %s", id))
	e.Entity, e.Value = "user", id
	return e
}

func SessionNotFound(id string) *Error {
	e := new(KindAuthentication, ReasonSessionNotFound, fmt.Sprintf("session not found: %s", id))
	e.Entity, e.Value = "session", id
	return e
}

func SessionExpired() *Error {
	return new(KindAuthentication, ReasonSessionExpired, "session expired")
}

func EmailNotVerified() *Error {
	return new(KindAuthentication, ReasonEmailNotVerified, "email not verified")
}

func AccountLocked() *Error {
	return new(KindAuthentication, ReasonAccountLocked, "account locked")
}

// --- Validation constructors ---

func MissingField(field string) *Error {
	e := new(KindValidation, ReasonMissingField, fmt.Sprintf("missing field: %s", field))
	e.Field = field
	return e
}

func InvalidField(field, reason string) *Error {
	e := new(KindValidation, ReasonInvalidField, fmt.Sprintf("invalid field %s: %s", field, reason))
	e.Field = field
	return e
}

func InvalidEmail(value string) *Error {
	e := new(KindValidation, ReasonInvalidEmail, fmt.Sprintf("invalid email: %s", value))
	e.Field, e.Value = "email", value
	return e
}

func WeakPassword(reason string) *Error {
	return new(KindValidation, ReasonWeakPassword, fmt.Sprintf("weak password: %s", reason))
}

// --- Storage constructors ---

func DatabaseError(err error) *Error {
	e := new(KindStorage, ReasonDatabaseError, "")
	e.Err = err
	return e
}

func NotFound(entity, field, value string) *Error {
	e := new(KindStorage, ReasonNotFound, fmt.Sprintf("%s not found: %s=%s", entity, field, value))
	e.Entity, e.Field, e.Value = entity, field, value
	return e
}

func DuplicateEntry(entity, field, value string) *Error {
	e := new(KindStorage, ReasonDuplicateEntry, fmt.Sprintf("%s already exists: %s=%s", entity, field, value))
	e.Entity, e.Field, e.Value = entity, field, value
	return e
}

func MigrationError(err error) *Error {
	e := new(KindStorage, ReasonMigrationError, "")
	e.Err = err
	return e
}

// --- Plugin constructors ---

func PluginError(plugin, message string) *Error {
	e := new(KindPlugin, ReasonPluginError, message)
	e.Plugin = plugin
	return e
}

func PluginDisabled(plugin string) *Error {
	e := new(KindPlugin, ReasonPluginDisabled, fmt.Sprintf("plugin not enabled: %s", plugin))
	e.Plugin = plugin
	return e
}

func HookRejected(plugin, reason string) *Error {
	e := new(KindPlugin, ReasonHookRejected, reason)
	e.Plugin = plugin
	return e
}

// --- Token constructors ---

func TokenInvalid() *Error { return new(KindToken, ReasonTokenInvalid, "invalid token") }
func TokenExpired() *Error { return new(KindToken, ReasonTokenExpired, "token expired") }
func TokenGenerationFailed(err error) *Error {
	e := new(KindToken, ReasonTokenGenerationFailed, "token generation failed")
	e.Err = err
	return e
}

// --- Rate limiting constructors ---

func RateLimited(retryAfterSeconds int) *Error {
	e := new(KindRateLimit, ReasonRateLimitExceeded, "rate limit exceeded")
	e.RetryAfterSeconds = retryAfterSeconds
	return e
}

// --- Webhook constructors ---

func InvalidSignature() *Error { return new(KindWebhook, ReasonInvalidSignature, "invalid signature") }
func ExpiredSignature() *Error { return new(KindWebhook, ReasonExpiredSignature, "signature expired") }
func InvalidPayload(reason string) *Error {
	return new(KindWebhook, ReasonInvalidPayload, fmt.Sprintf("invalid payload: %s", reason))
}
func DeliveryFailed(reason string) *Error {
	return new(KindWebhook, ReasonDeliveryFailed, fmt.Sprintf("delivery failed: %s", reason))
}
func QueueError(reason string) *Error {
	return new(KindWebhook, ReasonQueueError, fmt.Sprintf("queue error: %s", reason))
}
func EndpointNotFound(id string) *Error {
	e := new(KindWebhook, ReasonEndpointNotFound, fmt.Sprintf("endpoint not found: %s", id))
	e.Entity, e.Value = "endpoint", id
	return e
}
func HTTPError(reason string) *Error {
	return new(KindWebhook, ReasonHTTPError, fmt.Sprintf("http error: %s", reason))
}
func RequestTimeout() *Error   { return new(KindWebhook, ReasonRequestTimeout, "request timeout") }
func MaxRetriesExceeded() *Error {
	return new(KindWebhook, ReasonMaxRetriesExceeded, "max retries exceeded")
}
func WebhookStorageError(reason string) *Error {
	return new(KindWebhook, ReasonWebhookStorageError, fmt.Sprintf("storage error: %s", reason))
}
func WebhookConfigError(reason string) *Error {
	return new(KindWebhook, ReasonWebhookConfigError, fmt.Sprintf("configuration error: %s", reason))
}
func CircuitOpen() *Error {
	return new(KindWebhook, ReasonCircuitOpen, "circuit breaker is open - endpoint is temporarily unavailable")
}

// --- Configuration / Internal constructors ---

func ConfigError(reason string) *Error {
	return new(KindConfiguration, ReasonConfigError, reason)
}
func MissingConfig(key string) *Error {
	return new(KindConfiguration, ReasonMissingConfig, fmt.Sprintf("missing configuration: %s", key))
}
func Internal(reason string) *Error {
	return new(KindInternal, ReasonInternal, reason)
}
func SerializationError(err error) *Error {
	e := new(KindInternal, ReasonSerializationError, "serialization error")
	e.Err = err
	return e
}
