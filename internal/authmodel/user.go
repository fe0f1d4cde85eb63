// Package authmodel defines the canonical entities shared by every
// component of the runtime: User, Session, and Account, each carrying a
// plugin-extensible attribute bag instead of per-plugin columns.
package authmodel

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Extensions is a plugin-extensible attribute bag. Plugin data never lives
// in new struct fields on User/Session — only here.
type Extensions map[string]json.RawMessage

// Get decodes the value stored under key into out. Returns false if the key
// is absent.
func (e Extensions) Get(key string, out interface{}) (bool, error) {
	raw, ok := e[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, err
	}
	return true, nil
}

// Set encodes value and stores it under key.
func (e Extensions) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e[key] = raw
	return nil
}

// Remove deletes key, returning whether it was present.
func (e Extensions) Remove(key string) bool {
	_, ok := e[key]
	delete(e, key)
	return ok
}

// User is the canonical identity record.
//
// Invariant: Email is globally unique; ID is immutable after creation. Any
// mutation to Extensions must bump UpdatedAt (see Touch).
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Name          *string    `json:"name,omitempty"`
	Image         *string    `json:"image,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Extensions    Extensions `json:"-"`
}

// NewUser constructs a User with a fresh ID and timestamps.
func NewUser(email string) *User {
	now := time.Now().UTC()
	return &User{
		ID:         uuid.NewString(),
		Email:      email,
		CreatedAt:  now,
		UpdatedAt:  now,
		Extensions: Extensions{},
	}
}

// Touch bumps UpdatedAt; callers invoke this after any extension-bag write.
func (u *User) Touch() { u.UpdatedAt = time.Now().UTC() }

// SetExtension stores value under key and bumps UpdatedAt.
func (u *User) SetExtension(key string, value interface{}) error {
	if u.Extensions == nil {
		u.Extensions = Extensions{}
	}
	if err := u.Extensions.Set(key, value); err != nil {
		return err
	}
	u.Touch()
	return nil
}

// GetExtension decodes the value stored under key into out.
func (u *User) GetExtension(key string, out interface{}) (bool, error) {
	if u.Extensions == nil {
		return false, nil
	}
	return u.Extensions.Get(key, out)
}

// RemoveExtension deletes key, bumping UpdatedAt if it was present.
func (u *User) RemoveExtension(key string) bool {
	if u.Extensions == nil {
		return false
	}
	removed := u.Extensions.Remove(key)
	if removed {
		u.Touch()
	}
	return removed
}

// MarshalJSON flattens the extension bag alongside the base fields, per
// spec.md §4.1 ("Serialization of a User merges base fields and extension
// bag at the top level").
func (u *User) MarshalJSON() ([]byte, error) {
	type base struct {
		ID            string    `json:"id"`
		Email         string    `json:"email"`
		EmailVerified bool      `json:"email_verified"`
		Name          *string   `json:"name,omitempty"`
		Image         *string   `json:"image,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
	baseBytes, err := json.Marshal(base{
		ID: u.ID, Email: u.Email, EmailVerified: u.EmailVerified,
		Name: u.Name, Image: u.Image, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	if len(u.Extensions) == 0 {
		return baseBytes, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(baseBytes, &merged); err != nil {
		return nil, err
	}
	for k, v := range u.Extensions {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reverses MarshalJSON: known fields populate the struct,
// unknown top-level keys populate the extension bag.
func (u *User) UnmarshalJSON(data []byte) error {
	type base struct {
		ID            string    `json:"id"`
		Email         string    `json:"email"`
		EmailVerified bool      `json:"email_verified"`
		Name          *string   `json:"name,omitempty"`
		Image         *string   `json:"image,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
	var b base
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	u.ID, u.Email, u.EmailVerified = b.ID, b.Email, b.EmailVerified
	u.Name, u.Image, u.CreatedAt, u.UpdatedAt = b.Name, b.Image, b.CreatedAt, b.UpdatedAt

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"id": true, "email": true, "email_verified": true, "name": true,
		"image": true, "created_at": true, "updated_at": true,
	}
	u.Extensions = Extensions{}
	for k, v := range raw {
		if !known[k] {
			u.Extensions[k] = v
		}
	}
	return nil
}
