package webhooks

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignHeader_VerifiesSuccessfully(t *testing.T) {
	s := NewSigner("shared-secret")
	payload := []byte(`{"event":"signin"}`)

	header := s.SignHeader(payload)
	require.NoError(t, s.VerifyHeader(header, payload))
}

func TestSigner_VerifyHeader_RejectsTamperedPayload(t *testing.T) {
	s := NewSigner("shared-secret")
	payload := []byte(`{"event":"signin"}`)
	header := s.SignHeader(payload)

	err := s.VerifyHeader(header, []byte(`{"event":"tampered"}`))
	assert.Error(t, err)
}

func TestSigner_VerifyHeader_RejectsWrongSecret(t *testing.T) {
	signer := NewSigner("secret-a")
	payload := []byte("payload")
	header := signer.SignHeader(payload)

	other := NewSigner("secret-b")
	assert.Error(t, other.VerifyHeader(header, payload))
}

func TestSigner_VerifyHeader_RejectsExpiredTimestamp(t *testing.T) {
	s := NewSigner("shared-secret")
	s.Tolerance = time.Minute
	payload := []byte("payload")

	oldTS := time.Now().Add(-time.Hour).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", oldTS, s.Sign(oldTS, payload))

	err := s.VerifyHeader(header, payload)
	assert.Error(t, err)
}

func TestSigner_VerifyHeader_RejectsMalformedHeader(t *testing.T) {
	s := NewSigner("shared-secret")
	err := s.VerifyHeader("not-a-valid-header", []byte("payload"))
	assert.Error(t, err)
}

func TestSigner_VerifyHeader_RejectsMissingSignaturePart(t *testing.T) {
	s := NewSigner("shared-secret")
	err := s.VerifyHeader(fmt.Sprintf("t=%d", time.Now().Unix()), []byte("payload"))
	assert.Error(t, err)
}
