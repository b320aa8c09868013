package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewDeliveryTokenService("test-secret", time.Minute)

	signed, err := svc.Issue("alice")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	userID, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewDeliveryTokenService("test-secret", -time.Minute)

	signed, err := svc.Issue("alice")
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewDeliveryTokenService("secret-a", time.Minute)
	verifier := NewDeliveryTokenService("secret-b", time.Minute)

	signed, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewDeliveryTokenService("test-secret", time.Minute)

	_, err := svc.Verify("not-a-jwt")
	assert.Error(t, err)
}
