package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerSignAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("documents/nid/NID_1.pdf")
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	signed, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "documents/nid/NID_1.pdf", signed.Handle)
	require.True(t, expiresAt.Equal(signed.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Sign("photos/a.jpg")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	signed, err := signer.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.Equal(t, "photos/a.jpg", signed.Handle)
}

func TestSignedURLSignerRejectsForgedTokens(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	other := NewSignedURLSigner("other", time.Hour)
	token, _, err := other.Sign("photos/a.jpg")
	require.NoError(t, err)

	_, err = signer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	valid, _, err := signer.Sign("photos/a.jpg")
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	parts[0] = "cGhvdG9zL2IuanBn"
	_, err = signer.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerRequiresSecretAndHandle(t *testing.T) {
	_, _, err := NewSignedURLSigner("", time.Hour).Sign("photos/a.jpg")
	require.Error(t, err)
	_, _, err = NewSignedURLSigner("secret", time.Hour).Sign("")
	require.Error(t, err)
}
