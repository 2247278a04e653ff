package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedSigner(ttl time.Duration, at *time.Time) *SignedURLSigner {
	signer := NewSignedURLSigner("secret", ttl)
	signer.now = func() time.Time { return *at }
	return signer
}

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	signer := fixedSigner(time.Hour, &now)
	signed, err := signer.Generate("school-1", "school-1/risk_30d.csv")
	require.NoError(t, err)
	require.NotEmpty(t, signed.Token)
	require.Equal(t, now.Add(time.Hour), signed.ExpiresAt.UTC())

	claims, err := signer.Parse(signed.Token, false)
	require.NoError(t, err)
	require.Equal(t, "school-1", claims.Owner)
	require.Equal(t, "school-1/risk_30d.csv", claims.Path)
	require.True(t, signed.ExpiresAt.Equal(claims.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	signer := fixedSigner(time.Minute, &now)
	signed, err := signer.Generate("school-1", "school-1/risk.csv")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = signer.Parse(signed.Token, false)
	require.Error(t, err)

	claims, err := signer.Parse(signed.Token, true)
	require.NoError(t, err)
	require.Equal(t, "school-1/risk.csv", claims.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	now := time.Now()
	signer := fixedSigner(time.Hour, &now)
	signed, err := signer.Generate("school-1", "school-1/risk.csv")
	require.NoError(t, err)

	parts := strings.Split(signed.Token, ".")
	parts[0] = "school-2"
	_, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	_, err = signer.Parse("not-a-token", false)
	require.Error(t, err)
}

func TestSignedURLSignerValidatesInput(t *testing.T) {
	signer := NewSignedURLSigner("secret", 0)
	require.Equal(t, time.Hour, signer.TTL())
	_, err := signer.Generate("", "x")
	require.Error(t, err)
	_, err = signer.Generate("a.b", "x")
	require.Error(t, err)
	_, err = NewSignedURLSigner("", time.Hour).Generate("a", "x")
	require.Error(t, err)
}
