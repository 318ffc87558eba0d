package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := loadToken()
	require.Error(t, err, "no token saved yet")

	require.NoError(t, saveToken("abc123", time.Now().Add(time.Hour)))
	tok, err := loadToken()
	require.NoError(t, err)
	require.Equal(t, "abc123", tok)
}

func TestLoadToken_Expired(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, saveToken("abc123", time.Now().Add(-time.Minute)))
	_, err := loadToken()
	require.Error(t, err, "expired tokens are not usable")
}
