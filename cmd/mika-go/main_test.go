package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/infrastructure/security"
	"github.com/mikahq/mika-go/pkg/config"
)

func TestMintToken(t *testing.T) {
	previous := config.JWTSecret
	t.Cleanup(func() { config.JWTSecret = previous })
	config.JWTSecret = "cli-secret"

	var out bytes.Buffer
	require.NoError(t, mintToken([]string{"-workspace", "ws1", "-ttl", "1h"}, &out))

	claims, err := security.ValidateJWT(strings.TrimSpace(out.String()), "cli-secret")
	require.NoError(t, err)
	ws, err := security.WorkspaceFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "ws1", ws)
	assert.Equal(t, "operator", claims[security.ClaimSubject])
}

func TestMintTokenRequiresWorkspaceAndSecret(t *testing.T) {
	previous := config.JWTSecret
	t.Cleanup(func() { config.JWTSecret = previous })

	config.JWTSecret = "cli-secret"
	assert.Error(t, mintToken(nil, &bytes.Buffer{}))

	config.JWTSecret = ""
	assert.Error(t, mintToken([]string{"-workspace", "ws1"}, &bytes.Buffer{}))
}
