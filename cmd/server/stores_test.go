package main

import (
	"context"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/backend/internal/config"
	"authcore/backend/internal/security"
)

func TestBuildCodec_HMACFallback(t *testing.T) {
	codec, err := buildCodec(&config.Config{
		CredentialFormat: config.FormatJWT,
		JWTSecret:        "test-secret",
		JWTIssuer:        "authcore",
		JWTAudience:      "authcore-api",
	})
	require.NoError(t, err)

	tok, err := codec.Mint("acct-1", "alice@example.com", security.KindAccess, time.Minute)
	require.NoError(t, err)
	claims, err := codec.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
}

func TestBuildCodec_Paseto(t *testing.T) {
	codec, err := buildCodec(&config.Config{
		CredentialFormat:   config.FormatPaseto,
		PasetoSecretKeyHex: paseto.NewV4AsymmetricSecretKey().ExportHex(),
		JWTIssuer:          "authcore",
	})
	require.NoError(t, err)
	_, ok := codec.(*security.PasetoCodec)
	assert.True(t, ok)
}

func TestBuildCodec_Errors(t *testing.T) {
	_, err := buildCodec(&config.Config{CredentialFormat: config.FormatPaseto, PasetoSecretKeyHex: "zz"})
	assert.Error(t, err)

	_, err = buildCodec(&config.Config{CredentialFormat: config.FormatJWT, JWTPrivateKey: "not pem", JWTPublicKey: "not pem"})
	assert.Error(t, err)

	_, err = buildCodec(&config.Config{CredentialFormat: "saml"})
	assert.Error(t, err)
}

func TestOpenStores_Memory(t *testing.T) {
	st, err := openStores(context.Background(), &config.Config{SessionStore: config.StoreMemory})
	require.NoError(t, err)
	defer st.Close()

	assert.NotNil(t, st.accounts)
	assert.NotNil(t, st.ledger)
	assert.Empty(t, st.pingers)
}

func TestNewRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	assert.NotNil(t, cmd.Flags().Lookup("grpc-addr"))
	assert.NotNil(t, cmd.Flags().Lookup("metrics-addr"))
}

func TestOpenStores_MemoryHasNoAuditTrail(t *testing.T) {
	st, err := openStores(context.Background(), &config.Config{SessionStore: config.StoreMemory})
	require.NoError(t, err)
	assert.Nil(t, st.audit)
}
