/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package githubauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func TestNewAppFromKey(t *testing.T) {
	t.Parallel()
	app, err := NewAppFromKey(1234, testKeyPEM(t))
	require.NoError(t, err)
	require.NotNil(t, app.InstallationClient(42))
	// Same installation reuses one token-caching transport.
	if app.transport(42) != app.transport(42) {
		t.Error("transport() not cached per installation")
	}
	if app.transport(42) == app.transport(43) {
		t.Error("transport() shared across installations")
	}
}

func TestNewApp_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "app.pem")
	require.NoError(t, os.WriteFile(path, testKeyPEM(t), 0o600))
	_, err := NewApp(1234, path)
	require.NoError(t, err)
}

func TestNewApp_BadKey(t *testing.T) {
	t.Parallel()
	_, err := NewAppFromKey(1234, []byte("not a key"))
	require.Error(t, err)
}
