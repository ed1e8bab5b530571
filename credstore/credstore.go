/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package credstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Well-known credential keys.
const (
	// KeyAnthropicAPIKey is the Anthropic API key handed to agent runs.
	KeyAnthropicAPIKey = "anthropic_api_key"

	// KeyWebhookSecret is the HMAC secret GitHub signs deliveries with.
	KeyWebhookSecret = "webhook_secret"
)

// ErrNotFound is returned when no credential exists for a scope/key pair.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes scoped credentials. Scope groups credentials by
// owner ("app", or an installation scope from InstallationScope); key names
// the credential within the scope.
type Store interface {
	Get(ctx context.Context, scope, key string) (string, error)
	Put(ctx context.Context, scope, key, value string) error
}

// AppScope holds app-level credentials shared by all installations.
const AppScope = "app"

// InstallationScope returns the scope for an installation's credentials.
func InstallationScope(installationID int64) string {
	return "installation-" + strconv.FormatInt(installationID, 10)
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("%s %q contains invalid character %q", kind, name, r)
		}
	}
	// Scopes and keys become path components; dot-only names would escape.
	if name == "." || name == ".." {
		return fmt.Errorf("%s %q is reserved", kind, name)
	}
	return nil
}
