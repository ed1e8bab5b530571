/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package credstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/chainguard-dev/clog"
)

// FileStore keeps credentials as age-encrypted files under a root
// directory, one file per scope/key at <root>/<scope>/<key>.age. The
// identity that decrypts them is loaded once at construction.
type FileStore struct {
	root     string
	identity *age.X25519Identity
}

// NewFileStore opens a file-backed store rooted at dir, decrypting with the
// identity at identityPath. The directory is created if absent.
func NewFileStore(dir, identityPath string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating credential directory: %w", err)
	}
	identity, err := LoadIdentity(identityPath)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: dir, identity: identity}, nil
}

// Get decrypts and returns the credential for scope/key.
func (s *FileStore) Get(ctx context.Context, scope, key string) (string, error) {
	path, err := s.path(scope, key)
	if err != nil {
		return "", err
	}
	ciphertext, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%s/%s: %w", scope, key, ErrNotFound)
	} else if err != nil {
		return "", fmt.Errorf("reading credential %s/%s: %w", scope, key, err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting credential %s/%s: %w", scope, key, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decrypting credential %s/%s: %w", scope, key, err)
	}
	return string(plaintext), nil
}

// Put encrypts value to the store's own identity and writes it atomically.
func (s *FileStore) Put(ctx context.Context, scope, key, value string) error {
	path, err := s.path(scope, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating scope directory: %w", err)
	}

	var ciphertext bytes.Buffer
	w, err := age.Encrypt(&ciphertext, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("encrypting credential %s/%s: %w", scope, key, err)
	}
	if _, err := io.WriteString(w, value); err != nil {
		return fmt.Errorf("encrypting credential %s/%s: %w", scope, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypting credential %s/%s: %w", scope, key, err)
	}

	// Write-then-rename so a concurrent Get never sees a torn file.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing credential %s/%s: %w", scope, key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(ciphertext.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credential %s/%s: %w", scope, key, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credential %s/%s: %w", scope, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing credential %s/%s: %w", scope, key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing credential %s/%s: %w", scope, key, err)
	}

	clog.FromContext(ctx).With("scope", scope).With("key", key).Info("Stored credential")
	return nil
}

func (s *FileStore) path(scope, key string) (string, error) {
	if err := validateName("scope", scope); err != nil {
		return "", err
	}
	if err := validateName("key", key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, scope, key+".age"), nil
}

// GenerateIdentity creates a fresh X25519 identity at path (mode 0600) and
// returns its public key. It refuses to overwrite an existing file.
func GenerateIdentity(path string) (publicKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating identity file: %w", err)
	}
	if _, err := io.WriteString(f, identity.String()+"\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("writing identity file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}
	return identity.Recipient().String(), nil
}

// LoadIdentity reads an X25519 identity file written by GenerateIdentity
// (or age-keygen; comment lines starting with # are skipped).
func LoadIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parsing identity file: %w", err)
		}
		return identity, nil
	}
	return nil, fmt.Errorf("identity file %s contains no identity", path)
}
