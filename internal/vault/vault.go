// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vault provides symmetric encryption for integration credentials.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

// Vault encrypts and decrypts per-integration credential blobs using
// AES-256-GCM. The key is derived once from the operator-configured secret;
// each Encrypt call uses a fresh random nonce.
//
// Re-keying is not supported: if the operator secret changes, every
// previously stored blob becomes permanently undecryptable. That is a
// documented operational risk, not a bug — there is no key escrow here.
//
// Encryption and decryption are pure and reentrant; a single Vault is safe
// for unlimited concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from the operator-configured secret.
// An empty secret is a configuration error: the process must refuse to
// start rather than fail lazily on the first credential operation.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, &errors.ConfigError{
			Key:    "vault.secret",
			Reason: "vault secret is required",
		}
	}

	// Derive a fixed-length AES-256 key from the configured secret.
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns the durable blob form:
//
//	hex(nonce) + ":" + hex(ciphertext)
//
// The authentication tag is appended to the ciphertext by GCM, so any
// tampering with the blob is detected at decrypt time.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a blob produced by Encrypt.
//
// Failures are returned as *errors.CredentialError so callers can prompt
// for re-entry of credentials instead of crashing. Malformed=true means
// the blob structure is invalid (missing separator, bad hex, short nonce);
// Malformed=false means the blob parsed but failed authentication —
// either it was tampered with or it was encrypted under a different secret.
func (v *Vault) Decrypt(blob string) (string, error) {
	nonceHex, ctHex, found := strings.Cut(blob, ":")
	if !found {
		return "", &errors.CredentialError{Reason: "missing separator", Malformed: true}
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return "", &errors.CredentialError{Reason: "invalid nonce encoding", Malformed: true, Cause: err}
	}
	if len(nonce) != v.aead.NonceSize() {
		return "", &errors.CredentialError{
			Reason:    fmt.Sprintf("nonce must be %d bytes, got %d", v.aead.NonceSize(), len(nonce)),
			Malformed: true,
		}
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", &errors.CredentialError{Reason: "invalid ciphertext encoding", Malformed: true, Cause: err}
	}

	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Authentication failure: tampered blob or key mismatch.
		return "", &errors.CredentialError{Reason: "integrity check failed", Cause: err}
	}

	return string(plaintext), nil
}

// EncryptJSON marshals the credential map and encrypts it.
// This is the form integrations persist.
func (v *Vault) EncryptJSON(credentials map[string]string) (string, error) {
	data, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return v.Encrypt(string(data))
}

// DecryptJSON decrypts a blob and unmarshals the credential map.
func (v *Vault) DecryptJSON(blob string) (map[string]string, error) {
	plaintext, err := v.Decrypt(blob)
	if err != nil {
		return nil, err
	}

	var credentials map[string]string
	if err := json.Unmarshal([]byte(plaintext), &credentials); err != nil {
		return nil, &errors.CredentialError{Reason: "decrypted payload is not a credential map", Malformed: true, Cause: err}
	}
	return credentials, nil
}
