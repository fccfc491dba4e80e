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

package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	var configErr *errors.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "vault.secret", configErr.Key)
}

func TestRoundTrip(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	inputs := []string{
		"",
		"x",
		`{"api_key":"sk-12345","location_id":"loc_9"}`,
		strings.Repeat("long credential payload ", 100),
		"unicode: ключ 秘密 🔑",
	}

	for _, plaintext := range inputs {
		blob, err := v.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	a, err := v.Encrypt("same input")
	require.NoError(t, err)
	b, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same plaintext must differ")
}

func TestDecrypt_BlobFormat(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt("payload")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 24, "12-byte GCM nonce hex-encodes to 24 chars")
}

func TestDecrypt_Malformed(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	tests := []struct {
		name string
		blob string
	}{
		{"no separator", "deadbeef"},
		{"bad nonce hex", "zzzz:deadbeef"},
		{"bad ciphertext hex", "000102030405060708090a0b:not-hex"},
		{"short nonce", "dead:beef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.blob)
			var credErr *errors.CredentialError
			require.ErrorAs(t, err, &credErr)
			assert.True(t, credErr.Malformed, "structural failures must be marked malformed")
		})
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt("payload")
	require.NoError(t, err)

	// Flip the last hex digit of the ciphertext.
	tampered := blob[:len(blob)-1]
	if strings.HasSuffix(blob, "0") {
		tampered += "1"
	} else {
		tampered += "0"
	}

	_, err = v.Decrypt(tampered)
	var credErr *errors.CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.False(t, credErr.Malformed, "tampered blob is structurally valid")
}

func TestDecrypt_ForeignKey(t *testing.T) {
	a, err := New("secret-a")
	require.NoError(t, err)
	b, err := New("secret-b")
	require.NoError(t, err)

	blob, err := a.Encrypt("payload")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	var credErr *errors.CredentialError
	require.ErrorAs(t, err, &credErr, "decryption under a different secret must fail loudly")
	assert.False(t, credErr.Malformed)
}

func TestJSONRoundTrip(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	creds := map[string]string{"api_key": "sk-1", "base_id": "app123"}

	blob, err := v.EncryptJSON(creds)
	require.NoError(t, err)

	got, err := v.DecryptJSON(blob)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestDecryptJSON_NotAMap(t *testing.T) {
	v, err := New("test-operator-secret")
	require.NoError(t, err)

	blob, err := v.Encrypt("just a string")
	require.NoError(t, err)

	_, err = v.DecryptJSON(blob)
	var credErr *errors.CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.True(t, credErr.Malformed)
}
