// Package vault encrypts platform credentials with a passphrase-derived key.
//
// Ciphertexts are age (filippo.io/age) streams under a scrypt recipient,
// base64-encoded so they embed cleanly in JSON documents. The master secret
// never touches disk; it is supplied per invocation.
package vault

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"autopost-go/internal/agent"
)

// Sentinel errors. Callers distinguish setup failures from bad ciphertexts
// with errors.Is.
var (
	ErrInit    = errors.New("vault cipher not initialized")
	ErrDecrypt = errors.New("decryption failed")
)

// DefaultWorkFactor is the scrypt work factor (log2 N) used for new
// ciphertexts. Decryption accepts any work factor the token was created with.
const DefaultWorkFactor = 18

// AgeCipher encrypts strings with age's scrypt recipient.
type AgeCipher struct {
	secret     string
	workFactor int
}

var _ agent.Cipher = (*AgeCipher)(nil)

// New creates a cipher with the default work factor.
func New(secret string) (*AgeCipher, error) {
	return NewWithWorkFactor(secret, 0)
}

// NewWithWorkFactor creates a cipher with an explicit scrypt work factor;
// 0 selects the default. Tests use a low factor to stay fast.
func NewWithWorkFactor(secret string, workFactor int) (*AgeCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: master secret is empty", ErrInit)
	}
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	return &AgeCipher{secret: secret, workFactor: workFactor}, nil
}

// Encrypt encrypts plaintext to a base64 token. The empty string encrypts to
// the empty string so unset fields stay unset.
func (c *AgeCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	recipient, err := age.NewScryptRecipient(c.secret)
	if err != nil {
		return "", fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(c.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt reverses Encrypt. A token that is not valid base64 is a format
// error; a well-formed token that fails to decrypt wraps ErrDecrypt, which
// almost always means a wrong master secret.
func (c *AgeCipher) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("token is not valid base64: %w", err)
	}

	identity, err := age.NewScryptIdentity(c.secret)
	if err != nil {
		return "", fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", fmt.Errorf("%w: wrong master secret or corrupted data: %v", ErrDecrypt, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: wrong master secret or corrupted data: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

// EncryptMap encrypts a string map as one token. Keys are marshaled in sorted
// order, so equal maps produce byte-equal plaintext.
func (c *AgeCipher) EncryptMap(values map[string]string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshaling values: %w", err)
	}
	return c.Encrypt(string(data))
}

// DecryptMap reverses EncryptMap.
func (c *AgeCipher) DecryptMap(token string) (map[string]string, error) {
	if token == "" {
		return map[string]string{}, nil
	}
	plaintext, err := c.Decrypt(token)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(plaintext), &values); err != nil {
		return nil, fmt.Errorf("%w: decrypted data is not a credential map: %v", ErrDecrypt, err)
	}
	return values, nil
}
