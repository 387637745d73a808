package vault

import (
	"encoding/json"
	"fmt"
	"strings"

	"autopost-go/internal/agent"
)

const testPrefix = "VLT0:"

// TestCipher is a reversible, non-cryptographic cipher for tests: tokens are
// the plaintext behind a recognizable prefix. Never use outside tests.
type TestCipher struct{}

var _ agent.Cipher = (*TestCipher)(nil)

func NewTestCipher() *TestCipher { return &TestCipher{} }

func (c *TestCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return testPrefix + plaintext, nil
}

func (c *TestCipher) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	if !strings.HasPrefix(token, testPrefix) {
		return "", fmt.Errorf("%w: token missing test prefix", ErrDecrypt)
	}
	return strings.TrimPrefix(token, testPrefix), nil
}

func (c *TestCipher) EncryptMap(values map[string]string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return c.Encrypt(string(data))
}

func (c *TestCipher) DecryptMap(token string) (map[string]string, error) {
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
