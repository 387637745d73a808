package vault

import (
	"fmt"

	"autopost-go/internal/agent"
	"autopost-go/internal/config"
)

// NewCipherFromConfig creates a Cipher based on the configuration type.
// secret is the operator-supplied master secret.
func NewCipherFromConfig(cfg config.VaultConfig, secret string) (agent.Cipher, error) {
	switch cfg.Type {
	case "age", "":
		c, err := NewWithWorkFactor(secret, cfg.WorkFactor)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "test":
		return NewTestCipher(), nil
	default:
		return nil, fmt.Errorf("unknown vault type: %q", cfg.Type)
	}
}
