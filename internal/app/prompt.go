package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptSecret reads the vault master secret. It checks AUTOPOST_VAULT_SECRET
// first, then prompts on the terminal without echo. minLength of 0 disables
// the length check.
func PromptSecret(minLength int) (string, error) {
	if secret := os.Getenv("AUTOPOST_VAULT_SECRET"); secret != "" {
		if err := checkSecretLength(secret, minLength); err != nil {
			return "", err
		}
		return secret, nil
	}

	fd := int(os.Stdin.Fd())
	var secret string
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Vault master secret: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		secret = string(raw)
	} else {
		// Piped input, e.g. from a secrets manager.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}

	if err := checkSecretLength(secret, minLength); err != nil {
		return "", err
	}
	return secret, nil
}

func checkSecretLength(secret string, minLength int) error {
	if minLength > 0 && len(secret) < minLength {
		return fmt.Errorf("master secret must be at least %d characters", minLength)
	}
	return nil
}
