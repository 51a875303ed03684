package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// ResolveAPIKey returns the generative provider key.
func (c LLMConfig) ResolveAPIKey() (string, error) {
	return resolveSecret(c.APIKey, c.SecretsFile, c.APIKeyEnv)
}

// ResolveAPIKey returns the embedding provider key.
func (c EmbeddingConfig) ResolveAPIKey() (string, error) {
	return resolveSecret(c.APIKey, c.SecretsFile, c.APIKeyEnv)
}

// resolveSecret looks a key up in order: the literal config value, the
// dotenv secrets file, then the process environment. Nothing found is
// domain.ErrMissingCredential.
func resolveSecret(literal, secretsFile, name string) (string, error) {
	if literal != "" {
		return literal, nil
	}
	if secretsFile != "" {
		values, err := godotenv.Read(secretsFile)
		switch {
		case err == nil:
			if v := values[name]; v != "" {
				return v, nil
			}
		case errors.Is(err, fs.ErrNotExist):
			// optional layer
		default:
			return "", fmt.Errorf("read secrets file %s: %w", secretsFile, err)
		}
	}
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: set %s in the secrets file or environment", domain.ErrMissingCredential, name)
}
