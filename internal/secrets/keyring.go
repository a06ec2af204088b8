// Package secrets keeps the LLM API key in the OS keychain so it does not
// have to live in the config file.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/dastanaron/bookaimark/internal/config"
)

const (
	keyringService = "bookaimark"
	keyringLLMKey  = "llm-api-key"
)

// Store abstracts the keychain so tests can swap it out.
type Store interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// OS returns the platform keychain.
func OS() Store { return osKeyring{} }

// LLMKey reads the stored API key. A missing entry yields "", nil.
func LLMKey(store Store) (string, error) {
	value, err := store.Get(keyringService, keyringLLMKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read llm key from keychain: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// SetLLMKey stores the API key.
func SetLLMKey(store Store, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("api key must not be empty")
	}
	if err := store.Set(keyringService, keyringLLMKey, value); err != nil {
		return fmt.Errorf("store llm key in keychain: %w", err)
	}
	return nil
}

// DeleteLLMKey removes the stored API key. Deleting a missing key is not an error.
func DeleteLLMKey(store Store) error {
	if err := store.Delete(keyringService, keyringLLMKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete llm key from keychain: %w", err)
	}
	return nil
}

// ApplyLLMKey fills cfg.LLM.APIKey from the keychain when neither the config
// file nor the environment supplied one. Keychain failures are returned so the
// caller can log them; the config is left unchanged.
func ApplyLLMKey(cfg *config.Config, store Store) error {
	if cfg == nil || cfg.LLM.APIKey != "" {
		return nil
	}
	value, err := LLMKey(store)
	if err != nil {
		return err
	}
	cfg.LLM.APIKey = value
	return nil
}
