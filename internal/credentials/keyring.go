package credentials

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringServicePrefix is the prefix for all calsync keyring entries
	KeyringServicePrefix = "calsync"
)

// KeyringEntry represents a credential stored in the keyring
type KeyringEntry struct {
	ProviderName string
	Username     string
}

// getServiceName returns the keyring service name for a provider
func getServiceName(providerName string) string {
	return fmt.Sprintf("%s-%s", KeyringServicePrefix, providerName)
}

// Set stores credentials in the OS keyring
func Set(providerName, username, password string) error {
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	serviceName := getServiceName(providerName)
	if err := keyring.Set(serviceName, username, password); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}

	return nil
}

// Get retrieves a password from the OS keyring
func Get(providerName, username string) (string, error) {
	if providerName == "" {
		return "", fmt.Errorf("provider name cannot be empty")
	}
	if username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}

	serviceName := getServiceName(providerName)
	password, err := keyring.Get(serviceName, username)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("no credentials found in keyring for provider %q and user %q", providerName, username)
		}
		return "", fmt.Errorf("failed to retrieve credentials from keyring: %w", err)
	}

	return password, nil
}

// Delete removes credentials from the OS keyring
func Delete(providerName, username string) error {
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	serviceName := getServiceName(providerName)
	if err := keyring.Delete(serviceName, username); err != nil {
		if err == keyring.ErrNotFound {
			return fmt.Errorf("no credentials found in keyring for provider %q and user %q", providerName, username)
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}

	return nil
}

// IsAvailable checks if the keyring is accessible. A probe for a
// non-existent entry returning ErrNotFound means the keyring itself works.
func IsAvailable() bool {
	_, err := keyring.Get("calsync-keyring-test", "test")
	return err == nil || err == keyring.ErrNotFound
}
