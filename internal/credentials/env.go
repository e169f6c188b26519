package credentials

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var loadDotenv sync.Once

// ensureDotenv loads a .env file from the working directory once, if one
// exists. Real environment variables always win over .env values.
func ensureDotenv() {
	loadDotenv.Do(func() {
		_ = godotenv.Load()
	})
}

// normalizeProviderName converts a provider name to the format used in
// environment variables. Example: "gcal-work" becomes "GCAL_WORK".
func normalizeProviderName(providerName string) string {
	normalized := strings.ToUpper(providerName)
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return normalized
}

// getEnvVarName returns the environment variable name for a provider field
func getEnvVarName(providerName, field string) string {
	return "CALSYNC_" + normalizeProviderName(providerName) + "_" + strings.ToUpper(field)
}

// GetUsername retrieves the username from environment variables
// Looks for: CALSYNC_{PROVIDER_NAME}_USERNAME
func GetUsername(providerName string) string {
	if providerName == "" {
		return ""
	}
	ensureDotenv()
	return os.Getenv(getEnvVarName(providerName, "USERNAME"))
}

// GetPassword retrieves the password or API token from environment variables
// Looks for: CALSYNC_{PROVIDER_NAME}_PASSWORD
func GetPassword(providerName string) string {
	if providerName == "" {
		return ""
	}
	ensureDotenv()
	return os.Getenv(getEnvVarName(providerName, "PASSWORD"))
}

// GetHost retrieves the host from environment variables
// Looks for: CALSYNC_{PROVIDER_NAME}_HOST
func GetHost(providerName string) string {
	if providerName == "" {
		return ""
	}
	ensureDotenv()
	return os.Getenv(getEnvVarName(providerName, "HOST"))
}

// HasCredentials checks if credentials exist in environment variables
func HasCredentials(providerName string) bool {
	username := GetUsername(providerName)
	password := GetPassword(providerName)
	return username != "" && password != ""
}
