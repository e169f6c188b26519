package credentials

import (
	"fmt"
	"net/url"
)

// Source indicates where credentials were found
type Source string

const (
	SourceKeyring Source = "keyring"
	SourceEnv     Source = "env"
	SourceURL     Source = "url"
	SourceNone    Source = "none"
)

// Credentials represents resolved authentication credentials
type Credentials struct {
	Username string
	Password string
	Host     string
	Source   Source
}

// Resolver handles credential resolution from multiple sources.
// Priority order: Keyring > Environment Variables > Config URL.
type Resolver struct{}

// NewResolver creates a new credential resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve attempts to find credentials using the priority order:
// 1. Keyring (if username is provided)
// 2. Environment variables (CALSYNC_{PROVIDER}_USERNAME/PASSWORD/HOST)
// 3. URL credentials embedded in the config URL
//
// Returns credentials with Source indicating where they were found.
func (r *Resolver) Resolve(providerName, username string, host string, configURL *url.URL) (*Credentials, error) {
	if providerName == "" {
		return nil, fmt.Errorf("provider name is required for credential resolution")
	}

	creds := &Credentials{
		Username: username,
		Host:     host,
		Source:   SourceNone,
	}

	// Priority 1: keyring, when a username hint is known.
	if username != "" && IsAvailable() {
		password, err := Get(providerName, username)
		if err == nil {
			creds.Password = password
			creds.Source = SourceKeyring
			creds.Host = fallbackHost(creds.Host, providerName, configURL)
			return creds, nil
		}
		// Not found or keyring access issue; fall through to env.
	}

	// Priority 2: environment variables.
	envUsername := GetUsername(providerName)
	envPassword := GetPassword(providerName)
	if envUsername != "" && envPassword != "" {
		creds.Username = envUsername
		creds.Password = envPassword
		creds.Source = SourceEnv
		creds.Host = fallbackHost(creds.Host, providerName, configURL)
		return creds, nil
	}

	// Priority 3: credentials embedded in the config URL.
	if configURL != nil && configURL.User != nil {
		urlUsername := configURL.User.Username()
		urlPassword, _ := configURL.User.Password()

		if urlUsername != "" && urlPassword != "" {
			creds.Username = urlUsername
			creds.Password = urlPassword
			creds.Host = configURL.Host
			creds.Source = SourceURL
			return creds, nil
		}
	}

	return nil, fmt.Errorf("no credentials found for provider %q (tried: keyring, environment variables, config URL)", providerName)
}

// ResolveWithConfig is a convenience method that accepts raw config values
// and parses the URL internally.
func (r *Resolver) ResolveWithConfig(providerName, configUsername, configHost, configURL string) (*Credentials, error) {
	var parsedURL *url.URL
	var err error

	if configURL != "" {
		parsedURL, err = url.Parse(configURL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}

	return r.Resolve(providerName, configUsername, configHost, parsedURL)
}

func fallbackHost(host, providerName string, configURL *url.URL) string {
	if host != "" {
		return host
	}
	if envHost := GetHost(providerName); envHost != "" {
		return envHost
	}
	if configURL != nil {
		return configURL.Host
	}
	return ""
}
