package config

import (
	"net/http"
	"os"
	"strings"

	"schema-harvester/internal/types"

	"github.com/joho/godotenv"
)

// Environment variables holding the API credentials
const (
	EnvAPIRootURL       = "API_ROOT_URL"
	EnvAPIKey           = "API_KEY"
	EnvAPIKeyHeaderName = "API_KEY_HEADER_NAME"
	EnvBearerToken      = "BEARER_TOKEN"
	EnvSessionID        = "SESSION_ID"
)

// Credentials are the secrets needed to call the remote API
type Credentials struct {
	APIRootURL       string
	APIKey           string
	APIKeyHeaderName string
	BearerToken      string
	SessionID        string
}

// LoadEnvFile loads variables from a .env file without overriding the
// environment. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ResolveCredentials reads the credentials from the environment and reports
// every missing variable at once.
func ResolveCredentials() (*Credentials, error) {
	creds := &Credentials{
		APIRootURL:       strings.TrimSpace(os.Getenv(EnvAPIRootURL)),
		APIKey:           strings.TrimSpace(os.Getenv(EnvAPIKey)),
		APIKeyHeaderName: strings.TrimSpace(os.Getenv(EnvAPIKeyHeaderName)),
		BearerToken:      strings.TrimSpace(os.Getenv(EnvBearerToken)),
		SessionID:        strings.TrimSpace(os.Getenv(EnvSessionID)),
	}

	var missing []string
	for _, v := range []struct {
		name, value string
	}{
		{EnvAPIRootURL, creds.APIRootURL},
		{EnvAPIKey, creds.APIKey},
		{EnvAPIKeyHeaderName, creds.APIKeyHeaderName},
		{EnvBearerToken, creds.BearerToken},
		{EnvSessionID, creds.SessionID},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, &types.ConfigurationError{Message: "missing env variables", Missing: missing}
	}
	return creds, nil
}

// BuildRequestURL joins the root URL and a relative path with one separator.
func (c *Credentials) BuildRequestURL(relative string) (string, error) {
	if c == nil || c.APIRootURL == "" {
		return "", &types.ConfigurationError{Message: EnvAPIRootURL + " is not defined"}
	}
	return strings.TrimRight(c.APIRootURL, "/") + "/" + strings.TrimLeft(relative, "/"), nil
}

// BuildRequestHeaders returns the fixed header set sent with every call
func (c *Credentials) BuildRequestHeaders() http.Header {
	h := make(http.Header)
	h.Set(c.APIKeyHeaderName, c.APIKey)
	h.Set("Authorization", "Bearer "+c.BearerToken)
	h.Set("Content-Type", "application/json")
	h.Set("Cookie", "session_id="+c.SessionID)
	return h
}
