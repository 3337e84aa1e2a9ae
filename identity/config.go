package identity

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config configures the hosted identity service client.
type Config struct {
	// BaseURL is the service endpoint root, e.g. "https://identity.example.com".
	BaseURL string

	// APIKey is the project API key appended to every request.
	APIKey string

	// JWKSEndpoint serves the key set used to verify issued tokens. Optional;
	// required only when RestoreSession is used.
	JWKSEndpoint string

	// Issuer is the expected token issuer. Optional.
	Issuer string

	// Timeout bounds each request. Defaults to 10 seconds.
	Timeout time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("identity: base URL is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("identity: API key is required")
	}
	return nil
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{Timeout: timeout}
}

func (c Config) endpoint(operation string) string {
	return fmt.Sprintf("%s/v1/accounts:%s?key=%s",
		strings.TrimRight(c.BaseURL, "/"), operation, c.APIKey)
}
