// Package oauth2 fetches an OAuth2 access token once and hands it to the
// bearer header provider. Renewing the token is left to the host, e.g. from
// an interruption hook.
package oauth2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	GrantType    GrantType
}

// Validate checks that the fields required by the grant type are set.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: token URL is required")
	}
	if err := httpclient.ValidateURL(c.TokenURL); err != nil {
		return fmt.Errorf("oauth2: %w", err)
	}
	switch c.GrantType {
	case ClientCredentials, "":
		if c.ClientID == "" {
			return fmt.Errorf("oauth2: client_credentials grant requires a client ID")
		}
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: password grant requires a username")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type: %s", c.GrantType)
	}
	return nil
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"-"`
}

// Source fetches a token on first use and caches it for the lifetime of the
// Source. A failed fetch is retried on the next call. It is safe for
// concurrent use.
type Source struct {
	config    *Config
	transport httpclient.Transport
	logger    *zerolog.Logger
	now       func() time.Time
	timeout   time.Duration

	mu    sync.Mutex
	token *Token
}

type Option func(*Source)

func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds each token request.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.timeout = d
	}
}

// NewSource returns a Source that sends token requests through transport.
func NewSource(config *Config, transport httpclient.Transport, opts ...Option) *Source {
	nop := zerolog.Nop()
	s := &Source{
		config:    config,
		transport: transport,
		logger:    &nop,
		now:       time.Now,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the cached token, fetching it on first use.
func (s *Source) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		return s.token, nil
	}
	token, err := s.doTokenRequest(ctx, s.grantForm())
	if err != nil {
		return nil, err
	}
	s.token = token
	s.logger.Debug().Str("tokenUrl", s.config.TokenURL).Time("expiresAt", token.ExpiresAt).Msg("OAuth2 token acquired")
	return token, nil
}

// AccessToken is a headers.TokenSource. Fetch failures are logged and
// yield an empty token, so the request goes out without credentials.
func (s *Source) AccessToken() string {
	token, err := s.Token(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Str("tokenUrl", s.config.TokenURL).Msg("OAuth2 token unavailable")
		return ""
	}
	return token.AccessToken
}

func (s *Source) grantForm() url.Values {
	data := url.Values{}
	switch s.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", s.config.Username)
		data.Set("password", s.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(s.config.Scopes) > 0 {
		data.Set("scope", strings.Join(s.config.Scopes, " "))
	}
	return data
}

func (s *Source) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	// Add client authentication
	if s.config.ClientID != "" && s.config.ClientSecret != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(s.config.ClientID + ":" + s.config.ClientSecret))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := s.transport.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(resp.Body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, resp.BodyString())
	}

	var token Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = s.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}
