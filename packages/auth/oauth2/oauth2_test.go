package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/webservice/packages/headers"
	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// tokenServer issues tok-1, tok-2, ... and records the grants it saw.
type tokenServer struct {
	*httptest.Server
	issued atomic.Int32
	mu     sync.Mutex
	grants []string
	reject bool
}

func newTokenServer(t *testing.T, expiresIn int) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.mu.Lock()
		ts.grants = append(ts.grants, r.PostForm.Get("grant_type"))
		reject := ts.reject
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reject {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client"}`))
			return
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "app" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := ts.issued.Add(1)
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":%d,"scope":%q}`,
			n, expiresIn, r.PostForm.Get("scope"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) seen() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.grants...)
}

func newTestSource(ts *tokenServer) *Source {
	return NewSource(&Config{
		TokenURL:     ts.URL + "/token",
		ClientID:     "app",
		ClientSecret: "secret",
		Scopes:       []string{"read", "write"},
		GrantType:    ClientCredentials,
	}, httpclient.NewClient())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"client credentials", Config{TokenURL: "https://auth.x.test/token", ClientID: "app"}, false},
		{"password", Config{TokenURL: "https://auth.x.test/token", GrantType: Password, Username: "ada"}, false},
		{"missing url", Config{ClientID: "app"}, true},
		{"bad url", Config{TokenURL: "ftp://auth.x.test", ClientID: "app"}, true},
		{"missing client", Config{TokenURL: "https://auth.x.test/token"}, true},
		{"missing username", Config{TokenURL: "https://auth.x.test/token", GrantType: Password}, true},
		{"unknown grant", Config{TokenURL: "https://auth.x.test/token", GrantType: "implicit"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSource_CachesToken(t *testing.T) {
	ts := newTokenServer(t, 3600)
	s := newTestSource(ts)

	first, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first.AccessToken)
	assert.Equal(t, "read write", first.Scope)

	second, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), ts.issued.Load())
	assert.Equal(t, []string{"client_credentials"}, ts.seen())
}

func TestSource_ExpiresAt(t *testing.T) {
	ts := newTokenServer(t, 60)
	s := newTestSource(ts)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), token.ExpiresAt)
}

func TestSource_ErrorResponse(t *testing.T) {
	ts := newTokenServer(t, 3600)
	ts.reject = true
	s := newTestSource(ts)

	_, err := s.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client - unknown client")
	assert.Empty(t, s.AccessToken())

	ts.mu.Lock()
	ts.reject = false
	ts.mu.Unlock()
	assert.Equal(t, "tok-1", s.AccessToken(), "a failed fetch is not cached")
}

func TestSource_PasswordGrant(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"grant_type": r.PostForm.Get("grant_type"),
			"username":   r.PostForm.Get("username"),
			"password":   r.PostForm.Get("password"),
		}
		_, _ = w.Write([]byte(`{"access_token":"pw"}`))
	}))
	defer server.Close()

	s := NewSource(&Config{TokenURL: server.URL, GrantType: Password, Username: "ada", Password: "lovelace"}, httpclient.NewClient())
	assert.Equal(t, "pw", s.AccessToken())
	assert.Equal(t, map[string]string{"grant_type": "password", "username": "ada", "password": "lovelace"}, form)
}

func TestSource_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	s := NewSource(&Config{TokenURL: server.URL, ClientID: "app"}, httpclient.NewClient())
	_, err := s.Token(context.Background())
	assert.ErrorContains(t, err, "no access_token")
}

func TestSource_BearerHeaderProvider(t *testing.T) {
	ts := newTokenServer(t, 3600)
	s := newTestSource(ts)

	var auth []string
	var mu sync.Mutex
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	provider := webservice.NewProvider(
		webservice.NewService(httpclient.NewClient()),
		webservice.WithBaseAddress(api.URL),
		webservice.WithHeaderProvider(headers.Bearer(s.AccessToken)),
	)

	for i := 0; i < 2; i++ {
		res := provider.Request(context.Background(), webservice.MethodGet, "me", webservice.EncodingJSON).Result()
		require.NoError(t, res.Err)
		assert.True(t, res.Data.Get("ok").Bool())
	}
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-1"}, auth)
	assert.Equal(t, int32(1), ts.issued.Load())
}
