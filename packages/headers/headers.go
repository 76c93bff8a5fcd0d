// Package headers provides webservice.HeaderProvider implementations:
// static and templated defaults, credentials, request signing and chains.
package headers

import (
	"encoding/base64"
	"sync"

	"github.com/abdul-hamid-achik/webservice/packages/core/env"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// Static supplies a fixed set of headers. Values may contain {{...}}
// templates, which are resolved on every request so that functions such as
// uuid() yield fresh values.
type Static struct {
	mu       sync.RWMutex
	values   map[string]string
	resolver *env.Resolver
}

// NewStatic returns a Static provider. A nil resolver disables templates.
func NewStatic(values map[string]string, resolver *env.Resolver) *Static {
	s := &Static{resolver: resolver}
	s.Replace(values)
	return s
}

// Replace swaps the header set, e.g. after a config reload.
func (s *Static) Replace(values map[string]string) {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.mu.Lock()
	s.values = copied
	s.mu.Unlock()
}

func (s *Static) Headers(*webservice.Request) webservice.Headers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(webservice.Headers, len(s.values))
	for k, v := range s.values {
		if s.resolver != nil && env.HasTemplate(v) {
			v = s.resolver.Resolve(v)
		}
		out[k] = v
	}
	return out
}

// TokenSource returns the current credential. It is called once per request.
type TokenSource func() string

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

// Bearer sets Authorization: Bearer <token>. Nothing is set while the
// source returns an empty token.
func Bearer(source TokenSource) webservice.HeaderProvider {
	return webservice.HeaderProviderFunc(func(*webservice.Request) webservice.Headers {
		token := source()
		if token == "" {
			return nil
		}
		return webservice.Headers{"Authorization": "Bearer " + token}
	})
}

// Basic sets HTTP basic credentials.
func Basic(username, password string) webservice.HeaderProvider {
	value := "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return webservice.HeaderProviderFunc(func(*webservice.Request) webservice.Headers {
		return webservice.Headers{"Authorization": value}
	})
}

// APIKey sets header to key. The header defaults to X-API-Key.
func APIKey(header, key string) webservice.HeaderProvider {
	if header == "" {
		header = "X-API-Key"
	}
	return webservice.HeaderProviderFunc(func(*webservice.Request) webservice.Headers {
		return webservice.Headers{header: key}
	})
}

// Chain merges the headers of several providers. Later providers win on
// conflicting keys.
func Chain(providers ...webservice.HeaderProvider) webservice.HeaderProvider {
	return webservice.HeaderProviderFunc(func(req *webservice.Request) webservice.Headers {
		out := webservice.Headers{}
		for _, p := range providers {
			out = webservice.SynthesizeHeaders(out, p, req)
		}
		return out
	})
}
