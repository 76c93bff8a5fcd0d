package headers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/webservice/packages/core/env"
	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

func getReq(url string) *webservice.Request {
	return webservice.NewRequest(webservice.MethodGet, url, webservice.EncodingJSON)
}

func TestStatic_Templates(t *testing.T) {
	t.Setenv("WEBSVC_TEST_KEY", "k-1")
	resolver := env.NewResolver()
	resolver.SetVariable("tenant", "acme")

	s := NewStatic(map[string]string{
		"X-Key":        "{{$WEBSVC_TEST_KEY}}",
		"X-Tenant":     "{{tenant}}",
		"X-Request-Id": "{{uuid()}}",
		"Accept":       "application/json",
	}, resolver)

	first := s.Headers(getReq("http://x.test"))
	second := s.Headers(getReq("http://x.test"))

	assert.Equal(t, "k-1", first["X-Key"])
	assert.Equal(t, "acme", first["X-Tenant"])
	assert.Equal(t, "application/json", first["Accept"])
	assert.Len(t, first["X-Request-Id"], 36)
	assert.NotEqual(t, first["X-Request-Id"], second["X-Request-Id"])
}

func TestStatic_NoResolverKeepsTemplates(t *testing.T) {
	s := NewStatic(map[string]string{"X": "{{uuid()}}"}, nil)
	assert.Equal(t, webservice.Headers{"X": "{{uuid()}}"}, s.Headers(nil))
}

func TestStatic_Replace(t *testing.T) {
	values := map[string]string{"A": "1"}
	s := NewStatic(values, nil)
	values["A"] = "mutated"

	assert.Equal(t, "1", s.Headers(nil)["A"])

	s.Replace(map[string]string{"B": "2"})
	assert.Equal(t, webservice.Headers{"B": "2"}, s.Headers(nil))
}

func TestCredentials(t *testing.T) {
	assert.Equal(t, webservice.Headers{"Authorization": "Basic dXNlcjpwYXNz"}, Basic("user", "pass").Headers(nil))
	assert.Equal(t, webservice.Headers{"Authorization": "Bearer t0k"}, Bearer(StaticToken("t0k")).Headers(nil))
	assert.Nil(t, Bearer(StaticToken("")).Headers(nil))
	assert.Equal(t, webservice.Headers{"X-API-Key": "abc"}, APIKey("", "abc").Headers(nil))
	assert.Equal(t, webservice.Headers{"X-Custom": "abc"}, APIKey("X-Custom", "abc").Headers(nil))
}

func TestBearer_SourceCalledPerRequest(t *testing.T) {
	tokens := []string{"one", "two"}
	i := 0
	p := Bearer(func() string {
		tok := tokens[i]
		i++
		return tok
	})

	assert.Equal(t, "Bearer one", p.Headers(nil)["Authorization"])
	assert.Equal(t, "Bearer two", p.Headers(nil)["Authorization"])
}

func TestChain_LaterWins(t *testing.T) {
	p := Chain(
		APIKey("", "a"),
		nil,
		Basic("u", "p"),
		Bearer(StaticToken("t")),
	)

	assert.Equal(t, webservice.Headers{
		"X-API-Key":     "a",
		"Authorization": "Bearer t",
	}, p.Headers(nil))
}

func TestChain_DefaultsStillWinOverCaller(t *testing.T) {
	got := webservice.SynthesizeHeaders(
		webservice.Headers{"Authorization": "caller", "X-Trace": "1"},
		Chain(Bearer(StaticToken("default"))),
		getReq("http://x.test"),
	)

	assert.Equal(t, "Bearer default", got["Authorization"])
	assert.Equal(t, "1", got["X-Trace"])
}

func fixedSigner() *AWSSigner {
	s := NewAWSSigner(AWSCredentials{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		Region:    "us-east-1",
		Service:   "execute-api",
	}, nil)
	s.now = func() time.Time { return time.Date(2015, 8, 30, 12, 36, 0, 0, time.UTC) }
	return s
}

func TestSignatureKey(t *testing.T) {
	key := signatureKey("wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "20120215", "us-east-1", "iam")
	assert.Equal(t, "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d", hex.EncodeToString(key))
}

func TestAWSSigner_Headers(t *testing.T) {
	got := fixedSigner().Headers(getReq("https://api.x.test/items"))
	require.NotNil(t, got)

	auth := got["Authorization"]
	assert.True(t, strings.HasPrefix(auth,
		"AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20150830/us-east-1/execute-api/aws4_request, "+
			"SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature="), auth)
	assert.Len(t, auth[strings.LastIndex(auth, "=")+1:], 64)
	assert.Equal(t, "20150830T123600Z", got["X-Amz-Date"])
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got["X-Amz-Content-Sha256"])
	assert.NotContains(t, got, "X-Amz-Security-Token")
}

func TestAWSSigner_HashesEncodedBody(t *testing.T) {
	req := webservice.NewRequest(webservice.MethodPost, "https://api.x.test/items", webservice.EncodingJSON)

	got := fixedSigner().Headers(req)

	assert.Equal(t, sha256Hex([]byte("{}")), got["X-Amz-Content-Sha256"])
}

func TestAWSSigner_HashesUploadBody(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
	}{
		{"legacy", false},
		{"strict", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var signed, actual string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				sum := sha256.Sum256(body)
				signed = r.Header.Get("X-Amz-Content-Sha256")
				actual = hex.EncodeToString(sum[:])
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			provider := webservice.NewProvider(
				webservice.NewService(httpclient.NewClient(), webservice.WithStrictMultipart(tt.strict)),
				webservice.WithBaseAddress(server.URL),
				webservice.WithHeaderProvider(fixedSigner()),
			)
			res := provider.UploadData(context.Background(), "avatars", []byte("\x89PNG"), "avatar",
				webservice.NewParams("user", "ada"), nil, nil).Result()

			require.NoError(t, res.Err)
			assert.Equal(t, actual, signed)
			assert.NotEqual(t, sha256Hex([]byte("{}")), signed)
		})
	}
}

func TestAWSSigner_SignatureCoversQuery(t *testing.T) {
	s := fixedSigner()
	plain := s.Headers(getReq("https://api.x.test/items"))
	withParams := s.Headers(webservice.NewRequest(webservice.MethodGet, "https://api.x.test/items",
		webservice.EncodingJSON, webservice.WithParams(webservice.NewParams("q", "a b"))))

	assert.NotEqual(t, plain["Authorization"], withParams["Authorization"])
	assert.Equal(t, plain, s.Headers(getReq("https://api.x.test/items")), "signing is deterministic")
}

func TestAWSSigner_SessionToken(t *testing.T) {
	s := fixedSigner()
	s.creds.SessionToken = "session"

	got := s.Headers(getReq("https://api.x.test/"))

	assert.Equal(t, "session", got["X-Amz-Security-Token"])
	assert.Contains(t, got["Authorization"], "SignedHeaders=host;x-amz-content-sha256;x-amz-date;x-amz-security-token,")
}

func TestAWSSigner_Unsignable(t *testing.T) {
	assert.Nil(t, fixedSigner().Headers(getReq("not a url")))
	assert.Nil(t, NewAWSSigner(AWSCredentials{}, nil).Headers(getReq("https://api.x.test/")))
	assert.Nil(t, fixedSigner().Headers(nil))
}

func TestCanonicalQueryString(t *testing.T) {
	values := map[string][]string{"b": {"2", "1"}, "a": {"x y"}, "c~": {"*"}}
	assert.Equal(t, "a=x%20y&b=1&b=2&c~=%2A", canonicalQueryString(values))
	assert.Empty(t, canonicalQueryString(nil))
}
