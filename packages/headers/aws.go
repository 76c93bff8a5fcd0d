package headers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// AWSCredentials identify the signer of SigV4 requests.
type AWSCredentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	Service      string
}

// AWSSigner signs every request with AWS Signature Version 4. The signature
// covers the method, the resolved target URL (query included) and the body
// the encoder will send, so it must run after the base address is applied,
// which the Provider guarantees.
type AWSSigner struct {
	creds  AWSCredentials
	now    func() time.Time
	logger *zerolog.Logger
}

func NewAWSSigner(creds AWSCredentials, logger *zerolog.Logger) *AWSSigner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AWSSigner{creds: creds, now: time.Now, logger: logger}
}

// Headers returns Authorization, X-Amz-Date and X-Amz-Content-Sha256 (and
// X-Amz-Security-Token for temporary credentials). Requests that cannot be
// signed get no headers; the encoder reports the underlying problem.
func (s *AWSSigner) Headers(req *webservice.Request) webservice.Headers {
	if req == nil {
		return nil
	}
	headers, err := s.Sign(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", req.URL).Msg("SigV4 signing skipped")
		return nil
	}
	return headers
}

// Sign computes the SigV4 headers for req.
func (s *AWSSigner) Sign(req *webservice.Request) (webservice.Headers, error) {
	if s.creds.AccessKey == "" || s.creds.SecretKey == "" {
		return nil, fmt.Errorf("AWS auth credentials not provided")
	}

	target, err := webservice.TargetURL(req)
	if err != nil {
		return nil, err
	}
	var body []byte
	if req.Method() != webservice.MethodGet {
		if body, err = webservice.EncodeBody(req); err != nil {
			return nil, err
		}
	}

	t := s.now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")
	payloadHash := sha256Hex(body)

	signed := map[string]string{
		"host":                 target.Host,
		"x-amz-content-sha256": payloadHash,
		"x-amz-date":           amzDate,
	}
	if s.creds.SessionToken != "" {
		signed["x-amz-security-token"] = s.creds.SessionToken
	}
	canonicalHeaders, signedHeaders := canonicalizeHeaders(signed)

	canonicalURI := target.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonicalRequest := strings.Join([]string{
		req.Method().String(),
		canonicalURI,
		canonicalQueryString(target.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request",
		dateStamp, s.creds.Region, s.creds.Service)

	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := signatureKey(s.creds.SecretKey, dateStamp, s.creds.Region, s.creds.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	out := webservice.Headers{
		"Authorization": fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			s.creds.AccessKey, credentialScope, signedHeaders, signature),
		"X-Amz-Date":           amzDate,
		"X-Amz-Content-Sha256": payloadHash,
	}
	if s.creds.SessionToken != "" {
		out["X-Amz-Security-Token"] = s.creds.SessionToken
	}
	return out, nil
}

// canonicalizeHeaders expects lower-case names.
func canonicalizeHeaders(headers map[string]string) (string, string) {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(headers[k]))
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, awsEscape(k)+"="+awsEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

// awsEscape encodes everything but unreserved characters, spaces as %20.
func awsEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func signatureKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}
