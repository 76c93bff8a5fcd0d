package webservice

import (
	"sync/atomic"
	"time"
)

// NonceKey is the parameter name that carries a request nonce.
const NonceKey = "nonce"

// Request describes one HTTP call. Method and encoding are fixed at
// construction; URL and Headers are rewritten once by the Provider before
// dispatch.
type Request struct {
	method   Method
	encoding Encoding

	URL              string
	Params           *Params
	Headers          Headers
	Cache            *CachePolicy
	Timeout          time.Duration
	UploadProgress   ProgressFunc
	DownloadProgress ProgressFunc

	// body is the already encoded payload of an upload, seen by header
	// providers that hash the body.
	body []byte

	retryCount atomic.Uint32
}

// RequestOption configures a Request.
type RequestOption func(*Request)

func NewRequest(method Method, url string, encoding Encoding, opts ...RequestOption) *Request {
	r := &Request{
		method:   method,
		encoding: encoding,
		URL:      url,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithParams(p *Params) RequestOption {
	return func(r *Request) {
		r.Params = p
	}
}

func WithHeaders(h Headers) RequestOption {
	return func(r *Request) {
		r.Headers = h
	}
}

func WithCachePolicy(c CachePolicy) RequestOption {
	return func(r *Request) {
		r.Cache = &c
	}
}

func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

func WithUploadProgress(fn ProgressFunc) RequestOption {
	return func(r *Request) {
		r.UploadProgress = fn
	}
}

func WithDownloadProgress(fn ProgressFunc) RequestOption {
	return func(r *Request) {
		r.DownloadProgress = fn
	}
}

func (r *Request) Method() Method {
	return r.method
}

func (r *Request) Encoding() Encoding {
	return r.encoding
}

// RetryCount reports how many times the request has been explicitly retried.
func (r *Request) RetryCount() uint {
	return uint(r.retryCount.Load())
}

// IncreaseRetryCount records one explicit retry.
func (r *Request) IncreaseRetryCount() {
	r.retryCount.Add(1)
}

// Nonce returns the "nonce" parameter when it is a string.
func (r *Request) Nonce() (string, bool) {
	v, ok := r.Params.Get(NonceKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MultipartPart is one binary part of an upload. A nil Data marks the part
// as absent.
type MultipartPart struct {
	Data     []byte
	Name     string
	FileName string
	MimeType string
}

// MultipartRequest describes a multipart upload. Uploads are always POSTed.
// An empty Boundary gets a fresh one per attempt.
type MultipartRequest struct {
	URL      string
	Parts    []MultipartPart
	Params   *Params
	Headers  Headers
	Boundary string
}
