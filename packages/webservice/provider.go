package webservice

import (
	"context"
	"strings"
	"sync"
)

// Provider resolves request targets against a base address, injects
// default headers and forwards to a Service. Results pass through the
// interruption hook, when set, before they reach the caller.
type Provider struct {
	service *Service
	headers HeaderProvider
	hook    InterruptionHook

	mu          sync.RWMutex
	baseAddress string
}

type ProviderOption func(*Provider)

func NewProvider(service *Service, opts ...ProviderOption) *Provider {
	p := &Provider{service: service}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithBaseAddress(address string) ProviderOption {
	return func(p *Provider) {
		p.baseAddress = address
	}
}

// WithHeaderProvider sets the default header source. A nil provider, typed
// or not, means no defaults.
func WithHeaderProvider(h HeaderProvider) ProviderOption {
	return func(p *Provider) {
		if isNil(h) {
			h = nil
		}
		p.headers = h
	}
}

// WithInterruptionHook sets the hook consulted on server error codes. A nil
// hook, typed or not, disables interruption.
func WithInterruptionHook(h InterruptionHook) ProviderOption {
	return func(p *Provider) {
		if isNil(h) {
			h = nil
		}
		p.hook = h
	}
}

func (p *Provider) Service() *Service {
	return p.service
}

func (p *Provider) BaseAddress() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.baseAddress
}

// UpdateBaseAddress replaces the base address. Requests already dispatched
// keep the URL they were resolved with.
func (p *Provider) UpdateBaseAddress(address string) {
	p.mu.Lock()
	p.baseAddress = address
	p.mu.Unlock()
}

// FullURL resolves target against the base address. A target that already
// contains the base address is returned unchanged.
func (p *Provider) FullURL(target string) string {
	base := p.BaseAddress()
	if strings.Contains(target, base) {
		return target
	}
	return base + "/" + target
}

// Request builds a Request for path and dispatches it.
func (p *Provider) Request(ctx context.Context, method Method, path string, encoding Encoding, opts ...RequestOption) *Call {
	return p.Do(ctx, NewRequest(method, path, encoding, opts...))
}

// Do rewrites req's URL and headers and dispatches it.
func (p *Provider) Do(ctx context.Context, req *Request) *Call {
	req.URL = p.FullURL(req.URL)
	callerHeaders := req.Headers
	req.Headers = SynthesizeHeaders(callerHeaders, p.headers, req)

	call := newCall(ctx, p.service.deliverer)
	var attempt func()
	attempt = func() {
		p.service.Do(call.ctx, req).onComplete(func(res *Result) {
			p.deliver(call, req, res, func() {
				req.Headers = SynthesizeHeaders(callerHeaders, p.headers, req)
				attempt()
			})
		})
	}
	attempt()
	return call
}

// UploadMultipart resolves mreq's URL, injects default headers and uploads it.
// The boundary is fixed up front so header providers see the exact body.
func (p *Provider) UploadMultipart(ctx context.Context, mreq *MultipartRequest, progress ProgressFunc) *Call {
	mreq.URL = p.FullURL(mreq.URL)
	if mreq.Boundary == "" {
		mreq.Boundary = NewBoundary()
	}
	callerHeaders := mreq.Headers
	hookReq := NewRequest(MethodPost, mreq.URL, EncodingJSON)
	hookReq.body = p.service.multipart.Encode(mreq.Params, mreq.Parts, mreq.Boundary)
	if hookReq.body == nil {
		hookReq.body = []byte{}
	}
	mreq.Headers = SynthesizeHeaders(callerHeaders, p.headers, hookReq)
	hookReq.Headers = mreq.Headers

	call := newCall(ctx, p.service.deliverer)
	var attempt func()
	attempt = func() {
		p.service.Upload(call.ctx, mreq, progress).onComplete(func(res *Result) {
			p.deliver(call, hookReq, res, func() {
				mreq.Headers = SynthesizeHeaders(callerHeaders, p.headers, hookReq)
				hookReq.Headers = mreq.Headers
				attempt()
			})
		})
	}
	attempt()
	return call
}

// UploadData uploads one binary payload under key to path.
func (p *Provider) UploadData(ctx context.Context, path string, data []byte, key string, params *Params, headers Headers, progress ProgressFunc) *Call {
	return p.UploadMultipart(ctx, singlePartRequest(path, data, key, params, headers), progress)
}
