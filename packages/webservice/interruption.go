package webservice

import (
	"sync"
)

// RetryFunc reissues the intercepted request. Its result is delivered to
// the original caller.
type RetryFunc func()

// InterruptionHook inspects results that carry an error code (expired
// token, forced update, ...). Returning true suppresses delivery of the
// result; the hook may call retry, now or later, to reissue the request.
type InterruptionHook interface {
	HandleInterruption(req *Request, code string, retry RetryFunc) bool
}

// InterruptionHookFunc adapts a function to InterruptionHook.
type InterruptionHookFunc func(req *Request, code string, retry RetryFunc) bool

func (f InterruptionHookFunc) HandleInterruption(req *Request, code string, retry RetryFunc) bool {
	return f(req, code, retry)
}

// deliver hands res to call unless the hook suppresses it. A suppressed
// call stays pending until a retry delivers or the call is cancelled.
func (p *Provider) deliver(call *Call, req *Request, res *Result, reissue func()) {
	code := InterruptionCode(res.Err)
	if p.hook == nil || code == "" {
		call.complete(res)
		return
	}

	var once sync.Once
	retry := func() {
		once.Do(func() {
			req.IncreaseRetryCount()
			p.service.logger.Debug().
				Str("url", req.URL).
				Str("code", code).
				Uint("retry", req.RetryCount()).
				Msg("Retrying interrupted request")
			reissue()
		})
	}

	if !p.hook.HandleInterruption(req, code, retry) {
		call.complete(res)
		return
	}

	go func() {
		select {
		case <-call.Done():
		case <-call.ctx.Done():
			call.complete(&Result{Err: &TransportError{Err: call.ctx.Err()}})
		}
	}()
}
