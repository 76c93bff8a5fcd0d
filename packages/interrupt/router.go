// Package interrupt implements webservice.InterruptionHook as a router from
// server-declared error codes to handlers.
package interrupt

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// Action is a handler's decision about an intercepted result.
type Action int

const (
	// ActionDeliver passes the result to the caller unchanged.
	ActionDeliver Action = iota
	// ActionSuppress withholds the result. The handler owns the retry func
	// and may call it later.
	ActionSuppress
	// ActionRetry withholds the result and reissues the request, as long as
	// the retry ceiling has not been reached.
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionSuppress:
		return "suppress"
	case ActionRetry:
		return "retry"
	default:
		return "deliver"
	}
}

// HandlerFunc reacts to one intercepted code. retry is nil once the request
// has used up its retries; the handler should then deliver.
type HandlerFunc func(req *webservice.Request, code string, retry webservice.RetryFunc) Action

// DefaultMaxRetries bounds ActionRetry per request.
const DefaultMaxRetries = 1

// Router dispatches interrupted results by code. Codes without a handler
// fall back to the default handler, if any, and are delivered otherwise.
type Router struct {
	mu         sync.RWMutex
	handlers   map[string]HandlerFunc
	fallback   HandlerFunc
	maxRetries uint
	logger     *zerolog.Logger
}

type Option func(*Router)

// WithMaxRetries sets the ActionRetry ceiling. Zero turns every retry into
// a delivery.
func WithMaxRetries(n uint) Option {
	return func(r *Router) {
		r.maxRetries = n
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRouter(opts ...Option) *Router {
	nop := zerolog.Nop()
	r := &Router{
		handlers:   make(map[string]HandlerFunc),
		maxRetries: DefaultMaxRetries,
		logger:     &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers fn for code, replacing any previous handler.
func (r *Router) Handle(code string, fn HandlerFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[code] = fn
	return r
}

// HandleDefault registers the handler for codes without their own.
func (r *Router) HandleDefault(fn HandlerFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
	return r
}

// Codes lists the codes with a registered handler.
func (r *Router) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.handlers))
	for code := range r.handlers {
		codes = append(codes, code)
	}
	return codes
}

// HandleInterruption implements webservice.InterruptionHook.
func (r *Router) HandleInterruption(req *webservice.Request, code string, retry webservice.RetryFunc) bool {
	r.mu.RLock()
	fn, ok := r.handlers[code]
	if !ok {
		fn = r.fallback
	}
	r.mu.RUnlock()
	if fn == nil {
		return false
	}

	exhausted := req.RetryCount() >= r.maxRetries
	offered := retry
	if exhausted {
		offered = nil
	}

	action := fn(req, code, offered)
	if action == ActionRetry && exhausted {
		r.logger.Warn().
			Str("url", req.URL).
			Str("code", code).
			Uint("retries", req.RetryCount()).
			Msg("Retry limit reached, delivering result")
		action = ActionDeliver
	}

	r.logger.Debug().
		Str("url", req.URL).
		Str("code", code).
		Str("action", action.String()).
		Msg("Interruption handled")

	switch action {
	case ActionRetry:
		retry()
		return true
	case ActionSuppress:
		return true
	default:
		return false
	}
}

// Retry is a HandlerFunc that asks for a retry while one is available.
func Retry(_ *webservice.Request, _ string, retry webservice.RetryFunc) Action {
	if retry == nil {
		return ActionDeliver
	}
	return ActionRetry
}

// Notify returns a HandlerFunc that calls fn and delivers the result, e.g.
// to prompt for an application update on a force_update code.
func Notify(fn func(req *webservice.Request, code string)) HandlerFunc {
	return func(req *webservice.Request, code string, _ webservice.RetryFunc) Action {
		fn(req, code)
		return ActionDeliver
	}
}

// RefreshAndRetry returns a HandlerFunc that runs refresh and retries when
// it succeeds. A failed refresh delivers the original result, and refresh
// is not run at all once no retry is left.
func RefreshAndRetry(refresh func(req *webservice.Request) error) HandlerFunc {
	return func(req *webservice.Request, _ string, retry webservice.RetryFunc) Action {
		if retry == nil {
			return ActionDeliver
		}
		if err := refresh(req); err != nil {
			return ActionDeliver
		}
		return ActionRetry
	}
}

var _ webservice.InterruptionHook = (*Router)(nil)
