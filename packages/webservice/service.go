package webservice

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
)

const (
	// DefaultTimeout bounds each attempt when neither the request nor the
	// service sets a timeout.
	DefaultTimeout = 10 * time.Second

	// UploadDataMimeType is the media type used by UploadData.
	UploadDataMimeType = "image/jpg"
)

// Observer is notified once per completed attempt.
type Observer interface {
	ObserveResult(method Method, url string, res *Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(method Method, url string, res *Result)

func (f ObserverFunc) ObserveResult(method Method, url string, res *Result) {
	f(method, url, res)
}

// Service executes requests over a Transport and normalizes the outcome.
type Service struct {
	transport  httpclient.Transport
	logger     *zerolog.Logger
	logEnabled bool
	timeout    time.Duration
	errorPaths ErrorPaths
	multipart  MultipartEncoder
	observers  []Observer
	deliverer  Deliverer
	encoder    *Encoder
}

type ServiceOption func(*Service)

func NewService(transport httpclient.Transport, opts ...ServiceOption) *Service {
	nop := zerolog.Nop()
	s := &Service{
		transport:  transport,
		logger:     &nop,
		logEnabled: true,
		timeout:    DefaultTimeout,
		errorPaths: DefaultErrorPaths,
		deliverer:  InlineDeliverer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.encoder = NewEncoder(s.logger, s.logEnabled)
	return s
}

func WithLogger(logger *zerolog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLogEnabled toggles the per-request log line.
func WithLogEnabled(enabled bool) ServiceOption {
	return func(s *Service) {
		s.logEnabled = enabled
	}
}

// WithDefaultTimeout sets the attempt timeout used when a request has none.
// Zero disables the default.
func WithDefaultTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithErrorPaths sets where structured server errors are looked up in
// response bodies. An empty code path disables detection.
func WithErrorPaths(paths ErrorPaths) ServiceOption {
	return func(s *Service) {
		s.errorPaths = paths
	}
}

// WithStrictMultipart switches uploads to the conventional multipart format.
func WithStrictMultipart(strict bool) ServiceOption {
	return func(s *Service) {
		s.multipart.Strict = strict
	}
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithDeliverer sets where Call.Then callbacks run.
func WithDeliverer(d Deliverer) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.deliverer = d
		}
	}
}

func (s *Service) Logger() *zerolog.Logger {
	return s.logger
}

// Do encodes req and sends it. Encoding failures complete the call without
// touching the transport.
func (s *Service) Do(ctx context.Context, req *Request) *Call {
	call := newCall(ctx, s.deliverer)
	attemptCtx, cancel := s.attemptContext(call.ctx, req.Timeout)

	httpReq, err := s.encoder.Encode(attemptCtx, req)
	if err != nil {
		cancel()
		s.finish(call, req.Method(), req.URL, &Result{Err: err})
		return call
	}

	go s.roundTrip(call, httpReq, cancel, req.Method(), req.DownloadProgress)
	return call
}

// RequestJSON sends a JSON-encoded request without extra headers.
func (s *Service) RequestJSON(ctx context.Context, method Method, url string, params *Params) *Call {
	return s.Do(ctx, NewRequest(method, url, EncodingJSON, WithParams(params)))
}

// Upload POSTs a multipart body built from mreq.
func (s *Service) Upload(ctx context.Context, mreq *MultipartRequest, progress ProgressFunc) *Call {
	call := newCall(ctx, s.deliverer)
	attemptCtx, cancel := s.attemptContext(call.ctx, 0)

	boundary := mreq.Boundary
	if boundary == "" {
		boundary = NewBoundary()
	}
	httpReq, size, err := s.multipart.Build(attemptCtx, mreq, boundary, progress)
	if err != nil {
		cancel()
		s.finish(call, MethodPost, mreq.URL, &Result{Err: err})
		return call
	}

	if s.logEnabled {
		s.logger.Info().
			Str("method", http.MethodPost).
			Str("url", httpReq.URL.String()).
			Int("bytes", size).
			Int("parts", len(mreq.Parts)).
			Msg("Upload")
	}

	go s.roundTrip(call, httpReq, cancel, MethodPost, nil)
	return call
}

// UploadData uploads a single binary payload under key. The file name is a
// random UUID and the media type is UploadDataMimeType.
func (s *Service) UploadData(ctx context.Context, url string, data []byte, key string, params *Params, headers Headers, progress ProgressFunc) *Call {
	return s.Upload(ctx, singlePartRequest(url, data, key, params, headers), progress)
}

func singlePartRequest(url string, data []byte, key string, params *Params, headers Headers) *MultipartRequest {
	return &MultipartRequest{
		URL: url,
		Parts: []MultipartPart{{
			Data:     data,
			Name:     key,
			FileName: uuid.NewString(),
			MimeType: UploadDataMimeType,
		}},
		Params:  params,
		Headers: headers,
	}
}

func (s *Service) attemptContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = s.timeout
	}
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func (s *Service) roundTrip(call *Call, httpReq *http.Request, cancel context.CancelFunc, method Method, download ProgressFunc) {
	defer cancel()

	resp, err := s.transport.Do(httpReq)
	res := normalize(resp, err, s.errorPaths)
	if download != nil && res.Response != nil {
		download(1)
	}

	if s.logEnabled {
		event := s.logger.Debug().
			Str("method", method.String()).
			Str("url", httpReq.URL.String()).
			Int("status", res.StatusCode())
		if res.Err != nil {
			event = event.Str("kind", string(KindOf(res.Err))).Err(res.Err)
		}
		event.Msg("Response")
	}

	s.finish(call, method, httpReq.URL.String(), res)
}

func (s *Service) finish(call *Call, method Method, url string, res *Result) {
	for _, o := range s.observers {
		o.ObserveResult(method, url, res)
	}
	call.complete(res)
}
