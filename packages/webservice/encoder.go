package webservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
)

// Encoder turns a Request into a transport-ready *http.Request.
type Encoder struct {
	logger     *zerolog.Logger
	logEnabled bool
}

// NewEncoder returns an Encoder logging through logger. A nil logger disables logging.
func NewEncoder(logger *zerolog.Logger, logEnabled bool) *Encoder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
		logEnabled = false
	}
	return &Encoder{logger: logger, logEnabled: logEnabled}
}

// Encode builds the outgoing request. GET params become query items in
// insertion order; other methods carry the params as a JSON body when the
// encoding is JSON and no body otherwise.
func (e *Encoder) Encode(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := TargetURL(req)
	if err != nil {
		return nil, err
	}

	var body []byte
	if req.Method() != MethodGet {
		body, err = EncodeBody(req)
		if err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method().String(), target.String(), nil)
	if err != nil {
		return nil, &InvalidTargetError{URL: req.URL, Err: err}
	}
	if body != nil {
		setBody(httpReq, body, req.UploadProgress)
	}

	httpReq.Header.Set("Content-Type", req.Encoding().ContentType())
	if req.Cache != nil {
		if d := req.Cache.Directive(); d != "" {
			httpReq.Header.Set("Cache-Control", d)
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	e.logRequest(target, req.Method(), req.Encoding(), body)
	return httpReq, nil
}

// TargetURL returns the URL req is sent to: its URL with, for GET, the
// query replaced by the params.
func TargetURL(req *Request) (*url.URL, error) {
	target, err := parseTarget(req.URL)
	if err != nil {
		return nil, err
	}
	if req.Method() == MethodGet && req.Params != nil {
		return withQuery(req.URL, req.Params)
	}
	return target, nil
}

// EncodeBody returns the body bytes sent for a non-GET request: the params
// as a JSON object for EncodingJSON (an empty object when absent) and nil
// for every other encoding. For an upload it is the multipart body.
func EncodeBody(req *Request) ([]byte, error) {
	if req.body != nil {
		return req.body, nil
	}
	if req.Encoding() != EncodingJSON {
		return nil, nil
	}
	data, err := req.Params.MarshalJSON()
	if err != nil {
		return nil, &UnknownError{Message: fmt.Sprintf("encode params: %v", err)}
	}
	return data, nil
}

func parseTarget(raw string) (*url.URL, error) {
	if err := httpclient.ValidateURL(raw); err != nil {
		return nil, &InvalidTargetError{URL: raw, Err: err}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidTargetError{URL: raw, Err: err}
	}
	return u, nil
}

// withQuery replaces the query of raw with one item per param.
func withQuery(raw string, params *Params) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidTargetError{URL: raw, Err: err}
	}

	items := make([]string, 0, params.Len())
	params.Range(func(k string, v any) bool {
		items = append(items, queryEscape(k)+"="+queryEscape(Format(v)))
		return true
	})
	u.RawQuery = strings.Join(items, "&")

	rebuilt := u.String()
	if _, err := url.Parse(rebuilt); err != nil {
		return nil, &InvalidTargetError{URL: rebuilt, Err: err}
	}
	return u, nil
}

// queryEscape percent-encodes s for a query component, spaces as %20.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func setBody(req *http.Request, body []byte, progress ProgressFunc) {
	if len(body) == 0 {
		req.Body = http.NoBody
		req.ContentLength = 0
		return
	}
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	var r io.Reader = bytes.NewReader(body)
	if progress != nil {
		r = &progressReader{r: r, total: len(body), fn: progress}
	}
	req.Body = io.NopCloser(r)
}

type progressReader struct {
	r     io.Reader
	read  int
	total int
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += n
		p.fn(float32(p.read) / float32(p.total))
	}
	return n, err
}

func (e *Encoder) logRequest(target *url.URL, method Method, encoding Encoding, body []byte) {
	if !e.logEnabled {
		return
	}
	event := e.logger.Info().Str("method", method.String()).Str("url", target.String())
	if method == MethodPost && encoding == EncodingJSON && body != nil {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err == nil {
			event = event.Str("body", pretty.String())
		}
	}
	event.Msg("Request")
}
