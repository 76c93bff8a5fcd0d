package webservice

import (
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
)

// ResponseInfo is the metadata of a received response.
type ResponseInfo struct {
	StatusCode int
	Status     string
	Header     http.Header
	Duration   time.Duration
}

// Result is the normalized outcome of one request attempt. Either the body
// is present and Err is nil, or Err is set; a failed attempt may still carry
// the body the server sent.
type Result struct {
	Data     gjson.Result
	Body     []byte
	Response *ResponseInfo
	Err      error
}

// StatusCode is the HTTP status, or 0 when no response was received.
func (r *Result) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

func (r *Result) OK() bool {
	return r.Err == nil
}

// Code is the interruption code carried by the error, if any.
func (r *Result) Code() string {
	return ErrorCode(r.Err)
}

// IsJSON reports whether the body parsed as JSON.
func (r *Result) IsJSON() bool {
	return r.Data.Exists()
}

// ErrorPaths are gjson paths locating a structured error in a response body.
type ErrorPaths struct {
	Code    string
	Message string
	Context string
}

// DefaultErrorPaths match bodies shaped like {"error": {"code": ..., "message": ..., "context": ...}}.
var DefaultErrorPaths = ErrorPaths{
	Code:    "error.code",
	Message: "error.message",
	Context: "error.context",
}

// normalize converts a transport outcome into a Result.
func normalize(resp *httpclient.Response, err error, paths ErrorPaths) *Result {
	if err != nil {
		return &Result{Err: &TransportError{Err: err}}
	}
	if resp == nil {
		return &Result{Err: &UnknownError{Message: "transport returned no response"}}
	}

	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	res := &Result{
		Body: body,
		Response: &ResponseInfo{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Duration:   resp.Duration,
		},
	}
	if gjson.ValidBytes(body) {
		res.Data = gjson.ParseBytes(body)
	}

	if serverErr := extractServerError(res.Data, paths); serverErr != nil {
		serverErr.Status = resp.StatusCode
		res.Err = serverErr
		return res
	}
	if !resp.IsSuccess() {
		res.Err = &HTTPStatusError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return res
}

func extractServerError(data gjson.Result, paths ErrorPaths) *ServerError {
	if !data.IsObject() || paths.Code == "" {
		return nil
	}
	code := data.Get(paths.Code)
	if !code.Exists() || code.Type == gjson.Null || code.String() == "" {
		return nil
	}
	return &ServerError{
		Code:    code.String(),
		Message: objectAt(data, paths.Message, "message"),
		Context: objectAt(data, paths.Context, "context"),
	}
}

// objectAt returns the object at path. Scalars are wrapped under key.
func objectAt(data gjson.Result, path, key string) map[string]any {
	if path == "" {
		return nil
	}
	v := data.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	if m, ok := v.Value().(map[string]any); ok {
		return m
	}
	return map[string]any{key: v.Value()}
}
