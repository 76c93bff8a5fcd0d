package webservice

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	legacyFieldName   = "fileUpload"
	legacyContentType = "application/x-www-form-urlencoded"
)

// dispositionEscaper quotes names and file names in strict mode. Line breaks
// are percent-encoded so they cannot end the header.
var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "%0D", "\n", "%0A")

// NewBoundary returns a fresh boundary token.
func NewBoundary() string {
	return "Boundary-" + uuid.NewString()
}

// MultipartEncoder serializes scalar params and binary parts into a
// multipart/form-data body.
//
// The default (legacy) format is kept byte-compatible with servers built
// against it: every part is written under the field name "fileUpload" with
// an empty filename, each part is followed by a closing boundary, and the
// request is declared as application/x-www-form-urlencoded. Strict mode
// writes a conventional body instead: the part's own name and file name, a
// single closing boundary, and a multipart/form-data content type.
type MultipartEncoder struct {
	Strict bool
}

// EncodeMultipart encodes in the legacy format.
func EncodeMultipart(params *Params, parts []MultipartPart, boundary string) []byte {
	return MultipartEncoder{}.Encode(params, parts, boundary)
}

// Encode returns the body bytes. Parts with nil Data are skipped; empty
// input yields an empty body.
func (m MultipartEncoder) Encode(params *Params, parts []MultipartPart, boundary string) []byte {
	var buf bytes.Buffer

	quote := func(s string) string { return s }
	if m.Strict {
		quote = dispositionEscaper.Replace
	}

	params.Range(func(k string, v any) bool {
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString(`Content-Disposition: form-data; name="` + quote(k) + `"` + "\r\n\r\n")
		buf.WriteString(Format(v) + "\r\n")
		return true
	})

	for _, part := range parts {
		if part.Data == nil {
			continue
		}
		buf.WriteString("--" + boundary + "\r\n")
		if m.Strict {
			buf.WriteString(`Content-Disposition: form-data; name="` + quote(part.Name) + `"; filename="` + quote(part.FileName) + `"` + "\r\n")
		} else {
			buf.WriteString(`Content-Disposition: form-data; name="` + legacyFieldName + `"; filename=""` + "\r\n")
		}
		buf.WriteString("Content-Type: " + part.MimeType + "\r\n\r\n")
		buf.Write(part.Data)
		buf.WriteString("\r\n")
		if !m.Strict {
			buf.WriteString("--" + boundary + "--\r\n")
		}
	}

	if m.Strict && buf.Len() > 0 {
		buf.WriteString("--" + boundary + "--\r\n")
	}
	return buf.Bytes()
}

// ContentType is the Content-Type declared for a body encoded with boundary.
func (m MultipartEncoder) ContentType(boundary string) string {
	if m.Strict {
		return "multipart/form-data; boundary=" + boundary
	}
	return legacyContentType
}

// Build produces the POST request for mreq. Caller headers are applied
// first; Content-Type and Content-Length always reflect the encoded body.
func (m MultipartEncoder) Build(ctx context.Context, mreq *MultipartRequest, boundary string, progress ProgressFunc) (*http.Request, int, error) {
	target, err := parseTarget(mreq.URL)
	if err != nil {
		return nil, 0, err
	}

	body := m.Encode(mreq.Params, mreq.Parts, boundary)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), nil)
	if err != nil {
		return nil, 0, &InvalidTargetError{URL: mreq.URL, Err: err}
	}
	setBody(httpReq, body, progress)

	for k, v := range mreq.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Length", strconv.Itoa(len(body)))
	httpReq.Header.Set("Content-Type", m.ContentType(boundary))

	return httpReq, len(body), nil
}
