package webservice

import (
	"fmt"
	"strings"
)

// Method is an HTTP method supported by the service.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// ParseMethod parses a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported method: %q", s)
	}
}

func (m Method) String() string {
	return string(m)
}

// Encoding selects how parameters are encoded and which content type is declared.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingXML
	EncodingURL
)

// MIMEType is the full media type associated with the encoding.
func (e Encoding) MIMEType() string {
	switch e {
	case EncodingJSON:
		return "application/json"
	case EncodingXML:
		return "application/xml; text/xml"
	case EncodingURL:
		return "application/x-www-form-urlencoded; charset=UTF-8"
	default:
		return ""
	}
}

// ContentType is the Content-Type header set on outgoing requests. Anything
// that is not JSON is declared as XML.
func (e Encoding) ContentType() string {
	if e == EncodingJSON {
		return "application/json"
	}
	return "application/xml"
}

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingXML:
		return "xml"
	case EncodingURL:
		return "url"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding parses "json", "xml" or "url" (also "form").
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return EncodingJSON, nil
	case "xml":
		return EncodingXML, nil
	case "url", "form":
		return EncodingURL, nil
	default:
		return 0, fmt.Errorf("unsupported encoding: %q", s)
	}
}

// CachePolicy is a per-request cache directive.
type CachePolicy int

const (
	CacheUseProtocol CachePolicy = iota
	CacheReloadIgnoringLocal
	CacheReturnElseLoad
	CacheReturnDontLoad
)

// Directive is the Cache-Control value sent for the policy. CacheUseProtocol
// leaves caching to the transport and yields an empty directive.
func (c CachePolicy) Directive() string {
	switch c {
	case CacheReloadIgnoringLocal:
		return "no-cache"
	case CacheReturnElseLoad:
		return "max-stale"
	case CacheReturnDontLoad:
		return "only-if-cached"
	default:
		return ""
	}
}

// Headers maps header names to a single value.
type Headers map[string]string

// Clone returns a copy of h. A nil map clones to an empty one.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// ProgressFunc receives transfer progress in the range [0, 1].
type ProgressFunc func(fraction float32)
