package webservice

import "reflect"

// HeaderProvider supplies default headers for an in-flight request. It may
// inspect the request (URL, method, params) to decide, e.g. for signing.
// Returning nil means no defaults.
type HeaderProvider interface {
	Headers(req *Request) Headers
}

// HeaderProviderFunc adapts a function to HeaderProvider.
type HeaderProviderFunc func(req *Request) Headers

func (f HeaderProviderFunc) Headers(req *Request) Headers {
	return f(req)
}

// isNil reports whether v is nil or an interface holding a nil pointer,
// map, func or similar.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// SynthesizeHeaders merges caller headers with the provider's defaults.
// Defaults overwrite caller values for the same key. The caller map is not
// modified.
func SynthesizeHeaders(caller Headers, provider HeaderProvider, req *Request) Headers {
	result := caller.Clone()
	if isNil(provider) {
		return result
	}
	for k, v := range provider.Headers(req) {
		result[k] = v
	}
	return result
}
