// Package webservice is a thin request layer over an HTTP transport.
//
// A Provider resolves paths against a mutable base address, merges default
// headers from a HeaderProvider into each request and hands it to a
// Service. The Service encodes the request (query string for GET, JSON body
// otherwise, or a multipart body for uploads), sends it through the
// transport and normalizes the outcome into a Result. Every request yields
// a Call that completes exactly once, even when encoding fails.
//
// Results carrying a server-declared error code are offered to an
// InterruptionHook first, which may suppress them and reissue the request.
//
// Basic usage:
//
//	svc := webservice.NewService(http.NewClient())
//	p := webservice.NewProvider(svc, webservice.WithBaseAddress("https://api.example.com"))
//	res := p.Request(ctx, webservice.MethodGet, "users", webservice.EncodingJSON,
//		webservice.WithParams(webservice.NewParams("page", 2))).Result()
//	if res.Err != nil {
//		return res.Err
//	}
//	name := res.Data.Get("0.name").String()
package webservice
