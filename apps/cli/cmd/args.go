package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// parseParams turns key=value and key:=json arguments into ordered params.
// A nil result means no params were given.
func parseParams(args []string) (*webservice.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := webservice.NewParams()
	for _, arg := range args {
		if key, raw, ok := strings.Cut(arg, ":="); ok && !strings.Contains(key, "=") {
			if key == "" {
				return nil, fmt.Errorf("invalid param %q: empty key", arg)
			}
			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return nil, fmt.Errorf("invalid param %q: %w", arg, err)
			}
			params.Set(key, value)
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value or key:=json", arg)
		}
		params.Set(key, value)
	}
	return params, nil
}

// parseHeaders turns "Name: value" arguments into headers.
func parseHeaders(args []string) (webservice.Headers, error) {
	if len(args) == 0 {
		return nil, nil
	}
	h := make(webservice.Headers, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected Name: value", arg)
		}
		h[name] = strings.TrimSpace(value)
	}
	return h, nil
}

func parseCachePolicy(s string) (*webservice.CachePolicy, error) {
	var c webservice.CachePolicy
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "protocol":
		c = webservice.CacheUseProtocol
	case "reload", "no-cache":
		c = webservice.CacheReloadIgnoringLocal
	case "return-else-load", "max-stale":
		c = webservice.CacheReturnElseLoad
	case "return-dont-load", "only-if-cached":
		c = webservice.CacheReturnDontLoad
	default:
		return nil, fmt.Errorf("unsupported cache policy: %q", s)
	}
	return &c, nil
}
