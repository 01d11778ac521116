package models

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// RequestContext is the simplified view of an incoming request used for
// matching and templating. Header keys are lowercased; the method is
// uppercased. Body holds the JSON-decoded value when the request carried
// application/json, the raw text otherwise, and nil when there was no body.
type RequestContext struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
	Body    interface{}       `json:"body,omitempty"`

	// RawBody preserves the undecoded bytes for proxy forwarding.
	RawBody []byte `json:"-"`
}

// NewRequestContext extracts a RequestContext from an http.Request,
// consuming its body.
func NewRequestContext(r *http.Request) (*RequestContext, error) {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	ctx := &RequestContext{
		Method:  strings.ToUpper(r.Method),
		Path:    r.URL.Path,
		Headers: headers,
		Query:   query,
	}

	if r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		ctx.RawBody = raw
		if len(raw) > 0 {
			if strings.Contains(strings.ToLower(headers["content-type"]), "application/json") {
				var decoded interface{}
				if err := json.Unmarshal(raw, &decoded); err == nil {
					ctx.Body = decoded
				} else {
					ctx.Body = string(raw)
				}
			} else {
				ctx.Body = string(raw)
			}
		}
	}

	return ctx, nil
}

// BodyString returns the string form of the body: the body itself when it is
// a string, its JSON encoding otherwise, and "" when absent.
func (c *RequestContext) BodyString() string {
	switch b := c.Body.(type) {
	case nil:
		return ""
	case string:
		return b
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// Header looks up a header by case-folded key.
func (c *RequestContext) Header(key string) (string, bool) {
	v, ok := c.Headers[strings.ToLower(key)]
	return v, ok
}
