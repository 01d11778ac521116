package imposter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

// Proxy failure reasons.
const (
	ProxyTimedOut    = "timed out"
	ProxyUnreachable = "unreachable"
)

// ProxyError wraps an upstream forwarding failure.
type ProxyError struct {
	Reason string
	Err    error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy %s: %v", e.Reason, e.Err)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// hopByHopHeaders are never forwarded in either direction.
var hopByHopHeaders = map[string]bool{
	"host":                true,
	"connection":          true,
	"keep-alive":          true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
}

// ForwardResult is an upstream response read into memory.
type ForwardResult struct {
	Status  int
	Headers map[string]string
	Body    []byte
	Elapsed time.Duration
}

// ContentType returns the upstream content-type by case-folded lookup.
func (r *ForwardResult) ContentType() string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return ""
}

// Forwarder proxies unmatched requests to a configured upstream.
type Forwarder struct {
	transport http.RoundTripper
}

// NewForwarder creates a forwarder with a pooled transport.
func NewForwarder() *Forwarder {
	return &Forwarder{transport: cleanhttp.DefaultPooledTransport()}
}

// Forward sends the request to cfg.TargetURL, enforcing the configured
// timeout as a hard deadline. Timeouts and network failures come back as
// *ProxyError.
func (f *Forwarder) Forward(ctx context.Context, req *models.RequestContext, cfg *models.ProxyConfig, originalURL *url.URL) (*ForwardResult, error) {
	target := strings.TrimRight(cfg.TargetURL, "/") + originalURL.Path
	if originalURL.RawQuery != "" {
		target += "?" + originalURL.RawQuery
	}

	var body io.Reader
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		body = bytes.NewReader(req.RawBody)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	upstream, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &ProxyError{Reason: ProxyUnreachable, Err: err}
	}

	removed := make(map[string]bool, len(cfg.RemoveHeaders))
	for _, h := range cfg.RemoveHeaders {
		removed[strings.ToLower(h)] = true
	}
	for k, v := range req.Headers {
		lk := strings.ToLower(k)
		if hopByHopHeaders[lk] || removed[lk] {
			continue
		}
		upstream.Header.Set(k, v)
	}
	for k, v := range cfg.AddHeaders {
		upstream.Header.Set(k, v)
	}

	client := &http.Client{Transport: f.transport}
	if !cfg.ShouldFollowRedirects() {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	started := time.Now()
	resp, err := client.Do(upstream)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ProxyError{Reason: ProxyTimedOut, Err: err}
		}
		return nil, &ProxyError{Reason: ProxyUnreachable, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ProxyError{Reason: ProxyTimedOut, Err: err}
		}
		return nil, &ProxyError{Reason: ProxyUnreachable, Err: err}
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if hopByHopHeaders[strings.ToLower(k)] || len(v) == 0 {
			continue
		}
		headers[k] = v[0]
	}

	return &ForwardResult{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    respBody,
		Elapsed: time.Since(started),
	}, nil
}

// RecordAsStub converts a forwarded exchange into a stub pinning the request
// method and path, carrying the upstream response in sequential mode.
func RecordAsStub(req *models.RequestContext, res *ForwardResult) models.Stub {
	var body interface{}
	if strings.Contains(strings.ToLower(res.ContentType()), "application/json") {
		var decoded interface{}
		if err := json.Unmarshal(res.Body, &decoded); err == nil {
			body = decoded
		} else {
			body = string(res.Body)
		}
	} else {
		body = string(res.Body)
	}

	return models.Stub{
		ID: models.NewStubID(),
		Predicates: []models.Predicate{
			{Field: models.FieldMethod, Operator: models.OpEquals, Value: req.Method},
			{Field: models.FieldPath, Operator: models.OpEquals, Value: req.Path},
		},
		Responses: []models.ResponseConfig{{
			Status:  res.Status,
			Headers: res.Headers,
			Body:    body,
		}},
		ResponseMode: models.ModeSequential,
	}
}
