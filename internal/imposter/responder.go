package imposter

import (
	"encoding/json"
	"math/rand"
	"strings"
	"sync"

	"github.com/eliraz-refael/go-imposters/internal/models"
	"github.com/eliraz-refael/go-imposters/internal/template"
)

// ResponseState holds the per-(imposter, stub) cursor used to cycle a stub's
// responses. Counters advance under a single lock so two requests sharing a
// stub never observe the same sequential index out of order.
type ResponseState struct {
	counters map[string]int
	mu       sync.Mutex
}

// NewResponseState creates an empty response state.
func NewResponseState() *ResponseState {
	return &ResponseState{counters: make(map[string]int)}
}

func stateKey(imposterID, stubID string) string {
	return imposterID + "/" + stubID
}

// NextIndex returns the response index to serve for a stub with count
// responses in the given mode, advancing the cursor where the mode calls
// for it.
func (s *ResponseState) NextIndex(imposterID, stubID string, count int, mode string) int {
	if count <= 0 {
		return 0
	}

	switch mode {
	case models.ModeRandom:
		return rand.Intn(count)
	case models.ModeRepeat:
		s.mu.Lock()
		defer s.mu.Unlock()
		key := stateKey(imposterID, stubID)
		counter := s.counters[key]
		s.counters[key] = counter + 1
		if counter >= count-1 {
			return count - 1
		}
		return counter
	default: // sequential
		s.mu.Lock()
		defer s.mu.Unlock()
		key := stateKey(imposterID, stubID)
		counter := s.counters[key]
		s.counters[key] = counter + 1
		return counter % count
	}
}

// Reset discards every counter belonging to the imposter.
func (s *ResponseState) Reset(imposterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := imposterID + "/"
	for key := range s.counters {
		if strings.HasPrefix(key, prefix) {
			delete(s.counters, key)
		}
	}
}

// BuiltResponse is a materialised HTTP response ready to be written.
type BuiltResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// BuildResponse materialises a response config against a request context.
// Configured header values and the body are templated; content-type defaults
// (application/json for non-string bodies, text/plain for strings) never
// override configured headers.
func BuildResponse(cfg *models.ResponseConfig, req *models.RequestContext, engine *template.Engine) (*BuiltResponse, error) {
	out := &BuiltResponse{
		Status:  cfg.StatusCode(),
		Headers: make(map[string]string, len(cfg.Headers)+1),
	}

	for k, v := range cfg.Headers {
		rendered := engine.RenderString(v, req)
		if s, ok := rendered.(string); ok {
			out.Headers[k] = s
		} else {
			out.Headers[k] = stringifyHeader(rendered)
		}
	}

	if cfg.Body == nil {
		return out, nil
	}

	rendered := engine.Render(cfg.Body, req)
	if s, ok := rendered.(string); ok {
		out.Body = []byte(s)
		setDefaultContentType(out.Headers, "text/plain")
	} else {
		encoded, err := json.Marshal(rendered)
		if err != nil {
			return nil, err
		}
		out.Body = encoded
		setDefaultContentType(out.Headers, "application/json")
	}
	return out, nil
}

// setDefaultContentType sets content-type only when the config did not.
func setDefaultContentType(headers map[string]string, value string) {
	for k := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return
		}
	}
	headers["Content-Type"] = value
}

func stringifyHeader(v interface{}) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
