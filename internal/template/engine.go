// Package template implements the two substitution forms applied to response
// headers and bodies: {{dotted.key}} literal replacement over a flattened
// request context, and ${expr} expression evaluation over {request}.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

// MaxOutputBytes caps the total rendered output of one string.
const MaxOutputBytes = 1 << 20

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Engine renders templated values against a request context.
type Engine struct{}

// NewEngine creates a template engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Render applies both substitution forms to a value, recursing through
// objects and arrays. Primitives other than strings pass through unchanged.
func (e *Engine) Render(v interface{}, req *models.RequestContext) interface{} {
	switch val := v.(type) {
	case string:
		return e.RenderString(val, req)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = e.Render(item, req)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = e.Render(item, req)
		}
		return out
	default:
		return v
	}
}

// RenderString applies ${expr} evaluation and then {{key}} replacement. When
// the whole input is a single ${…} the raw evaluation result is returned,
// preserving its type; otherwise the result is a string.
func (e *Engine) RenderString(s string, req *models.RequestContext) interface{} {
	rendered := e.evalExpressions(s, req)

	str, isStr := rendered.(string)
	if !isStr {
		return rendered
	}

	flat := Flatten(req)
	str = placeholderPattern.ReplaceAllStringFunc(str, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := flat[key]; ok {
			return v
		}
		return m // unknown keys stay verbatim
	})

	if len(str) > MaxOutputBytes {
		str = str[:MaxOutputBytes]
	}
	return str
}

// evalExpressions replaces every ${expr} in s. Matching braces are found by
// depth counting. A failing evaluation leaves the raw ${…} substring in
// place. When the entire input is one expression the raw result is returned.
func (e *Engine) evalExpressions(s string, req *models.RequestContext) interface{} {
	start := strings.Index(s, "${")
	if start < 0 {
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		open := strings.Index(s[i:], "${")
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		open += i
		b.WriteString(s[i:open])

		end, ok := matchBrace(s, open+2)
		if !ok {
			b.WriteString(s[open:])
			break
		}

		expr := s[open+2 : end]
		result, err := e.evaluate(expr, req)
		if err != nil {
			b.WriteString(s[open : end+1])
		} else if open == 0 && end == len(s)-1 && start == 0 {
			// Single whole-string expression: preserve the result type.
			if str, isStr := result.(string); isStr && len(str) > MaxOutputBytes {
				return str[:MaxOutputBytes]
			}
			return result
		} else {
			b.WriteString(joinValue(result))
		}
		i = end + 1

		if b.Len() > MaxOutputBytes {
			break
		}
	}

	out := b.String()
	if len(out) > MaxOutputBytes {
		out = out[:MaxOutputBytes]
	}
	return out
}

// matchBrace finds the index of the brace closing the expression that starts
// at from (the character after "${").
func matchBrace(s string, from int) (int, bool) {
	depth := 1
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// evaluate runs one expression in a fresh VM with the request bound as a
// global.
func (e *Engine) evaluate(expr string, req *models.RequestContext) (interface{}, error) {
	vm := goja.New()
	new(require.Registry).Enable(vm)
	console.Enable(vm)

	if err := vm.Set("request", requestObject(req)); err != nil {
		return nil, err
	}

	value, err := vm.RunString("(" + expr + "\n)")
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(value) {
		return nil, fmt.Errorf("expression %q evaluated to undefined", expr)
	}
	return value.Export(), nil
}

// joinValue renders an expression result for concatenation into the
// surrounding string: strings as-is, everything else JSON-encoded.
func joinValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// requestObject builds the {request} evaluation scope.
func requestObject(req *models.RequestContext) map[string]interface{} {
	headers := make(map[string]interface{}, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}
	query := make(map[string]interface{}, len(req.Query))
	for k, v := range req.Query {
		query[k] = v
	}
	return map[string]interface{}{
		"method":  req.Method,
		"path":    req.Path,
		"headers": headers,
		"query":   query,
		"body":    req.Body,
	}
}

// Flatten exposes the request context as dotted string keys for {{key}}
// lookup. Header keys are lowercased by extraction; nested body values get
// dotted paths; arrays appear both JSON-stringified at the array key and
// indexed by ordinal.
func Flatten(req *models.RequestContext) map[string]string {
	flat := make(map[string]string)
	flat["request.method"] = req.Method
	flat["request.path"] = req.Path
	for k, v := range req.Headers {
		flat["request.headers."+k] = v
	}
	for k, v := range req.Query {
		flat["request.query."+k] = v
	}
	if req.Body != nil {
		flattenValue(flat, "request.body", req.Body)
	}
	return flat
}

func flattenValue(flat map[string]string, prefix string, v interface{}) {
	switch val := v.(type) {
	case string:
		flat[prefix] = val
	case map[string]interface{}:
		flat[prefix] = stringify(val)
		for k, item := range val {
			flattenValue(flat, prefix+"."+k, item)
		}
	case []interface{}:
		flat[prefix] = stringify(val)
		for i, item := range val {
			flattenValue(flat, prefix+"."+strconv.Itoa(i), item)
		}
	case float64:
		flat[prefix] = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		flat[prefix] = strconv.FormatBool(val)
	case nil:
		flat[prefix] = "null"
	default:
		flat[prefix] = fmt.Sprintf("%v", val)
	}
}

func stringify(v interface{}) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
