package imposter

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

// Match returns the earliest stub (insertion order) whose predicates all
// evaluate true on the request, or nil when none matches.
func Match(stubs []models.Stub, req *models.RequestContext) *models.Stub {
	for i := range stubs {
		if MatchesStub(&stubs[i], req) {
			return &stubs[i]
		}
	}
	return nil
}

// MatchesStub evaluates a stub's predicate list, AND-combined. An empty list
// is a catch-all.
func MatchesStub(stub *models.Stub, req *models.RequestContext) bool {
	for i := range stub.Predicates {
		if !EvaluatePredicate(&stub.Predicates[i], req) {
			return false
		}
	}
	return true
}

// EvaluatePredicate evaluates one (field, operator, value) test. It never
// panics; malformed values and invalid regexes evaluate false, except where
// the exists operator is defined to be lenient.
func EvaluatePredicate(pred *models.Predicate, req *models.RequestContext) bool {
	caseSensitive := pred.IsCaseSensitive()

	switch pred.Field {
	case models.FieldMethod:
		return matchString(req.Method, pred.Operator, pred.Value, caseSensitive)
	case models.FieldPath:
		return matchString(req.Path, pred.Operator, pred.Value, caseSensitive)
	case models.FieldHeaders:
		return matchKeyValues(req.Headers, pred.Operator, pred.Value, caseSensitive)
	case models.FieldQuery:
		return matchKeyValues(req.Query, pred.Operator, pred.Value, caseSensitive)
	case models.FieldBody:
		return matchBody(req.Body, pred.Operator, pred.Value, caseSensitive)
	}
	return false
}

// matchString applies a string operator to a scalar request field.
func matchString(actual, operator string, expected interface{}, caseSensitive bool) bool {
	if operator == models.OpExists {
		return true
	}
	return compareStrings(actual, stringForm(expected), operator, caseSensitive)
}

// compareStrings applies equals/contains/startsWith/matches to two strings.
func compareStrings(actual, expected, operator string, caseSensitive bool) bool {
	if operator == models.OpMatches {
		pattern := expected
		if !caseSensitive {
			// The stored value is used verbatim; metacharacters are not
			// escaped, only the i flag is added.
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	}

	if !caseSensitive {
		actual = strings.ToLower(actual)
		expected = strings.ToLower(expected)
	}

	switch operator {
	case models.OpEquals:
		return actual == expected
	case models.OpContains:
		return strings.Contains(actual, expected)
	case models.OpStartsWith:
		return strings.HasPrefix(actual, expected)
	}
	return false
}

// matchKeyValues applies a predicate to a headers or query map. The expected
// value must be an object; each of its entries must be a string and match the
// actual value found by case-folded key lookup.
func matchKeyValues(actual map[string]string, operator string, expected interface{}, caseSensitive bool) bool {
	expectedMap, ok := expected.(map[string]interface{})
	if !ok {
		// A non-object value with exists is treated as satisfied.
		return operator == models.OpExists
	}

	if operator == models.OpExists {
		for key := range expectedMap {
			if _, found := lookupFold(actual, key); !found {
				return false
			}
		}
		return true
	}

	for key, want := range expectedMap {
		got, found := lookupFold(actual, key)
		if !found {
			return false
		}
		wantStr, isStr := want.(string)
		if !isStr {
			return false
		}
		if !compareStrings(got, wantStr, operator, caseSensitive) {
			return false
		}
	}
	return true
}

// lookupFold finds a map value by case-insensitive key comparison.
func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// matchBody applies a predicate to the decoded request body.
func matchBody(actual interface{}, operator string, expected interface{}, caseSensitive bool) bool {
	if operator == models.OpExists {
		return actual != nil
	}

	if operator == models.OpEquals {
		return subsetEqual(expected, actual)
	}

	// contains/startsWith/matches operate on string forms.
	return compareStrings(stringForm(actual), stringForm(expected), operator, caseSensitive)
}

// subsetEqual reports whether expected is a deep subset of actual: the same
// primitives at the same key paths, with array elements compared pairwise and
// expected length ≤ actual length.
func subsetEqual(expected, actual interface{}) bool {
	switch want := expected.(type) {
	case map[string]interface{}:
		got, ok := actual.(map[string]interface{})
		if !ok {
			return false
		}
		for k, v := range want {
			av, present := got[k]
			if !present || !subsetEqual(v, av) {
				return false
			}
		}
		return true
	case []interface{}:
		got, ok := actual.([]interface{})
		if !ok || len(want) > len(got) {
			return false
		}
		for i := range want {
			if !subsetEqual(want[i], got[i]) {
				return false
			}
		}
		return true
	default:
		return expected == actual
	}
}

// stringForm renders a value as a string, JSON-encoding non-strings.
func stringForm(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
