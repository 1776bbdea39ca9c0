package tools

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// ValidateParams checks the supplied parameters against the capability's
// declared spec and returns every violation found, not just the first:
// missing required parameters, unknown parameter names, structural type
// mismatches, enum membership, and numeric bounds. An empty slice means
// the parameters are valid.
//
// Violations are reported in deterministic (sorted) parameter order so a
// caller can fix all issues in one round-trip.
func ValidateParams(spec CapabilitySpec, params map[string]any) []string {
	var errs []string

	// Required parameters first.
	for _, name := range sortedKeys(spec.Parameters) {
		ps := spec.Parameters[name]
		if ps.Required {
			if _, ok := params[name]; !ok {
				errs = append(errs, fmt.Sprintf("Missing required parameter: %s", name))
			}
		}
	}

	// Then the supplied values.
	for _, name := range sortedKeys(params) {
		value := params[name]
		ps, declared := spec.Parameters[name]
		if !declared {
			errs = append(errs, fmt.Sprintf("Unknown parameter: %s", name))
			continue
		}

		if msg := checkType(name, ps.Type, value); msg != "" {
			errs = append(errs, msg)
		}

		if len(ps.Enum) > 0 && !valueInEnum(value, ps.Enum) {
			values := make([]string, len(ps.Enum))
			for i, v := range ps.Enum {
				values[i] = fmt.Sprint(v)
			}
			errs = append(errs, fmt.Sprintf("Parameter %s must be one of: %s", name, strings.Join(values, ", ")))
		}

		// Bounds apply only to numeric values; a non-numeric value has
		// already been reported as a type violation above.
		if num, ok := toFloat64(value); ok {
			if ps.Minimum != nil && num < *ps.Minimum {
				errs = append(errs, fmt.Sprintf("Parameter %s must be at least %s", name, trimFloat(*ps.Minimum)))
			}
			if ps.Maximum != nil && num > *ps.Maximum {
				errs = append(errs, fmt.Sprintf("Parameter %s must be at most %s", name, trimFloat(*ps.Maximum)))
			}
		}
	}

	return errs
}

// ApplyDefaults returns a copy of params with declared defaults filled in
// for absent optional parameters. The input map is not modified.
func ApplyDefaults(spec CapabilitySpec, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	for name, ps := range spec.Parameters {
		if ps.Default == nil {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = ps.Default
		}
	}
	return out
}

func checkType(name string, t ParamType, value any) string {
	switch t {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("Parameter %s should be a string", name)
		}
	case TypeNumber:
		if _, ok := toFloat64(value); !ok {
			return fmt.Sprintf("Parameter %s should be a number", name)
		}
	case TypeInteger:
		num, ok := toFloat64(value)
		if !ok || num != math.Trunc(num) {
			return fmt.Sprintf("Parameter %s should be an integer", name)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("Parameter %s should be a boolean", name)
		}
	case TypeArray:
		if !isArray(value) {
			return fmt.Sprintf("Parameter %s should be an array", name)
		}
	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("Parameter %s should be an object", name)
		}
	}
	return ""
}

// toFloat64 coerces the numeric types that reach us from JSON decoding and
// from Go callers into a float64. Booleans are explicitly not numbers.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func valueInEnum(value any, enum []any) bool {
	vNum, vIsNum := toFloat64(value)
	for _, e := range enum {
		if vIsNum {
			if eNum, ok := toFloat64(e); ok && eNum == vNum {
				return true
			}
			continue
		}
		if reflect.DeepEqual(value, e) {
			return true
		}
	}
	return false
}

func isArray(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// trimFloat renders a bound without a trailing ".0" for integral values.
func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
