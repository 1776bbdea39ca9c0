package tools

// StringParam returns the string value of params[name], or "" when the
// parameter is absent or not a string.
func StringParam(params map[string]any, name string) string {
	s, _ := params[name].(string)
	return s
}

// IntParam returns the integer value of params[name], coercing the
// float64s produced by JSON decoding. fallback is returned when the
// parameter is absent or not numeric.
func IntParam(params map[string]any, name string, fallback int) int {
	v, ok := params[name]
	if !ok {
		return fallback
	}
	num, ok := toFloat64(v)
	if !ok {
		return fallback
	}
	return int(num)
}
