package dataanalysis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// condPattern matches one comparison: column, operator, literal. The
// two-character operators must come first so ">=" is not read as ">",
// and the literal must not open with an operator character so "a >>> 1"
// is rejected instead of read as `a > ">> 1"`.
var condPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=|>=|<=|>|<)\s*([^=<>].*)$`)

// condition is a single column comparison of a filter query.
type condition struct {
	column string
	op     string
	value  string
}

// parseFilter parses a filter query of "column op value" comparisons
// joined by "and", e.g. `age > 30 and city == 'Berlin'`.
func parseFilter(expr string) ([]condition, error) {
	parts := strings.Split(expr, " and ")
	conds := make([]condition, 0, len(parts))
	for _, part := range parts {
		m := condPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("unparsable condition %q", strings.TrimSpace(part))
		}
		conds = append(conds, condition{
			column: m[1],
			op:     m[2],
			value:  unquote(strings.TrimSpace(m[3])),
		})
	}
	return conds, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// filter returns the rows satisfying every condition. Conditions naming
// unknown columns make the whole filter invalid.
func (f *frame) filter(conds []condition) (*frame, error) {
	idx := make([]int, len(conds))
	for i, c := range conds {
		col := f.colIndex(c.column)
		if col < 0 {
			return nil, fmt.Errorf("unknown column %q", c.column)
		}
		idx[i] = col
	}

	out := &frame{columns: f.columns}
	for _, row := range f.rows {
		keep := true
		for i, c := range conds {
			if !compareCell(row[idx[i]], c.op, c.value) {
				keep = false
				break
			}
		}
		if keep {
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}

// compareCell evaluates one comparison. When both sides parse as numbers
// the comparison is numeric, otherwise lexicographic.
func compareCell(cell, op, value string) bool {
	a, errA := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if errA == nil && errB == nil {
		switch op {
		case "==":
			return a == b
		case "!=":
			return a != b
		case ">":
			return a > b
		case ">=":
			return a >= b
		case "<":
			return a < b
		case "<=":
			return a <= b
		}
		return false
	}

	switch op {
	case "==":
		return cell == value
	case "!=":
		return cell != value
	case ">":
		return cell > value
	case ">=":
		return cell >= value
	case "<":
		return cell < value
	case "<=":
		return cell <= value
	}
	return false
}
