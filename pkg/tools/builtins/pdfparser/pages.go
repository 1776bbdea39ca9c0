package pdfparser

import (
	"sort"
	"strconv"
	"strings"
)

// ParsePageRange expands a page-range expression like "1-5" or "1,3,5"
// into a sorted, deduplicated list of page numbers, capped at maxPages.
// Malformed parts are skipped rather than rejected; an empty expression
// yields nil (meaning: all pages up to the cap).
func ParsePageRange(expr string, maxPages int) []int {
	if expr == "" {
		return nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)

		if start, end, ok := strings.Cut(part, "-"); ok {
			lo, err1 := strconv.Atoi(strings.TrimSpace(start))
			hi, err2 := strconv.Atoi(strings.TrimSpace(end))
			if err1 != nil || err2 != nil {
				continue
			}
			if hi < lo {
				lo, hi = hi, lo
			}
			for p := lo; p <= hi; p++ {
				seen[p] = true
			}
			continue
		}

		p, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		seen[p] = true
	}

	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages
}
