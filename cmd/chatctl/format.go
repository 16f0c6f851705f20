package main

import (
	"fmt"
	"slices"
	"strings"
)

func formatDims(dims map[int]int) string {
	keys := make([]int, 0, len(dims))
	for d := range dims {
		keys = append(keys, d)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, d := range keys {
		if len(keys) == 1 {
			parts[i] = fmt.Sprint(d)
			continue
		}
		parts[i] = fmt.Sprintf("%d (%d vectors)", d, dims[d])
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
