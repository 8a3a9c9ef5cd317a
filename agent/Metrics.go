package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Metrics holds the scalar diagnostics reported by an update
type Metrics map[string]float64

// Merge returns a new Metrics holding the entries of both m and other.
// An error is returned if the two share a key.
func (m Metrics) Merge(other Metrics) (Metrics, error) {
	merged := make(Metrics, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		if _, ok := merged[k]; ok {
			return nil, fmt.Errorf("merge: duplicate metric %q", k)
		}
		merged[k] = v
	}
	return merged, nil
}

// Keys returns the metric names in sorted order
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Metrics) String() string {
	var b strings.Builder
	b.WriteString("Metrics |")
	for _, k := range m.Keys() {
		fmt.Fprintf(&b, " %v: %.4f |", k, m[k])
	}
	return b.String()
}
