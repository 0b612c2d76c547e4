package metrics

import (
	"sort"
	"strings"
)

// Labels is an unordered set of label key/value pairs. Two Labels with the
// same pairs identify the same series regardless of insertion order.
type Labels map[string]string

// Keys returns the label keys in sorted order.
func (l Labels) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of l. A nil or empty set clones to nil.
func (l Labels) Clone() Labels {
	if len(l) == 0 {
		return nil
	}
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// key returns the canonical series identity: sorted k=v pairs.
func (l Labels) key() string {
	if len(l) == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range l.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(l[k])
	}
	return b.String()
}

// String renders l as {k=v,...} in key order.
func (l Labels) String() string {
	return "{" + l.key() + "}"
}
