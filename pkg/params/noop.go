package params

import (
	"fmt"
	"sort"
	"strconv"
)

// NoopSubstitutor is the substitutor used when a connection is configured
// without one. It performs no placeholder rewriting: SubstituteText
// requires no bindings, and SubstituteExtended expects the SQL text to
// already use $1, $2, ... placeholders with bindings keyed "1", "2", ...
// to pre-built ExtendedParam values, letting a caller that wants no
// placeholder DSL bypass Substitutor entirely.
type NoopSubstitutor struct{}

// SubstituteText implements Substitutor.
func (NoopSubstitutor) SubstituteText(sql string, bindings map[string]any) (string, error) {
	if len(bindings) != 0 {
		return "", fmt.Errorf("params: NoopSubstitutor does not support bindings, got %d", len(bindings))
	}
	return sql, nil
}

// SubstituteExtended implements Substitutor.
func (NoopSubstitutor) SubstituteExtended(sql string, bindings map[string]any) (string, []ExtendedParam, error) {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})

	values := make([]ExtendedParam, 0, len(keys))
	for i, k := range keys {
		if want := strconv.Itoa(i + 1); k != want {
			return "", nil, fmt.Errorf("params: NoopSubstitutor requires contiguous positional keys \"1\".."+
				"\"N\", missing %q", want)
		}
		ep, ok := bindings[k].(ExtendedParam)
		if !ok {
			return "", nil, fmt.Errorf("params: NoopSubstitutor requires ExtendedParam values, got %T for %q", bindings[k], k)
		}
		values = append(values, ep)
	}
	return sql, values, nil
}
