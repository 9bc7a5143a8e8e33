package metal

import (
	"fmt"
	"maps"
	"slices"
)

// languageVersion converts "major.minor" to an MTLLanguageVersion value.
// The empty string selects the compiler default and returns 0.
func languageVersion(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	var major, minor uint32
	if n, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil || n != 2 || major == 0 || major > 0xffff || minor > 0xffff {
		return 0, fmt.Errorf("metal: invalid language version %q", s)
	}
	if fmt.Sprintf("%d.%d", major, minor) != s {
		return 0, fmt.Errorf("metal: invalid language version %q", s)
	}
	return major<<16 | minor, nil
}

// macroPairs flattens macros into name, value pairs ordered by name.
func macroPairs(macros map[string]string) []string {
	names := slices.Sorted(maps.Keys(macros))
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, macros[name])
	}
	return pairs
}

// errorDomain is the CompileError domain for failures detected by the
// driver rather than reported by Metal.
const errorDomain = "cmt.metal"

// CompileError codes in errorDomain.
const (
	codeOptions = iota + 1
	codeForeignFunction
	codeReflection
)
