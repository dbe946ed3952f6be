package util

import (
	"fmt"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {name} placeholders with values from inputs. Names
// missing from inputs, and braces that do not form an identifier (JSON
// snippets, for example), are left untouched.
func Interpolate(text string, inputs map[string]any) string {
	if len(inputs) == 0 {
		return text
	}

	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := inputs[name]
		if !ok || v == nil {
			return m
		}
		return fmt.Sprint(v)
	})
}

// Placeholders returns the distinct placeholder names in text, in order of
// first appearance.
func Placeholders(text string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
