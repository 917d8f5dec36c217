// Package config handles YAML config file loading for ctgrun.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references with values from
// the process environment.
//
// An unset variable without a default expands to the empty string, so a
// missing tool path fails at the stage that needs it rather than at load.
func ExpandEnv(input string) string {
	return expandWith(input, os.LookupEnv)
}

// expandWith expands references using lookup. The default applies when the
// variable is unset or empty.
func expandWith(input string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := lookup(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
