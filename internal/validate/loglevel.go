// SPDX-License-Identifier: MIT

package validate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevels lists the level names accepted in configuration. zerolog also
// knows fatal, panic and disabled; those are not user-selectable.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ParseLogLevel maps a case-insensitive level name onto a zerolog level.
func ParseLogLevel(s string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(LogLevels, name) {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return zerolog.ParseLevel(name)
}

// LogLevel validates a log level name.
func (v *Validator) LogLevel(field, value string) {
	if _, err := ParseLogLevel(value); err != nil {
		v.AddError(field, fmt.Sprintf("invalid log level (must be one of: %s)", strings.Join(LogLevels, ", ")), value)
	}
}
