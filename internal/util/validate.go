package util

import (
	"fmt"
	"regexp"
)

// validNameChars matches only alphanumeric characters, hyphens, and periods.
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)

// ValidateVMName checks that a VM name is usable as a hostname label
// sequence on every supported provider:
//   - At least 2 characters, at most 63 per label
//   - Only alphanumeric characters (a-z, A-Z, 0-9), hyphens (-), and periods (.)
//   - First character must be alphanumeric
//   - Last character must not be a hyphen or period
func ValidateVMName(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("must be at least 2 characters, got %d", len(name))
	}

	if !validNameChars.MatchString(name) {
		return fmt.Errorf("%q contains invalid characters (only a-z, A-Z, 0-9, hyphens, and periods are allowed)", name)
	}

	first := name[0]
	if !isAlphanumeric(first) {
		return fmt.Errorf("must start with an alphanumeric character, got %q", string(first))
	}

	last := name[len(name)-1]
	if last == '-' || last == '.' {
		return fmt.Errorf("must not end with a hyphen or period, got %q", string(last))
	}

	label := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			if label == 0 {
				return fmt.Errorf("%q contains an empty label", name)
			}
			label = 0
			continue
		}
		label++
		if label > 63 {
			return fmt.Errorf("%q has a label longer than 63 characters", name)
		}
	}

	return nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
