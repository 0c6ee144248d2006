package vetting

import (
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeEIN canonicalizes an employer identification number to nine
// digits, accepting the common "NN-NNNNNNN" form. It fails fast with
// ErrInvalidArgument before any I/O happens.
func NormalizeEIN(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if len(cleaned) != 9 {
		return "", eris.Wrapf(ErrInvalidArgument, "ein %q must have 9 digits", raw)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", eris.Wrapf(ErrInvalidArgument, "ein %q contains non-digit characters", raw)
		}
	}
	return cleaned, nil
}
