// Package validation provides input validation for sourceproof.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Package and module names: identifier, underscores allowed, starting with a
// letter, 1-128 chars.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,127}$`)

// ValidateIdentifier validates a package or module name.
func ValidateIdentifier(name string) error {
	if name == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(name) > 128 {
		return errors.New("identifier too long (max 128 chars)")
	}
	if !identifierRegex.MatchString(name) {
		return errors.New("invalid identifier: must be alphanumeric or underscore, starting with a letter")
	}
	return nil
}

// ValidateAddress validates a hex ledger address (0x-prefixed or bare, at
// most 64 hex chars; shorter forms are zero-padded by the parser).
func ValidateAddress(addr string) error {
	h := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if h == "" {
		return errors.New("address cannot be empty")
	}
	if len(h) > 64 {
		return errors.New("invalid address length: at most 64 hex chars")
	}
	for _, c := range h {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	return nil
}

// ValidateVersion validates a semantic version string as written in package
// manifests.
func ValidateVersion(v string) error {
	normalized := strings.TrimPrefix(v, "v")
	if normalized == "" {
		return errors.New("version cannot be empty")
	}

	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid semver version: must be in format X.Y.Z or X.Y.Z-prerelease")
	}

	// Require all of major.minor.patch.
	parts := strings.SplitN(normalized, "-", 2)
	if strings.Count(parts[0], ".") < 2 {
		return errors.New("invalid semver version: must be in format X.Y.Z (major.minor.patch)")
	}
	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v').
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}
