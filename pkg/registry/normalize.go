package registry

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var validExtension = regexp.MustCompile(`^[a-z0-9]+$`)

// Normalize trims surrounding whitespace, lowercases, and strips a single
// leading dot. Further dots are left for Validate to reject.
func Normalize(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimPrefix(normalized, ".")
}

// Validate checks a normalized extension. Checks run in a fixed order and the
// first failure is returned.
func Validate(ext string) error {
	if ext == "" {
		return newError(CodeEmptyExtension, ext)
	}
	if utf8.RuneCountInString(ext) > MaxExtensionLength {
		return newError(CodeExtensionTooLong, ext)
	}
	if containsPathChars(ext) {
		return newError(CodePathTraversal, ext)
	}
	if !validExtension.MatchString(ext) {
		return newError(CodeInvalidExtension, ext)
	}
	return nil
}

func containsPathChars(ext string) bool {
	return strings.ContainsAny(ext, `/\`) || strings.Contains(ext, "..")
}
