package safety

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPath   = errors.New("invalid asset path")
	ErrProtectedPath = errors.New("protected asset path")
	ErrOutsideRoot   = errors.New("outside requested root")
)

// Validator enforces the safety contract for every delete dispatched to
// the remote catalog: the target must be a well-formed asset path, must
// not sit under a protected prefix, and must lie within the subtree the
// operator asked to purge.
type Validator struct {
	Root           string
	ProtectedPaths []string
}

// NewValidator creates a validator confining deletes to root. protected
// lists prefixes that must never be deleted (e.g. shared datasets
// mounted under the root).
func NewValidator(root string, protected []string) *Validator {
	return &Validator{
		Root:           NormalizePath(root),
		ProtectedPaths: normalizeAll(protected),
	}
}

// ValidateDeleteTarget is the single source of truth for delete
// authorization. Returns a typed error on violation.
func (v *Validator) ValidateDeleteTarget(path string) error {
	p := NormalizePath(path)
	if p == "" {
		return ErrInvalidPath
	}
	if hasDotDotSegment(path) {
		return ErrInvalidPath
	}
	if IsProtected(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}
	if !WithinRoot(p, v.Root) {
		return ErrOutsideRoot
	}
	return nil
}

// NormalizePath trims whitespace, collapses duplicate separators and
// strips leading/trailing separators. Asset paths are logical
// '/'-delimited identifiers, never filesystem paths.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	cleaned := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		cleaned = append(cleaned, part)
	}
	return strings.Join(cleaned, "/")
}

// WithinRoot reports whether path equals root or sits beneath it.
func WithinRoot(path, root string) bool {
	if root == "" {
		return false
	}
	return path == root || strings.HasPrefix(path, root+"/")
}

// IsProtected reports whether path equals or sits beneath any protected
// prefix.
func IsProtected(path string, protected []string) bool {
	for _, p := range protected {
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func hasDotDotSegment(raw string) bool {
	for _, part := range strings.Split(raw, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if n := NormalizePath(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
