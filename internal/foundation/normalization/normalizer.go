// Package normalization maps user-supplied names onto typed enum values.
package normalization

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
)

// Normalizer provides type-safe string-to-enum normalization. Several names may map
// to the same value, which is how aliases are declared.
type Normalizer[T ~string] struct {
	field        string
	validValues  map[string]T
	defaultValue T
	validKeys    []string // canonical values, cached for error messages
}

// NewNormalizer creates a normalizer for field. The keys of values are normalized
// with Clean; the empty string always yields defaultValue.
func NewNormalizer[T ~string](field string, values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	seen := make(map[T]struct{}, len(values))
	validKeys := make([]string, 0, len(values))

	for k, v := range values {
		normalized[Clean(k)] = v
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			validKeys = append(validKeys, string(v))
		}
	}
	sort.Strings(validKeys)

	return &Normalizer[T]{
		field:        field,
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize converts raw to the enum type. Unknown names are a Validation error
// that lists the canonical values.
func (n *Normalizer[T]) Normalize(raw string) (T, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.validValues[cleaned]; ok {
		return value, nil
	}
	var zero T
	return zero, errors.ValidationError("unknown "+n.field).
		WithContext(n.field, raw).
		WithContext("allowed", n.ValidKeys()).
		Build()
}

// IsValid reports whether v is one of the canonical values.
func (n *Normalizer[T]) IsValid(v T) bool {
	for _, k := range n.validKeys {
		if k == string(v) {
			return true
		}
	}
	return false
}

// ValidKeys returns the canonical values, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	result := make([]string, len(n.validKeys))
	copy(result, n.validKeys)
	return result
}

// Clean provides standard string normalization.
func Clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
