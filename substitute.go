package stamp

import (
	"errors"
	"strings"

	"github.com/quintans/faults"
)

// ErrInvalidSubstitutions is returned when a substitution map would make replacement ambiguous.
var ErrInvalidSubstitutions = errors.New("invalid substitutions")

// Token is a literal placeholder and the value that replaces it.
type Token struct {
	Placeholder string
	Value       string
}

// Substitutions is an ordered substitution map. Tokens are applied in slice order.
type Substitutions []Token

// Apply replaces every occurrence of every placeholder in content.
func (s Substitutions) Apply(content string) string {
	for _, t := range s {
		content = replaceToken(content, t.Placeholder, t.Value)
	}
	return content
}

// replaceToken scans left to right and resumes right after each inserted value,
// so a value is never rescanned for the placeholder it replaced.
func replaceToken(content, placeholder, value string) string {
	if placeholder == "" {
		return content
	}
	i := strings.Index(content, placeholder)
	if i < 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	for i >= 0 {
		b.WriteString(content[:i])
		b.WriteString(value)
		content = content[i+len(placeholder):]
		i = strings.Index(content, placeholder)
	}
	b.WriteString(content)
	return b.String()
}

// Validate checks that applying the tokens in order is unambiguous.
func (s Substitutions) Validate() error {
	for i, t := range s {
		if t.Placeholder == "" {
			return faults.Errorf("token #%d has an empty placeholder: %w", i, ErrInvalidSubstitutions)
		}
		for j, other := range s {
			if i == j {
				continue
			}
			if t.Placeholder == other.Placeholder {
				return faults.Errorf("placeholder %q is declared twice: %w", t.Placeholder, ErrInvalidSubstitutions)
			}
			if strings.Contains(other.Placeholder, t.Placeholder) {
				return faults.Errorf("placeholder %q is part of %q: %w", t.Placeholder, other.Placeholder, ErrInvalidSubstitutions)
			}
			if strings.Contains(t.Value, other.Placeholder) {
				return faults.Errorf("value of %q contains placeholder %q: %w", t.Placeholder, other.Placeholder, ErrInvalidSubstitutions)
			}
		}
		if strings.Contains(t.Value, t.Placeholder) {
			return faults.Errorf("value of %q contains its own placeholder: %w", t.Placeholder, ErrInvalidSubstitutions)
		}
	}
	return nil
}
