package lfattr

import (
	"strings"

	"github.com/pkg/errors"
)

type chunk struct {
	literal string
	name    string // placeholder name, empty for literals
	eq      bool   // {name=} renders "name=<value>"
}

// Template is a parsed message template. Placeholders are {name} or
// {name=}; doubled braces are literals.
type Template struct {
	raw    string
	chunks []chunk
}

func (t *Template) String() string { return t.raw }

// Names returns the placeholder names in first-use order, without
// duplicates.
func (t *Template) Names() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, c := range t.chunks {
		if c.name == "" {
			continue
		}
		if _, ok := seen[c.name]; ok {
			continue
		}
		seen[c.name] = struct{}{}
		names = append(names, c.name)
	}
	return names
}

// ParseTemplate parses a message template. Malformed templates are
// usage bugs and fail with a TemplateArgumentError.
func ParseTemplate(raw string) (*Template, error) {
	t := &Template{raw: raw}
	var lit strings.Builder
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '{':
			if i+1 < len(runes) && runes[i+1] == '{' {
				lit.WriteRune('{')
				i++
				continue
			}
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '}' {
					end = j
					break
				}
				if runes[j] == '{' {
					return nil, errors.WithStack(&TemplateArgumentError{
						Reason: "template has a nested '{' inside a placeholder: " + raw,
					})
				}
			}
			if end < 0 {
				return nil, errors.WithStack(&TemplateArgumentError{
					Reason: "template has an unterminated '{': " + raw,
				})
			}
			name := string(runes[i+1 : end])
			eq := strings.HasSuffix(name, "=")
			if eq {
				name = strings.TrimSuffix(name, "=")
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, errors.WithStack(&TemplateArgumentError{
					Reason: "template has an empty placeholder: " + raw,
				})
			}
			if lit.Len() != 0 {
				t.chunks = append(t.chunks, chunk{literal: lit.String()})
				lit.Reset()
			}
			t.chunks = append(t.chunks, chunk{name: name, eq: eq})
			i = end
		case '}':
			if i+1 < len(runes) && runes[i+1] == '}' {
				lit.WriteRune('}')
				i++
				continue
			}
			return nil, errors.WithStack(&TemplateArgumentError{
				Reason: "template has a single '}': " + raw,
			})
		default:
			lit.WriteRune(r)
		}
	}
	if lit.Len() != 0 {
		t.chunks = append(t.chunks, chunk{literal: lit.String()})
	}
	return t, nil
}

// Render fills the template. lookup must return the display form of a
// placeholder's value; a false return fails with a
// TemplateArgumentError naming the placeholder.
func (t *Template) Render(lookup func(name string) (string, bool)) (string, error) {
	var sb strings.Builder
	for _, c := range t.chunks {
		if c.name == "" {
			sb.WriteString(c.literal)
			continue
		}
		v, ok := lookup(c.name)
		if !ok {
			return "", errors.WithStack(&TemplateArgumentError{Name: c.name})
		}
		if c.eq {
			sb.WriteString(c.name)
			sb.WriteString("=")
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}
