package lfattr

import "fmt"

// TemplateArgumentError is a usage bug: a template placeholder
// references a name that no argument supplies, or the template itself
// cannot be parsed. It is surfaced immediately at the call site and is
// never recovered.
type TemplateArgumentError struct {
	Name   string // missing placeholder name, empty when the template is malformed
	Reason string
}

func (e *TemplateArgumentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no argument supplied for template placeholder {%s}", e.Name)
	}
	return e.Reason
}

// EncodingError marks an argument that could not be encoded to a wire
// attribute. It is always recovered: the offending value is stored as
// its display string and the record is still emitted.
type EncodingError struct {
	Key string
	Err error
}

func (e *EncodingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot encode attribute '%s'", e.Key)
	}
	return fmt.Sprintf("cannot encode attribute '%s': %s", e.Key, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
