package logfire

import (
	"fmt"

	"github.com/pydantic/logfire-go/lfattr"

	"github.com/pkg/errors"
)

// ConfigurationError reports an invalid Config. Configure fails fast:
// nothing is started by the time it returns one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("logfire configuration: %s: %s", e.Field, e.Reason)
}

func configErr(field string, format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	})
}

// The template and encoding taxonomies live with the encoder; aliased
// here so callers can errors.As against this package alone.
type (
	TemplateArgumentError = lfattr.TemplateArgumentError
	EncodingError         = lfattr.EncodingError
)
