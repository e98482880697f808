/*
Package lfattr turns message templates and free-form named arguments into
display strings and flat, typed attribute lists. Attribute values on a
finished record are restricted to string, int64, float64, and bool;
everything else is flattened to a tagged JSON string stored under a
sibling <name>__JSON key.
*/
package lfattr

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.opentelemetry.io/otel/attribute"
)

// ReservedAttribute is a key the pipeline itself writes. Reserved keys
// occupy fixed leading positions in every record's attribute list and
// user arguments may not collide with them.
type ReservedAttribute struct {
	properties Make
	key        attribute.Key
	namespace  string
	version    string
	semver     *semver.Version
}

// Make describes a reserved attribute to be registered. The Namespace
// can embed a semver version, eg "logfire-1.0.0". If no version is
// provided, 0.0.0 is assumed.
type Make struct {
	Key         string // the attribute name
	Description string // the attribute description
	Namespace   string // versioned namespace, name-0.0.0 if no version provided
}

var (
	registryLock    sync.RWMutex
	registeredNames = make(map[string]*ReservedAttribute)
)

var namespaceVersionRE = regexp.MustCompile(`^(.+)-([0-9].+)$`)

// Register registers the reserved attribute, panicking on any conflict.
// Registration conflicts are always program bugs.
func (s Make) Register() *ReservedAttribute {
	r, err := s.TryRegister()
	if err != nil {
		panic(err)
	}
	return r
}

// TryRegister is Register except that it returns errors instead of
// panicking.
func (s Make) TryRegister() (*ReservedAttribute, error) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if prior, ok := registeredNames[s.Key]; ok {
		if prior.properties == s {
			return prior, nil
		}
		return nil, fmt.Errorf("conflicting registration for reserved attribute '%s'", s.Key)
	}

	namespace := s.Namespace
	version := "0.0.0"
	if m := namespaceVersionRE.FindStringSubmatch(namespace); m != nil {
		namespace = m[1]
		version = m[2]
	}
	sver, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("semver '%s' is not valid: %w", version, err)
	}

	ra := &ReservedAttribute{
		properties: s,
		key:        attribute.Key(s.Key),
		namespace:  namespace,
		version:    version,
		semver:     sver,
	}
	registeredNames[s.Key] = ra
	return ra, nil
}

// IsReserved reports whether key is registered for internal use.
func IsReserved(key string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()
	_, ok := registeredNames[key]
	return ok
}

func (r ReservedAttribute) Key() attribute.Key      { return r.key }
func (r ReservedAttribute) Description() string     { return r.properties.Description }
func (r ReservedAttribute) Namespace() string       { return r.namespace }
func (r ReservedAttribute) Semver() *semver.Version { return r.semver }
func (r ReservedAttribute) SemverString() string    { return r.version }

// String builds a key/value pair under the reserved key.
func (r ReservedAttribute) String(v string) attribute.KeyValue { return r.key.String(v) }

// Int64 builds a key/value pair under the reserved key.
func (r ReservedAttribute) Int64(v int64) attribute.KeyValue { return r.key.Int64(v) }

// StringSlice builds a key/value pair under the reserved key.
func (r ReservedAttribute) StringSlice(v []string) attribute.KeyValue { return r.key.StringSlice(v) }

// The code namespace carries the caller site, resolved by the span
// lifecycle layer at the API boundary.
var (
	CodeFilepath = Make{Key: "code.filepath", Namespace: "code-1.0.0", Description: "source file of the producing call"}.Register()
	CodeLineno   = Make{Key: "code.lineno", Namespace: "code-1.0.0", Description: "source line of the producing call"}.Register()
	CodeFunction = Make{Key: "code.function", Namespace: "code-1.0.0", Description: "function containing the producing call"}.Register()
)

// The logfire namespace is the record protocol itself.
var (
	MessageTemplate = Make{Key: "logfire.msg_template", Namespace: "logfire-1.0.0", Description: "template the message was rendered from"}.Register()
	Message         = Make{Key: "logfire.msg", Namespace: "logfire-1.0.0", Description: "rendered message"}.Register()
	SpanType        = Make{Key: "logfire.span_type", Namespace: "logfire-1.0.0", Description: "span, start_span, or log"}.Register()
	LogLevel        = Make{Key: "logfire.level", Namespace: "logfire-1.0.0", Description: "severity name, log records only"}.Register()
	Tags            = Make{Key: "logfire.tags", Namespace: "logfire-1.0.0", Description: "tags bound to the producing handle"}.Register()
	NullArgs        = Make{Key: "logfire.null_args", Namespace: "logfire-1.0.0", Description: "names of arguments whose value was nil"}.Register()
	StartParentID   = Make{Key: "logfire.start_parent_id", Namespace: "logfire-1.0.0", Description: "decimal id of the span that was active when this span started"}.Register()
)

// Call options travel in the argument list for call-site convenience,
// the way zap mixes control fields into its field list. Registering
// them keeps the names from ever masquerading as user attributes; the
// span layer strips them before encoding and they are never emitted.
var (
	SpanName  = Make{Key: "logfire.span_name", Namespace: "logfire-1.0.0", Description: "call option: explicit span record name"}.Register()
	EndOnExit = Make{Key: "logfire.end_on_exit", Namespace: "logfire-1.0.0", Description: "call option: detach scope exit from record finalize"}.Register()
)

// The exception namespace is written by exception capture.
var (
	ExceptionType       = Make{Key: "exception.type", Namespace: "exception-1.0.0", Description: "concrete error type"}.Register()
	ExceptionMessage    = Make{Key: "exception.message", Namespace: "exception-1.0.0", Description: "error text"}.Register()
	ExceptionStacktrace = Make{Key: "exception.stacktrace", Namespace: "exception-1.0.0", Description: "human-readable stack"}.Register()
	ExceptionData       = Make{Key: "exception.logfire.data", Namespace: "exception-1.0.0", Description: "structured validation failures"}.Register()
	ExceptionTrace      = Make{Key: "exception.logfire.trace", Namespace: "exception-1.0.0", Description: "structured cause-chain stacks"}.Register()
)
