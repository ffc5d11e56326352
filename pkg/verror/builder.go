package verror

// Builder assembles ValidationError values with a guaranteed schema:
// source, severity and error_code are supplied directly by the caller (Go's
// type system already refuses to compile a call missing one), and every
// conditional field is attached through an Option rather than left to an
// ad hoc struct literal scattered across each validator package.
type Builder struct{}

// NewBuilder returns a ready-to-use Builder. It carries no state: every
// call to Build is independent.
func NewBuilder() Builder { return Builder{} }

// Build assembles one ValidationError from the mandatory triple plus
// whichever Options the call site supplies.
func (Builder) Build(source Source, severity Severity, errorCode string, opts ...Option) ValidationError {
	e := ValidationError{
		Source:    source,
		Severity:  severity,
		ErrorCode: errorCode,
		Details:   Details{},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Option attaches one optional field to a ValidationError under
// construction. Options that receive a zero value are no-ops, so call
// sites can pass a cursor's fields unconditionally without first checking
// whether they're set.
type Option func(*ValidationError)

// WithResourceType attaches resource_type when rt is non-empty.
func WithResourceType(rt string) Option {
	return func(e *ValidationError) {
		if rt != "" {
			e.ResourceType = rt
		}
	}
}

// WithPath attaches the FHIR dotted path when path is non-empty.
func WithPath(path string) Option {
	return func(e *ValidationError) {
		if path != "" {
			e.Path = path
		}
	}
}

// WithJSONPointer attaches the RFC-6901 pointer. An empty pointer is a
// legitimate value (the Bundle root itself), so unlike WithPath this
// always assigns.
func WithJSONPointer(pointer string) Option {
	return func(e *ValidationError) { e.JSONPointer = pointer }
}

// WithRuleID attaches the originating rule's id when id is non-empty.
func WithRuleID(id string) Option {
	return func(e *ValidationError) {
		if id != "" {
			e.RuleID = id
		}
	}
}

// WithEntryIndex attaches entry_index.
func WithEntryIndex(i int) Option {
	return func(e *ValidationError) { e.EntryIndex = IntPtr(i) }
}

// WithDetails replaces the default empty Details map. A nil d is a no-op,
// leaving the zero-value empty map Build already installed.
func WithDetails(d Details) Option {
	return func(e *ValidationError) {
		if d != nil {
			e.Details = d
		}
	}
}
