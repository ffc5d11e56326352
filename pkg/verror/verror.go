// Package verror defines the response-shaped validation error emitted by
// every stage of the bundle validator. Errors are prose-free: callers get a
// stable error code plus a structured details bag, never a sentence. A
// separate rendering layer (outside this module) is responsible for mapping
// codes to localized text.
package verror

// Source identifies which stage of the pipeline produced an error.
type Source string

const (
	SourceStructure  Source = "STRUCTURE"
	SourceBusiness   Source = "Business"
	SourceReference  Source = "Reference"
	SourceCodeMaster Source = "CodeMaster"
	SourceLint       Source = "Lint"
	SourceSpecHint   Source = "SpecHint"
)

// Severity is the effective severity of an error after SeverityResolver has
// run. Raw (pre-resolution) errors carry the severity the rule or structural
// check was configured with; Resolve may downgrade it.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Details is a structural description of what went wrong: short string keys
// mapped to JSON-shaped values. Never prose.
type Details map[string]any

// ValidationError is a single, immutable finding. Ownership of a
// ValidationError lies exclusively with the Result that holds it; callers
// must not mutate one received from a Result.
type ValidationError struct {
	Source       Source   `json:"source"`
	Severity     Severity `json:"severity"`
	ErrorCode    string   `json:"error_code"`
	ResourceType string   `json:"resource_type,omitempty"`
	Path         string   `json:"path,omitempty"`
	JSONPointer  string   `json:"json_pointer,omitempty"`
	RuleID       string   `json:"rule_id,omitempty"`
	EntryIndex   *int     `json:"entry_index,omitempty"`
	Details      Details  `json:"details"`
}

// dedupKey is the composite identity used by the pipeline to collapse
// duplicate findings: (source, error_code, json_pointer, path).
func (e ValidationError) dedupKey() string {
	return string(e.Source) + "\x00" + e.ErrorCode + "\x00" + e.JSONPointer + "\x00" + e.Path
}

// DedupKey exposes the composite dedup identity for callers (the pipeline)
// that need to collapse duplicates across stages without reaching into
// unexported fields.
func (e ValidationError) DedupKey() string {
	return e.dedupKey()
}

// Result accumulates errors discovered across a single validation request.
// It is request-scoped: never shared across requests, never published until
// the pipeline has finished assembling the response.
type Result struct {
	Errors []ValidationError
}

// NewResult returns an empty, ready-to-use Result.
func NewResult() *Result {
	return &Result{Errors: []ValidationError{}}
}

// Add appends a single error.
func (r *Result) Add(err ValidationError) {
	r.Errors = append(r.Errors, err)
}

// Merge appends every error from other into r. A nil other is a no-op.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// Dedup collapses errors sharing the same (source, error_code, json_pointer,
// path) key, keeping the first occurrence. Order of the surviving errors is
// preserved.
func (r *Result) Dedup() {
	seen := make(map[string]struct{}, len(r.Errors))
	out := r.Errors[:0]
	for _, e := range r.Errors {
		key := e.dedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	r.Errors = out
}

// HasErrors reports whether any error-severity finding is present.
func (r *Result) HasErrors() bool {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Counts tallies findings by severity.
type Counts struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	InfoCount    int `json:"info_count"`
}

// Summarize computes the severity counts over the current error set.
func (r *Result) Summarize() Counts {
	var c Counts
	for _, e := range r.Errors {
		switch e.Severity {
		case SeverityError:
			c.ErrorCount++
		case SeverityWarning:
			c.WarningCount++
		case SeverityInfo:
			c.InfoCount++
		}
	}
	return c
}

// IntPtr is a small helper for the optional EntryIndex field, mirroring the
// pointer-helper idiom used throughout this codebase for optional scalars.
func IntPtr(i int) *int {
	return &i
}
