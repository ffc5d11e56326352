// Package severity implements SeverityResolver (§4.9): the pipeline's step
// 7 downgrade policy, applied to every surviving error after structural and
// rule-engine findings have been merged and deduplicated.
package severity

import "github.com/fhirlint/bundlecheck/pkg/verror"

// Class is the validation_class axis of the downgrade table.
type Class string

const (
	// ClassStructural findings (schema grammar, cardinality, Bundle-shape
	// invariants) are never downgraded; only the enum binding-strength step
	// in Resolve changes their severity.
	ClassStructural Class = "structural"
	// ClassContract findings are rule-declared business constraints —
	// Business, Reference and CodeMaster sourced errors — and also always
	// keep their configured severity.
	ClassContract Class = "contract"
	// ClassAdvisory findings are the only class subject to downgrade: Lint
	// (heuristic) and SpecHint findings.
	ClassAdvisory Class = "advisory"
)

// classify maps a finding's Source to the validation_class the downgrade
// table gates on. This is an Open Question decision (recorded in
// DESIGN.md): the spec names the class/heuristic/spec_hint axes but never
// says how a Go ValidationError carries them, so this package derives all
// three directly from Source rather than adding a separate flag to Rule —
// Lint is, by construction, this engine's only heuristic source and
// SpecHint is, by construction, its only spec-hint source.
func classify(source verror.Source) Class {
	switch source {
	case verror.SourceStructure:
		return ClassStructural
	case verror.SourceLint, verror.SourceSpecHint:
		return ClassAdvisory
	default:
		return ClassContract
	}
}

// Resolver applies the §4.9 downgrade table in place over a slice of
// ValidationError. It carries no state: every call is independent.
type Resolver struct{}

// New returns a ready-to-use Resolver.
func New() Resolver { return Resolver{} }

// Resolve mutates errs in place: binding-strength-derived severity for
// INVALID_ENUM_VALUE/ENUM_VALIDATION_SKIPPED is applied first (it overrides
// whatever severity the structural walk assigned, regardless of class),
// then the Advisory downgrade policy runs over whatever remains an error.
// The downgrade step leaves warnings and infos untouched — it only ever
// moves an error to a lower severity, never the reverse.
func (Resolver) Resolve(errs []verror.ValidationError) {
	for i := range errs {
		resolveEnumSeverity(&errs[i])
		resolveAdvisoryDowngrade(&errs[i])
	}
}

func resolveEnumSeverity(e *verror.ValidationError) {
	strength, _ := e.Details["binding_strength"].(string)
	switch e.ErrorCode {
	case "INVALID_ENUM_VALUE":
		switch strength {
		case "required":
			e.Severity = verror.SeverityError
		case "extensible":
			e.Severity = verror.SeverityWarning
		case "preferred":
			e.Severity = verror.SeverityInfo
		}
	case "ENUM_VALIDATION_SKIPPED":
		switch strength {
		case "required":
			e.Severity = verror.SeverityWarning
		case "preferred":
			e.Severity = verror.SeverityInfo
		}
	}
}

// resolveAdvisoryDowngrade implements the Advisory row of the §4.9 table.
// Only a configured "error" is a downgrade candidate; Structural and
// Contract classes, and anything already warning/info, pass through
// untouched.
func resolveAdvisoryDowngrade(e *verror.ValidationError) {
	if e.Severity != verror.SeverityError {
		return
	}
	if classify(e.Source) != ClassAdvisory {
		return
	}

	isHeuristic := e.Source == verror.SourceLint
	isSpecHint := e.Source == verror.SourceSpecHint

	switch {
	case isHeuristic && !isSpecHint:
		downgrade(e, "heuristic confidence")
	case !isHeuristic && isSpecHint:
		downgrade(e, "SpecHint")
	}
}

func downgrade(e *verror.ValidationError, reason string) {
	e.Severity = verror.SeverityWarning
	if e.Details == nil {
		e.Details = verror.Details{}
	}
	e.Details["_downgrade_reason"] = reason
}
