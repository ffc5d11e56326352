package structural

import (
	"strings"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/schema"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// primitiveTypes lists the FHIR primitive type names this validator applies
// grammar checks to. Complex types recurse through walkNode instead.
var primitiveTypes = map[string]bool{
	"id": true, "code": true, "string": true, "markdown": true,
	"uri": true, "url": true, "canonical": true, "oid": true, "uuid": true,
	"boolean": true, "integer": true, "positiveInt": true, "unsignedInt": true,
	"decimal": true, "date": true, "dateTime": true, "instant": true, "time": true,
	"base64Binary": true,
}

func isPrimitiveType(t string) bool {
	return primitiveTypes[t]
}

// validatePrimitiveValue checks a leaf value's grammar against its declared
// FHIR primitive type, and (when the schema binds it to a value set) its
// enum membership. Everything besides id/string/code/uri/url/canonical
// (and oid/uuid, which report FHIR_INVALID_URI) shares one catch-all code, FHIR_INVALID_PRIMITIVE, rather than a code per
// type — boolean, the numeric family, and the date/time family all fail
// the same way from a caller's point of view: "this scalar doesn't parse as
// its declared type".
func (v *Validator) validatePrimitiveValue(node *schema.Node, val any, cur cursor, result *verror.Result) {
	switch node.Type {
	case "boolean":
		if _, ok := val.(bool); !ok {
			v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		}
	case "integer", "positiveInt", "unsignedInt":
		v.validateIntegerValue(node, val, cur, result)
	case "decimal":
		v.validateDecimalValue(val, cur, result)
	case "date":
		v.validatePatternedString(result, cur, val, dateRegex, "FHIR_INVALID_PRIMITIVE")
	case "dateTime":
		v.validatePatternedString(result, cur, val, dateTimeRegex, "FHIR_INVALID_PRIMITIVE")
	case "instant":
		v.validatePatternedString(result, cur, val, instantRegex, "FHIR_INVALID_PRIMITIVE")
	case "time":
		v.validatePatternedString(result, cur, val, timeRegex, "FHIR_INVALID_PRIMITIVE")
	case "base64Binary":
		if _, ok := val.(string); !ok {
			v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		}
	case "string":
		v.validateStringValue(val, cur, result)
	case "markdown":
		if _, ok := val.(string); !ok {
			v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		}
	case "code":
		if v.validatePatternedString(result, cur, val, codeRegex, "FHIR_INVALID_CODE_LITERAL") {
			v.checkEnum(node, val.(string), cur, result)
		}
	case "id":
		v.validatePatternedString(result, cur, val, idRegex, "FHIR_INVALID_ID_FORMAT")
	case "oid", "uuid":
		v.validateURIValue(val, cur, result)
	case "uri":
		v.validateURIValue(val, cur, result)
	case "url":
		v.validateURLValue(val, cur, result)
	case "canonical":
		v.validateCanonicalValue(val, cur, result)
	}
}

func (v *Validator) addGrammarError(result *verror.Result, cur cursor, code string) {
	result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, code,
		verror.WithResourceType(cur.resourceType),
		verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
		verror.WithEntryIndex(cur.entryIndex),
	))
}

// validatePatternedString checks val is a string matching re, emitting code
// otherwise. Returns true only when val was a well-formed, matching string,
// so callers can chain a follow-up check (e.g. enum membership) safely.
func (v *Validator) validatePatternedString(result *verror.Result, cur cursor, val any, re regexpMatcher, code string) bool {
	s, ok := val.(string)
	if !ok || !re.MatchString(s) {
		v.addGrammarError(result, cur, code)
		return false
	}
	return true
}

type regexpMatcher interface {
	MatchString(string) bool
}

func (v *Validator) validateIntegerValue(node *schema.Node, val any, cur cursor, result *verror.Result) {
	f, ok := val.(float64)
	if !ok || f != float64(int64(f)) {
		v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		return
	}
	n := int64(f)
	switch node.Type {
	case "positiveInt":
		if n < 1 {
			v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		}
	case "unsignedInt":
		if n < 0 {
			v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		}
	}
}

func (v *Validator) validateDecimalValue(val any, cur cursor, result *verror.Result) {
	switch n := val.(type) {
	case float64:
		return
	case string:
		if !decimalRegex.MatchString(n) {
			v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		}
	default:
		v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
	}
}

// validateStringValue enforces the one rule a plain FHIR string carries
// beyond "is a string": no embedded newline or carriage return. markdown
// shares the same JSON representation but is explicitly exempt.
func (v *Validator) validateStringValue(val any, cur cursor, result *verror.Result) {
	s, ok := val.(string)
	if !ok {
		v.addGrammarError(result, cur, "FHIR_INVALID_PRIMITIVE")
		return
	}
	if strings.ContainsAny(s, "\n\r") {
		v.addGrammarError(result, cur, "FHIR_INVALID_STRING_NEWLINE")
	}
}

func (v *Validator) validateURIValue(val any, cur cursor, result *verror.Result) {
	s, ok := val.(string)
	if !ok {
		v.addGrammarError(result, cur, "FHIR_INVALID_URI")
		return
	}
	if s == "" || uriForbiddenRegex.MatchString(s) {
		v.addGrammarError(result, cur, "FHIR_INVALID_URI")
	}
}

func (v *Validator) validateURLValue(val any, cur cursor, result *verror.Result) {
	s, ok := val.(string)
	if !ok {
		v.addGrammarError(result, cur, "FHIR_INVALID_URL")
		return
	}
	if s == "" || uriForbiddenRegex.MatchString(s) || !urlSchemeRegex.MatchString(s) {
		v.addGrammarError(result, cur, "FHIR_INVALID_URL")
	}
}

// validateCanonicalValue applies the url grammar plus the canonical-specific
// rule: a "|version" suffix, when present, must not be empty.
func (v *Validator) validateCanonicalValue(val any, cur cursor, result *verror.Result) {
	s, ok := val.(string)
	if !ok {
		v.addGrammarError(result, cur, "FHIR_INVALID_CANONICAL")
		return
	}
	base := s
	if idx := strings.LastIndex(s, "|"); idx >= 0 {
		base = s[:idx]
		if s[idx+1:] == "" {
			v.addGrammarError(result, cur, "FHIR_INVALID_CANONICAL")
			return
		}
	}
	if base == "" || uriForbiddenRegex.MatchString(base) || !urlSchemeRegex.MatchString(base) {
		v.addGrammarError(result, cur, "FHIR_INVALID_CANONICAL")
	}
}

// checkEnum reports INVALID_ENUM_VALUE whenever the value set is indexed and
// the value isn't a member. The raw finding always carries SeverityError
// plus a binding_strength detail; SeverityResolver later refines
// required/extensible/preferred/example into the final error/warning/info
// split (§4.9) — this check never applies that policy itself.
func (v *Validator) checkEnum(node *schema.Node, value string, cur cursor, result *verror.Result) {
	if node.ValueSetURL == "" {
		return
	}
	member, indexed := enumindex.Contains(v.enumIdx, v.version, cur.resourceType, node.ElementName, value)
	if !indexed {
		v.checkEnumSkipped(node, cur, result)
		return
	}
	if member {
		return
	}
	result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "INVALID_ENUM_VALUE",
		verror.WithResourceType(cur.resourceType),
		verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
		verror.WithEntryIndex(cur.entryIndex),
		verror.WithDetails(verror.Details{
			"value_set":        node.ValueSetURL,
			"binding_strength": node.BindingStrength,
			"value":            value,
		}),
	))
}

// checkEnumSkipped emits ENUM_VALIDATION_SKIPPED when the schema declares a
// required or preferred binding but the enum index has no entry for it —
// "cannot evaluate" is itself worth flagging for those two strengths, per
// §4.6 rule 9. extensible and example bindings stay silent.
func (v *Validator) checkEnumSkipped(node *schema.Node, cur cursor, result *verror.Result) {
	if node.ValueSetURL == "" {
		return
	}
	if node.BindingStrength != "required" && node.BindingStrength != "preferred" {
		return
	}
	if _, indexed := v.enumIdx.AllowedValues(v.version, cur.resourceType, node.ElementName); indexed {
		return
	}
	result.Add(eb.Build(verror.SourceStructure, verror.SeverityWarning, "ENUM_VALIDATION_SKIPPED",
		verror.WithResourceType(cur.resourceType),
		verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
		verror.WithEntryIndex(cur.entryIndex),
		verror.WithDetails(verror.Details{
			"reason":           "ValueSet not supported by enum index",
			"binding_strength": node.BindingStrength,
		}),
	))
}
