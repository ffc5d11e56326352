package structural

import (
	"strings"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// walkGeneric runs the two schema-independent recursive passes — extension
// shape and reference shape — over the whole decoded resource tree. These
// checks apply wherever an "extension" or "reference" key appears, at any
// depth, regardless of what the loaded StructureDefinition happens to
// declare at that position.
func (v *Validator) walkGeneric(node any, cur cursor, result *verror.Result) {
	switch n := node.(type) {
	case map[string]any:
		v.checkExtensionShape(n, cur, result)
		v.checkReferenceShape(n, cur, result)
		for key, val := range n {
			if key == "resourceType" {
				continue
			}
			v.walkGeneric(val, cur.field(key), result)
		}
	case []any:
		for i, elem := range n {
			v.walkGeneric(elem, cur.index(i), result)
		}
	}
}

// checkExtensionShape applies to each object in obj's "extension" array:
// it must carry a url, and must not carry both a value[x] and a nested
// extension array (the two are mutually exclusive per FHIR's extension
// shape rule).
func (v *Validator) checkExtensionShape(obj map[string]any, cur cursor, result *verror.Result) {
	extensions, ok := obj["extension"].([]any)
	if !ok {
		return
	}
	for i, extAny := range extensions {
		ext, ok := extAny.(map[string]any)
		if !ok {
			continue
		}
		extCur := cur.field("extension").index(i)

		if url, ok := ext["url"].(string); !ok || url == "" {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_EXTENSION_MISSING_URL",
				verror.WithResourceType(cur.resourceType),
				verror.WithPath(extCur.path), verror.WithJSONPointer(extCur.pointer),
				verror.WithEntryIndex(cur.entryIndex),
			))
		}

		hasValueX := false
		for key := range ext {
			if strings.HasPrefix(key, "value") && len(key) > 5 {
				hasValueX = true
				break
			}
		}
		_, hasNested := ext["extension"]
		if hasValueX && hasNested {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_EXTENSION_INVALID_SHAPE",
				verror.WithResourceType(cur.resourceType),
				verror.WithPath(extCur.path), verror.WithJSONPointer(extCur.pointer),
				verror.WithEntryIndex(cur.entryIndex),
				verror.WithDetails(verror.Details{"reason": "value[x] and nested extension are mutually exclusive"}),
			))
		}
	}
}

// checkReferenceShape applies when obj itself looks like a Reference
// element: its "reference" string must match the relative, absolute, or
// urn:uuid grammar, and a Reference must not carry both "reference" and
// "identifier" (only one resolution mechanism may be used at a time).
func (v *Validator) checkReferenceShape(obj map[string]any, cur cursor, result *verror.Result) {
	refVal, hasRef := obj["reference"]
	_, hasIdentifier := obj["identifier"]
	if !hasRef {
		return
	}
	refStr, ok := refVal.(string)
	if !ok {
		return
	}

	fieldCur := cur.field("reference")
	if !isWellFormedReference(refStr) {
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_INVALID_REFERENCE_FORMAT",
			verror.WithResourceType(cur.resourceType),
			verror.WithPath(fieldCur.path), verror.WithJSONPointer(fieldCur.pointer),
			verror.WithEntryIndex(cur.entryIndex),
			verror.WithDetails(verror.Details{"reference": refStr}),
		))
	}

	if hasIdentifier {
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_REFERENCE_INVALID_COMBINATION",
			verror.WithResourceType(cur.resourceType),
			verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
			verror.WithEntryIndex(cur.entryIndex),
			verror.WithDetails(verror.Details{"reason": "reference and identifier are mutually exclusive"}),
		))
	}
}

func isWellFormedReference(ref string) bool {
	if ref == "" {
		return false
	}
	if strings.HasPrefix(ref, "#") {
		return len(ref) > 1
	}
	return relativeRefPattern.MatchString(ref) ||
		absoluteRefPattern.MatchString(ref) ||
		urnUUIDPattern.MatchString(ref)
}
