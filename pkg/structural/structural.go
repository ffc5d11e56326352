// Package structural implements the stateless, non-short-circuiting
// structural walk: primitive grammar, cardinality, value[x] exclusivity,
// extension shape, reference format, enum membership, and the Bundle-shape
// invariants. Every applicable check is emitted for every element; nothing
// here ever stops the walk early except an unrecoverable shape mismatch at
// the current node (an array expected where an object was found, and so
// on, which makes descending further meaningless).
package structural

import (
	"strings"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/schema"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// Validator performs the structural walk described above. It is stateless
// and safe for concurrent use: all mutable state lives in the cursor and
// Result objects passed through a single call.
type Validator struct {
	catalog  schema.Catalog
	enumIdx  enumindex.Index
	version  string
	fullMode bool
}

// eb is the ErrorBuilder (§4.8) every check in this package funnels its
// findings through, instead of constructing ValidationError literals
// inline at each call site.
var eb = verror.NewBuilder()

// New returns a Validator bound to catalog and enumIdx for the given FHIR
// version tag. fullMode gates the §4.6a/§4.6b/§4.10a supplemental checks
// (fixed/pattern, slicing-aware cardinality, Bundle-shape invariants).
func New(catalog schema.Catalog, enumIdx enumindex.Index, version string, fullMode bool) *Validator {
	return &Validator{catalog: catalog, enumIdx: enumIdx, version: version, fullMode: fullMode}
}

// ValidateBundle walks every entry's resource against its schema, plus the
// generic extension/reference passes, plus (in full mode) the Bundle-shape
// invariants. bundle must already be decoded JSON (map[string]any).
func (v *Validator) ValidateBundle(bundle map[string]any) *verror.Result {
	result := verror.NewResult()

	entries, _ := bundle["entry"].([]any)
	for i, entryAny := range entries {
		entry, ok := entryAny.(map[string]any)
		if !ok {
			continue
		}
		resource, ok := entry["resource"].(map[string]any)
		if !ok {
			continue
		}
		v.validateResource(resource, i, result)
	}

	if v.fullMode {
		v.validateBundleInvariants(bundle, result)
	}

	return result
}

// validateResource runs the full per-resource check set: schema-driven
// cardinality/primitive walk, plus the two schema-independent generic
// passes for extensions and references, which can appear at any depth
// regardless of what the loaded schema happens to declare.
func (v *Validator) validateResource(resource map[string]any, entryIndex int, result *verror.Result) {
	resourceType, _ := resource["resourceType"].(string)
	cur := cursor{
		path:         resourceType,
		pointer:      entryPointer(entryIndex),
		resourceType: resourceType,
		entryIndex:   entryIndex,
	}

	if node, found := v.catalog.Get(resourceType); found {
		v.walkNode(node, resource, cur, result)
	}

	v.walkGeneric(resource, cur, result)

	if resourceType == "Bundle" {
		v.ValidateBundle(resource) // nested Bundle entries (e.g. in message/document bundles)
	}
}

func entryPointer(i int) string {
	return "/entry/" + itoa(i) + "/resource"
}

// walkNode applies cardinality, presence, and (recursively) value checks
// for every child the schema declares. Non-schema-declared JSON properties
// are ignored, matching the source validator's behavior.
func (v *Validator) walkNode(node *schema.Node, obj map[string]any, cur cursor, result *verror.Result) {
	for _, child := range node.Children {
		if strings.HasSuffix(child.ElementName, "[x]") {
			v.validateChoiceElement(child, obj, cur, result)
			continue
		}

		val, present := obj[child.ElementName]
		fieldCur := cur.field(child.ElementName)
		if !present || isAbsentValue(val) {
			if child.Min >= 1 {
				result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "REQUIRED_FIELD_MISSING",
					verror.WithResourceType(cur.resourceType),
					verror.WithPath(fieldCur.path), verror.WithJSONPointer(fieldCur.pointer),
					verror.WithEntryIndex(cur.entryIndex),
				))
			}
			continue
		}

		if child.IsArray {
			v.validateArrayElement(child, val, fieldCur, result)
		} else {
			v.validateSingleElement(child, val, fieldCur, result)
		}
	}
}

func (v *Validator) validateArrayElement(node *schema.Node, val any, cur cursor, result *verror.Result) {
	arr, ok := val.([]any)
	if !ok {
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_ARRAY_EXPECTED",
			verror.WithResourceType(cur.resourceType),
			verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
			verror.WithEntryIndex(cur.entryIndex),
		))
		return
	}

	if len(arr) < node.Min || (!node.MaxUnbounded() && exceedsMax(len(arr), node.Max)) {
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "ARRAY_LENGTH_OUT_OF_RANGE",
			verror.WithResourceType(cur.resourceType),
			verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
			verror.WithEntryIndex(cur.entryIndex),
			verror.WithDetails(verror.Details{"min": node.Min, "max": node.Max, "actual": len(arr)}),
		))
	}

	if v.fullMode && node.Slicing != nil {
		v.validateSlicing(node, arr, cur, result)
	}

	for i, elem := range arr {
		v.validateSingleElement(node, elem, cur.index(i), result)
	}
}

func (v *Validator) validateSingleElement(node *schema.Node, val any, cur cursor, result *verror.Result) {
	if v.fullMode {
		v.validateFixedPattern(node, val, cur, result)
	}

	if isPrimitiveType(node.Type) {
		v.validatePrimitiveValue(node, val, cur, result)
		return
	}

	obj, ok := val.(map[string]any)
	if !ok {
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_OBJECT_EXPECTED",
			verror.WithResourceType(cur.resourceType),
			verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
			verror.WithEntryIndex(cur.entryIndex),
		))
		return
	}

	if len(node.Children) > 0 {
		v.walkNode(node, obj, cur, result)
	}
}

// validateChoiceElement resolves a value[x] schema slot to whichever
// concrete type[x] suffix is actually present in obj, checks for
// exclusivity, and validates it with the concrete element name's pointer
// path against a fresh leaf node whose type comes from the suffix
// (valueString -> string). The leaf carries no children, since no
// per-suffix sub-schema is declared for a generic choice slot.
func (v *Validator) validateChoiceElement(node *schema.Node, obj map[string]any, cur cursor, result *verror.Result) {
	base := strings.TrimSuffix(node.ElementName, "[x]")
	var matches []string
	for _, suffix := range choiceSuffixes {
		key := base + suffix
		if v, present := obj[key]; present && !isAbsentValue(v) {
			matches = append(matches, key)
		}
	}

	switch {
	case len(matches) > 1:
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_MULTIPLE_VALUE_X",
			verror.WithResourceType(cur.resourceType),
			verror.WithPath(cur.path+"."+base), verror.WithJSONPointer(cur.pointer+"/"+base),
			verror.WithEntryIndex(cur.entryIndex),
			verror.WithDetails(verror.Details{"candidates": matches}),
		))
	case len(matches) == 0:
		if node.Min >= 1 {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "REQUIRED_FIELD_MISSING",
				verror.WithResourceType(cur.resourceType),
				verror.WithPath(cur.path+"."+node.ElementName), verror.WithJSONPointer(cur.pointer+"/"+base),
				verror.WithEntryIndex(cur.entryIndex),
			))
		}
	default:
		key := matches[0]
		fieldCur := cur.field(key)
		suffixType := suffixToType(key, base)
		leaf := &schema.Node{ElementName: key, Path: fieldCur.path, Type: suffixType, Max: "1"}
		v.validateSingleElement(leaf, obj[key], fieldCur, result)
	}
}

// primitiveChoiceSuffixes are the value[x] suffixes whose FHIR type code is
// the lowerCamel form of the suffix (valueString -> string). Every other
// suffix names a complex type whose type code keeps its capitalization
// (valueQuantity -> Quantity, valueCodeableConcept -> CodeableConcept).
var primitiveChoiceSuffixes = map[string]bool{
	"Boolean": true, "Integer": true, "String": true, "Date": true, "DateTime": true,
	"Time": true, "Decimal": true, "Uri": true, "Url": true, "Canonical": true,
	"Code": true, "Oid": true, "Id": true, "Uuid": true, "Markdown": true,
	"Base64Binary": true, "Instant": true, "PositiveInt": true, "UnsignedInt": true,
}

func suffixToType(key, base string) string {
	suffix := strings.TrimPrefix(key, base)
	if suffix == "" {
		return ""
	}
	if primitiveChoiceSuffixes[suffix] {
		return strings.ToLower(suffix[:1]) + suffix[1:]
	}
	return suffix
}

func isAbsentValue(v any) bool {
	if v == nil {
		return true
	}
	if arr, ok := v.([]any); ok {
		return len(arr) == 0
	}
	return false
}

func exceedsMax(actual int, max string) bool {
	n, ok := parseIntMax(max)
	return ok && actual > n
}

func parseIntMax(max string) (int, bool) {
	if max == "" || max == "*" {
		return 0, false
	}
	n := 0
	for _, c := range max {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
