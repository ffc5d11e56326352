package structural

import (
	"strings"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// bundlesRequiringTotal are the bundle types where Bundle.total must be
// present; all others must omit it.
var bundlesRequiringTotal = map[string]bool{"searchset": true, "history": true}

// validateBundleInvariants checks the fixed, non-schema-driven bdl-1..bdl-12
// style rules: total presence by bundle type, entry.search/request/response
// presence by bundle type, fullUrl uniqueness and versioning, and the
// document/message first-entry rules.
func (v *Validator) validateBundleInvariants(bundle map[string]any, result *verror.Result) {
	bundleType, _ := bundle["type"].(string)
	entries, _ := bundle["entry"].([]any)

	cur := cursor{path: "Bundle", pointer: "", resourceType: "Bundle"}
	v.checkTotalPresence(bundle, bundleType, cur, result)
	v.checkFullURLInvariants(entries, cur, result)
	v.checkEntryShapeByType(entries, bundleType, cur, result)
	v.checkFirstEntryRule(bundle, entries, bundleType, cur, result)
}

func (v *Validator) checkTotalPresence(bundle map[string]any, bundleType string, cur cursor, result *verror.Result) {
	_, hasTotal := bundle["total"]
	wantsTotal := bundlesRequiringTotal[bundleType]
	switch {
	case wantsTotal && !hasTotal:
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "REQUIRED_FIELD_MISSING",
			verror.WithResourceType("Bundle"),
			verror.WithPath(cur.field("total").path), verror.WithJSONPointer(cur.field("total").pointer),
			verror.WithDetails(verror.Details{"bundle_type": bundleType}),
		))
	case !wantsTotal && hasTotal:
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_TOTAL_NOT_ALLOWED",
			verror.WithResourceType("Bundle"),
			verror.WithPath(cur.field("total").path), verror.WithJSONPointer(cur.field("total").pointer),
			verror.WithDetails(verror.Details{"bundle_type": bundleType}),
		))
	}
}

// checkFullURLInvariants enforces fullUrl uniqueness across entries, and
// flags a versioned fullUrl (a History/vread-style "|vid" suffix), which a
// Bundle entry's fullUrl must never carry.
func (v *Validator) checkFullURLInvariants(entries []any, cur cursor, result *verror.Result) {
	seen := make(map[string]bool, len(entries))
	for i, entryAny := range entries {
		entry, ok := entryAny.(map[string]any)
		if !ok {
			continue
		}
		fullURL, ok := entry["fullUrl"].(string)
		if !ok || fullURL == "" {
			continue
		}
		entryCur := cur.field("entry").index(i).field("fullUrl")

		if seen[fullURL] {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_DUPLICATE_FULLURL",
				verror.WithPath(entryCur.path), verror.WithJSONPointer(entryCur.pointer),
				verror.WithDetails(verror.Details{"full_url": fullURL}),
			))
		}
		seen[fullURL] = true

		if strings.Contains(fullURL, "|") {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_VERSIONED_FULLURL",
				verror.WithPath(entryCur.path), verror.WithJSONPointer(entryCur.pointer),
				verror.WithDetails(verror.Details{"full_url": fullURL}),
			))
		}
	}
}

// checkEntryShapeByType enforces that entry.search only appears in
// searchset bundles, and entry.request/entry.response only appear in
// batch/transaction and batch-response/transaction-response bundles
// respectively.
func (v *Validator) checkEntryShapeByType(entries []any, bundleType string, cur cursor, result *verror.Result) {
	for i, entryAny := range entries {
		entry, ok := entryAny.(map[string]any)
		if !ok {
			continue
		}
		entryCur := cur.field("entry").index(i)

		if _, has := entry["search"]; has && bundleType != "searchset" {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_SEARCH_NOT_ALLOWED",
				verror.WithPath(entryCur.field("search").path), verror.WithJSONPointer(entryCur.field("search").pointer),
				verror.WithDetails(verror.Details{"bundle_type": bundleType}),
			))
		}

		_, hasRequest := entry["request"]
		wantsRequest := bundleType == "batch" || bundleType == "transaction"
		switch {
		case wantsRequest && !hasRequest:
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_REQUEST_REQUIRED",
				verror.WithPath(entryCur.path), verror.WithJSONPointer(entryCur.pointer),
				verror.WithDetails(verror.Details{"bundle_type": bundleType}),
			))
		case !wantsRequest && hasRequest:
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_REQUEST_NOT_ALLOWED",
				verror.WithPath(entryCur.field("request").path), verror.WithJSONPointer(entryCur.field("request").pointer),
				verror.WithDetails(verror.Details{"bundle_type": bundleType}),
			))
		}

		_, hasResponse := entry["response"]
		wantsResponse := bundleType == "batch-response" || bundleType == "transaction-response"
		switch {
		case wantsResponse && !hasResponse:
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_RESPONSE_REQUIRED",
				verror.WithPath(entryCur.path), verror.WithJSONPointer(entryCur.pointer),
				verror.WithDetails(verror.Details{"bundle_type": bundleType}),
			))
		case !wantsResponse && hasResponse:
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_RESPONSE_NOT_ALLOWED",
				verror.WithPath(entryCur.field("response").path), verror.WithJSONPointer(entryCur.field("response").pointer),
				verror.WithDetails(verror.Details{"bundle_type": bundleType}),
			))
		}
	}
}

// checkFirstEntryRule enforces the document/message bundle rules: the first
// entry's resource must be a Composition (document) or a MessageHeader
// (message), and a document bundle must additionally carry its own
// identifier and timestamp.
func (v *Validator) checkFirstEntryRule(bundle map[string]any, entries []any, bundleType string, cur cursor, result *verror.Result) {
	if bundleType == "document" {
		if _, has := bundle["identifier"]; !has {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_DOCUMENT_IDENTIFIER_MISSING",
				verror.WithPath(cur.field("identifier").path), verror.WithJSONPointer(cur.field("identifier").pointer),
			))
		}
		if _, has := bundle["timestamp"]; !has {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_BUNDLE_DOCUMENT_TIMESTAMP_MISSING",
				verror.WithPath(cur.field("timestamp").path), verror.WithJSONPointer(cur.field("timestamp").pointer),
			))
		}
	}

	var wantType, mismatchCode string
	switch bundleType {
	case "document":
		wantType, mismatchCode = "Composition", "FHIR_BUNDLE_DOCUMENT_FIRST_ENTRY_INVALID"
	case "message":
		wantType, mismatchCode = "MessageHeader", "FHIR_BUNDLE_MESSAGE_FIRST_ENTRY_INVALID"
	default:
		return
	}

	if len(entries) == 0 {
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, mismatchCode,
			verror.WithPath(cur.field("entry").path), verror.WithJSONPointer(cur.field("entry").pointer),
			verror.WithDetails(verror.Details{"bundle_type": bundleType, "expected_resource_type": wantType}),
		))
		return
	}

	first, ok := entries[0].(map[string]any)
	if !ok {
		return
	}
	resource, ok := first["resource"].(map[string]any)
	if !ok {
		return
	}
	gotType, _ := resource["resourceType"].(string)
	if gotType != wantType {
		entryCur := cur.field("entry").index(0)
		result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, mismatchCode,
			verror.WithPath(entryCur.path), verror.WithJSONPointer(entryCur.pointer),
			verror.WithDetails(verror.Details{"bundle_type": bundleType, "expected_resource_type": wantType, "actual_resource_type": gotType}),
		))
	}
}
