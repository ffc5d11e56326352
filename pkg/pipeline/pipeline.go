// Package pipeline implements the fixed, non-short-circuiting orchestration
// (§4.10) that turns one validation Request into one Response: decode,
// verify, load rules, run StructuralValidator then RuleEngine, dedup,
// resolve severities, assemble. This is the engine's single synchronous
// entrypoint (§6); everything else in this module is a collaborator it
// wires together.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/rules"
	"github.com/fhirlint/bundlecheck/pkg/schema"
	"github.com/fhirlint/bundlecheck/pkg/severity"
	"github.com/fhirlint/bundlecheck/pkg/structural"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// apiVersion is the fixed metadata.api_version every response reports (§6).
const apiVersion = "2.0"

// Request is the engine's sole input (§6): opaque JSON bytes for the bundle
// and, optionally, an author-configured rule set.
type Request struct {
	BundleJSON     []byte
	RulesJSON      []byte // nil/empty means "no rule set; run structural only"
	FHIRVersion    string
	ValidationMode string // "standard" | "full"; empty defaults to "standard"
	ProjectID      string // opaque, ignored by the core engine
}

// Metadata reports what produced a Response.
type Metadata struct {
	APIVersion    string `json:"api_version"`
	EngineVersion string `json:"engine_version"`
	FHIRVersion   string `json:"fhir_version"`
}

// Response is the engine's sole output (§6).
type Response struct {
	Errors   []verror.ValidationError `json:"errors"`
	Summary  verror.Counts            `json:"summary"`
	Metadata Metadata                 `json:"metadata"`
}

// errorBuilder is the ErrorBuilder (§4.8) instance the pipeline itself uses
// for the three ingress faults and the engine fault; every other error is
// already built by the stage that discovered it.
var errorBuilder = verror.NewBuilder()

// Pipeline holds the long-lived, read-only collaborators constructed once at
// process start (§5): a schema catalog and enum index, safe for concurrent
// reads from any number of request goroutines. Validate itself touches no
// package-level mutable state — every accumulator is request-local.
type Pipeline struct {
	catalog schema.Catalog
	enumIdx enumindex.Index
	resolve severity.Resolver
	options Options
}

// New builds a Pipeline over the given catalog and enum index, applying any
// Options overrides. catalog and enumIdx are expected to already be loaded
// (§6: "SchemaCatalog/EnumIndex construction ... happens once, outside the
// request path").
func New(catalog schema.Catalog, enumIdx enumindex.Index, opts ...Option) *Pipeline {
	return &Pipeline{
		catalog: catalog,
		enumIdx: enumIdx,
		resolve: severity.New(),
		options: resolveOptions(opts),
	}
}

// Validate runs the full eight-step orchestration (§4.10) and never panics
// across its own boundary (§7): any recovered panic becomes a single
// VALIDATION_ENGINE_ERROR response entry, and Validate's own error return is
// always nil — every recoverable fault, ingress or otherwise, is expressed
// as a populated Response, mirroring the teacher's Validate(ctx, resource)
// (*ValidationResult, error) contract where result, not err, carries faults.
func (p *Pipeline) Validate(ctx context.Context, req Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.options.Logger.EnginePanicRecovered(r)
			resp = p.singleErrorResponse(req, errorBuilder.Build(
				verror.SourceStructure, verror.SeverityError, "VALIDATION_ENGINE_ERROR",
				verror.WithDetails(verror.Details{"panic": fmt.Sprintf("%v", r)}),
			))
			err = nil
		}
	}()

	// Step 1: decode JSON.
	var bundle map[string]any
	if decodeErr := json.Unmarshal(req.BundleJSON, &bundle); decodeErr != nil {
		return p.singleErrorResponse(req, errorBuilder.Build(
			verror.SourceStructure, verror.SeverityError, "INVALID_JSON",
			verror.WithDetails(verror.Details{"byte_offset": jsonErrorOffset(decodeErr)}),
		)), nil
	}

	// Step 2: verify resourceType == "Bundle".
	if rt, _ := bundle["resourceType"].(string); rt != "Bundle" {
		return p.singleErrorResponse(req, errorBuilder.Build(
			verror.SourceStructure, verror.SeverityError, "INVALID_BUNDLE",
			verror.WithDetails(verror.Details{"resource_type": rt}),
		)), nil
	}

	// Step 3: load & validate the rule set, if one was supplied.
	ruleSet, ingressFault := p.loadRuleSet(req)
	if ingressFault != nil {
		return p.singleErrorResponse(req, *ingressFault), nil
	}

	fullMode := req.ValidationMode == ModeFull
	if !fullMode {
		ruleSet = dropAggregateRules(ruleSet)
	}

	// Step 4: StructuralValidator over the full bundle.
	structResult := structural.New(p.catalog, p.enumIdx, req.FHIRVersion, fullMode).ValidateBundle(bundle)

	// Step 5: RuleEngine.
	engineResult := rules.New().Evaluate(req.BundleJSON, bundle, ruleSet)

	merged := verror.NewResult()
	merged.Merge(structResult)
	merged.Merge(engineResult)

	// Step 6: dedup by (source, error_code, json_pointer, path).
	merged.Dedup()

	// Step 7: severity resolution.
	p.resolve.Resolve(merged.Errors)

	if p.options.MaxErrors > 0 && len(merged.Errors) > p.options.MaxErrors {
		merged.Errors = merged.Errors[:p.options.MaxErrors]
	}

	// Step 8: assemble the response.
	return &Response{
		Errors:   merged.Errors,
		Summary:  merged.Summarize(),
		Metadata: p.metadata(req),
	}, nil
}

// loadRuleSet decodes and validates req.RulesJSON. A nil return pair of
// (nil, nil) means "no rule set supplied"; a non-nil *ValidationError means
// step 3 found an ingress fault the caller must treat as terminal.
func (p *Pipeline) loadRuleSet(req Request) ([]rules.Rule, *verror.ValidationError) {
	if len(req.RulesJSON) == 0 {
		return nil, nil
	}

	candidates, decodeErr := rules.DecodeRuleSet(req.RulesJSON)
	if decodeErr != nil {
		p.options.Logger.RuleSetLoadFailed("", decodeErr.Error())
		fault := errorBuilder.Build(verror.SourceStructure, verror.SeverityError, "InvalidRuleSet",
			verror.WithDetails(verror.Details{"reason": decodeErr.Error()}))
		return nil, &fault
	}

	loaded, loadErr := rules.LoadRules(candidates)
	if loadErr != nil {
		ruleID, reason := "", loadErr.Error()
		var invalid *rules.InvalidRuleSetError
		if errors.As(loadErr, &invalid) {
			ruleID, reason = invalid.RuleID, invalid.Reason
		}
		p.options.Logger.RuleSetLoadFailed(ruleID, reason)
		fault := errorBuilder.Build(verror.SourceStructure, verror.SeverityError, "InvalidRuleSet",
			verror.WithRuleID(ruleID),
			verror.WithDetails(verror.Details{"reason": reason}))
		return nil, &fault
	}

	return loaded, nil
}

// dropAggregateRules filters out Aggregate-type rules under standard mode
// (§6): "full" is the only mode permitted to exercise §4.7a.
func dropAggregateRules(ruleSet []rules.Rule) []rules.Rule {
	out := make([]rules.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Type == rules.TypeAggregate {
			continue
		}
		out = append(out, r)
	}
	return out
}

// singleErrorResponse builds the terminal, single-element Response an
// ingress or engine fault produces (§7: "Terminal for the request; response
// contains a single error").
func (p *Pipeline) singleErrorResponse(req Request, e verror.ValidationError) *Response {
	result := verror.NewResult()
	result.Add(e)
	return &Response{
		Errors:   result.Errors,
		Summary:  result.Summarize(),
		Metadata: p.metadata(req),
	}
}

func (p *Pipeline) metadata(req Request) Metadata {
	return Metadata{
		APIVersion:    apiVersion,
		EngineVersion: p.options.EngineVersion,
		FHIRVersion:   req.FHIRVersion,
	}
}

// jsonErrorOffset extracts the byte offset encoding/json reports for a
// syntax or type error, for INVALID_JSON's details bag. Errors without an
// offset (e.g. io errors) report 0.
func jsonErrorOffset(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return 0
}
