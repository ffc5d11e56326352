// Package bundlecheck is the engine's single external entrypoint (§6): a
// synchronous validate(request) -> response function over a FHIR Bundle,
// wiring SchemaCatalog, EnumIndex, StructuralValidator, RuleEngine and
// SeverityResolver into one Pipeline. Construct an Engine once per FHIR
// version's schema catalog, then call Validate per request — the pattern
// the teacher's pkg/validator.Validator follows for its own Validate(ctx,
// resource) entrypoint.
package bundlecheck

import (
	"context"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/pipeline"
	"github.com/fhirlint/bundlecheck/pkg/schema"
)

// Request, Response and Metadata are re-exported from pkg/pipeline so the
// common case never needs to import it directly.
type (
	Request  = pipeline.Request
	Response = pipeline.Response
	Metadata = pipeline.Metadata
	Option   = pipeline.Option
)

// Mode constants, re-exported from pkg/pipeline.
const (
	ModeStandard = pipeline.ModeStandard
	ModeFull     = pipeline.ModeFull
)

// Functional options, re-exported from pkg/pipeline.
var (
	WithMode          = pipeline.WithMode
	WithMaxErrors     = pipeline.WithMaxErrors
	WithEngineVersion = pipeline.WithEngineVersion
	WithLogger        = pipeline.WithLogger
	WithLogOutput     = pipeline.WithLogOutput
)

// Engine is a constructed validator bound to one FHIR version's schema
// catalog and enum index, ready to serve concurrent requests (§5).
type Engine struct {
	p *pipeline.Pipeline
}

// New builds an Engine. catalog and enumIdx must already be loaded — build
// them once at process start via schema.NewRegistry(...).LoadFromFile/
// LoadFromJSON and enumindex.New().Register, never from inside Validate
// (§6: "no filesystem access from inside the validate call itself").
func New(catalog schema.Catalog, enumIdx enumindex.Index, opts ...Option) *Engine {
	return &Engine{p: pipeline.New(catalog, enumIdx, opts...)}
}

// Validate runs one Bundle through the full eight-step pipeline (§4.10).
// The returned error is always nil: every recoverable fault, ingress or
// engine, is reported inside Response.Errors instead (§7).
func (e *Engine) Validate(ctx context.Context, req Request) (*Response, error) {
	return e.p.Validate(ctx, req)
}
