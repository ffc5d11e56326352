package pipeline

import (
	"io"
	"os"

	"github.com/fhirlint/bundlecheck/pkg/telemetry"
)

// Options configures a Pipeline. It follows the teacher's plain-struct
// Options-plus-Default*() shape, layered with functional Option setters so
// callers can write either pipeline.DefaultOptions() with fields assigned
// directly, or the functional form pipeline.New(catalog, idx,
// pipeline.WithMode("full"), pipeline.WithMaxErrors(0)).
type Options struct {
	// Mode is "standard" or "full" (§6). "standard" runs exactly the
	// distilled-spec checks; "full" additionally runs the supplemental
	// fixed/pattern, slicing, Aggregate-rule and Bundle-shape-invariant
	// passes.
	Mode string
	// MaxErrors truncates the final error list to this many entries after
	// dedup and severity resolution. Zero means unlimited.
	MaxErrors int
	// EngineVersion is reported in every response's metadata.engine_version.
	EngineVersion string
	// Logger receives operational (never response-shaped) events. A nil
	// Logger is replaced with a stderr logfmt default by New.
	Logger *telemetry.Logger
}

const (
	// ModeStandard runs exactly the distilled-spec checks.
	ModeStandard = "standard"
	// ModeFull additionally runs the supplemental passes (§4.6a/§4.6b/§4.7a/§4.10a).
	ModeFull = "full"

	// DefaultEngineVersion is reported when no Option overrides it.
	DefaultEngineVersion = "1.0.0"
)

// DefaultOptions returns the engine's out-of-the-box configuration: standard
// mode, unlimited errors, DefaultEngineVersion. Logger is left nil; New
// installs a stderr default in its place.
func DefaultOptions() Options {
	return Options{
		Mode:          ModeStandard,
		MaxErrors:     0,
		EngineVersion: DefaultEngineVersion,
	}
}

// Option mutates an Options under construction.
type Option func(*Options)

// WithMode overrides Mode. An empty or unrecognized mode is treated as
// ModeStandard by the Pipeline.
func WithMode(mode string) Option {
	return func(o *Options) { o.Mode = mode }
}

// WithMaxErrors overrides MaxErrors.
func WithMaxErrors(n int) Option {
	return func(o *Options) { o.MaxErrors = n }
}

// WithEngineVersion overrides the reported engine_version.
func WithEngineVersion(v string) Option {
	return func(o *Options) {
		if v != "" {
			o.EngineVersion = v
		}
	}
}

// WithLogger overrides the operational logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithLogOutput builds a default-format logger writing to w and installs it,
// a convenience for callers that just want somewhere other than stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *Options) { o.Logger = telemetry.NewDefault(w) }
}

func resolveOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Mode != ModeStandard && o.Mode != ModeFull {
		o.Mode = ModeStandard
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewDefault(os.Stderr)
	}
	return o
}
