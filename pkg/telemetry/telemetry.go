// Package telemetry provides structured, leveled logging for engine
// operational events only — rule-set load failures before ingress-fault
// conversion, schema-registry load progress, and panics recovered at the
// Pipeline.Validate boundary. It never logs a response ValidationError:
// duplicating prose-free findings into a log line would reopen the side
// channel the engine's contract forbids (§10 of the design spec).
//
// The handler construction and level/format parsing here follow the shape
// of a structured-logging wrapper found elsewhere in this codebase's
// dependency pack (a small package built around log/slog), adapted to this
// engine's two output formats and four severity levels.
package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Format selects the log line encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatLogfmt  Format = "logfmt"
	defaultFormat        = FormatLogfmt
)

var (
	// ErrUnknownLevel indicates an unrecognized log level string.
	ErrUnknownLevel = errors.New("telemetry: unknown log level")
	// ErrUnknownFormat indicates an unrecognized log format string.
	ErrUnknownFormat = errors.New("telemetry: unknown log format")
)

// Level re-exports slog's leveled severities under this package's own name,
// so callers outside the engine don't need to import log/slog directly.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel parses a case-insensitive level string.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, ErrUnknownLevel
	}
}

// ParseFormat parses a case-insensitive format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatLogfmt, "":
		return FormatLogfmt, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Logger is the engine's operational logger. It wraps *slog.Logger rather
// than replacing it — every method here names a specific engine event
// instead of exposing a general-purpose Printf surface, keeping call sites
// self-describing at the log statement itself.
type Logger struct {
	base *slog.Logger
}

// New builds a Logger writing to w at the given level and format. An empty
// level defaults to info; an empty format defaults to logfmt.
func New(w io.Writer, level, format string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	fmt, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &Logger{base: slog.New(newHandler(w, lvl, fmt))}, nil
}

// NewDefault builds a Logger at info/logfmt, the engine's out-of-the-box
// configuration when no explicit Options override it.
func NewDefault(w io.Writer) *Logger {
	l, _ := New(w, "info", string(defaultFormat))
	return l
}

func newHandler(w io.Writer, level Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// RuleSetLoadFailed logs a rule set rejected by LoadRules before the
// pipeline converts the failure into an InvalidRuleSet response error.
func (l *Logger) RuleSetLoadFailed(ruleID, reason string) {
	if l == nil {
		return
	}
	l.base.Warn("rule set rejected", "rule_id", ruleID, "reason", reason)
}

// SchemaLoaded logs how many StructureDefinition nodes a schema.Registry
// load pulled in, at process start.
func (l *Logger) SchemaLoaded(version string, count int) {
	if l == nil {
		return
	}
	l.base.Info("schema registry loaded", "fhir_version", version, "node_count", count)
}

// EnginePanicRecovered logs a panic caught at the Pipeline.Validate
// boundary immediately before it is converted to a VALIDATION_ENGINE_ERROR
// response entry.
func (l *Logger) EnginePanicRecovered(recovered any) {
	if l == nil {
		return
	}
	l.base.Error("recovered panic in validation pipeline", "panic", recovered)
}
