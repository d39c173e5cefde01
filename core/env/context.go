package env

import (
	"context"

	"github.com/google/uuid"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/telemetry"
)

// EvalContext carries the per-evaluation state threaded alongside a plan:
// the mutable metadata record, the current working key, and a handle to
// the environment. One EvalContext belongs to one evaluate call; concurrent
// evaluations each own their own and never interfere.
type EvalContext struct {
	envref       *Ref
	evaluationID string

	// minLevel gates which log entries end up in the frozen metadata
	// record handed back to callers. Entries below it are still forwarded
	// to the attached telemetry logger.
	minLevel metadata.Level

	meta *metadata.Record
	cwd  query.Key
}

// NewEvalContext returns a fresh context for one evaluation rooted at cwd.
func NewEvalContext(envref *Ref, cwd query.Key) *EvalContext {
	return &EvalContext{
		envref:       envref,
		evaluationID: uuid.NewString(),
		minLevel:     metadata.LevelInfo,
		meta:         metadata.New(),
		cwd:          cwd,
	}
}

// EvaluationID correlates this evaluation's log entries and spans.
func (c *EvalContext) EvaluationID() string { return c.evaluationID }

// Env returns the environment handle.
func (c *EvalContext) Env() *Ref { return c.envref }

// SetMinLevel sets the lowest level recorded into the metadata log.
func (c *EvalContext) SetMinLevel(l metadata.Level) { c.minLevel = l }

// Cwd returns the current working key for relative resolution.
func (c *EvalContext) Cwd() query.Key { return c.cwd }

// SetCwd replaces the current working key.
func (c *EvalContext) SetCwd(k query.Key) { c.cwd = k }

// SetQuery records the encoded query this context is evaluating.
func (c *EvalContext) SetQuery(encoded string) { c.meta.Query = encoded }

// SetStatus updates the metadata status.
func (c *EvalContext) SetStatus(s metadata.Status) {
	if !c.meta.IsError {
		c.meta.Status = s
	}
}

// SetFilename stamps the metadata's filename.
func (c *EvalContext) SetFilename(name string) { c.meta.Filename = name }

// SetTypeInfo records the value's type identifier and media type.
func (c *EvalContext) SetTypeInfo(typeIdentifier, mediaType, dataFormat string) {
	c.meta.TypeIdentifier = typeIdentifier
	c.meta.MediaType = mediaType
	c.meta.DataFormat = dataFormat
}

// SetError attaches err as the evaluation's terminal error.
func (c *EvalContext) SetError(err *lqerror.Error) { c.meta.SetError(err) }

// Log appends a log entry at level, gated by the context's minimum level.
// Entries below the minimum still reach the telemetry logger.
func (c *EvalContext) Log(ctx context.Context, level metadata.Level, msg string, pos query.Position) {
	logger := c.envref.Logger()
	kv := []any{"evaluation_id", c.evaluationID, "position", pos.String()}
	switch level {
	case metadata.LevelDebug:
		logger.Debug(ctx, msg, kv...)
	case metadata.LevelWarning:
		logger.Warn(ctx, msg, kv...)
	case metadata.LevelError:
		logger.Error(ctx, msg, kv...)
	default:
		logger.Info(ctx, msg, kv...)
	}
	if metadata.Severity(level) < metadata.Severity(c.minLevel) {
		return
	}
	c.meta.Append(level, msg, pos)
}

// Debug, Info, Warning and Error are Log shorthands with an unknown
// position.
func (c *EvalContext) Debug(ctx context.Context, msg string) {
	c.Log(ctx, metadata.LevelDebug, msg, query.UnknownPosition())
}

func (c *EvalContext) Info(ctx context.Context, msg string) {
	c.Log(ctx, metadata.LevelInfo, msg, query.UnknownPosition())
}

func (c *EvalContext) Warning(ctx context.Context, msg string) {
	c.Log(ctx, metadata.LevelWarning, msg, query.UnknownPosition())
}

func (c *EvalContext) Error(ctx context.Context, msg string) {
	c.Log(ctx, metadata.LevelError, msg, query.UnknownPosition())
}

// SnapshotMetadata returns a point-in-time copy of the context's metadata,
// attached to the state at each step boundary.
func (c *EvalContext) SnapshotMetadata() *metadata.Record {
	return c.meta.Clone()
}

// Metadata exposes the live record for the interpreter's terminal error
// handling; other callers use SnapshotMetadata.
func (c *EvalContext) Metadata() *metadata.Record { return c.meta }

// Inject materializes injected command arguments from the context. The
// recognized names are "context" (this EvalContext), "envref" and
// "environment" (the environment handle), and "cwd_key".
func (c *EvalContext) Inject(_ context.Context, name string) (any, error) {
	switch name {
	case "context":
		return c, nil
	case "envref", "environment":
		return c.envref, nil
	case "cwd_key":
		return c.cwd, nil
	default:
		return nil, lqerror.Errorf(lqerror.KindNotAvailable, "no injectable value named %q", name)
	}
}

var _ telemetry.Logger = (*contextLogger)(nil)

// contextLogger adapts an EvalContext to telemetry.Logger so commands that
// only know the logger interface still feed the evaluation log.
type contextLogger struct {
	evalCtx *EvalContext
}

// AsLogger returns a telemetry.Logger view of the context.
func (c *EvalContext) AsLogger() telemetry.Logger {
	return &contextLogger{evalCtx: c}
}

func (l *contextLogger) Debug(ctx context.Context, msg string, _ ...any) {
	l.evalCtx.Debug(ctx, msg)
}

func (l *contextLogger) Info(ctx context.Context, msg string, _ ...any) {
	l.evalCtx.Info(ctx, msg)
}

func (l *contextLogger) Warn(ctx context.Context, msg string, _ ...any) {
	l.evalCtx.Warning(ctx, msg)
}

func (l *contextLogger) Error(ctx context.Context, msg string, _ ...any) {
	l.evalCtx.Error(ctx, msg)
}
