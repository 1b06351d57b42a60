package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/huddle/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as the zap global and flushes it
// on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg)
	if err != nil {
		return nil, err
	}
	log := build(cfg, level, zapcore.Lock(os.Stdout))
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = log.Sync()
				return nil
			},
		})
	}
	return log, nil
}

func parseLevel(cfg Config) (zap.AtomicLevel, error) {
	text := strings.ToLower(strings.TrimSpace(cfg.Level))
	switch {
	case text == "" && cfg.Debug:
		text = "debug"
	case text == "":
		text = "info"
	}
	level, err := zap.ParseAtomicLevel(text)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

// build assembles the core. Outside debug mode lines are sampled per second
// so a burst of redelivered webhooks cannot flood the sink.
func build(cfg Config, level zap.AtomicLevel, sink zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, sink, level)
	if !cfg.Debug {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}

	options := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.IncludeCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "huddle"
	}
	return zap.New(core, options...).With(
		zap.String("service", service),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
}

type fieldsKey struct{}

// With returns a context whose derived loggers carry fields. Calls stack;
// later fields are appended after earlier ones.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(fields) == 0 {
		return ctx
	}
	prior := contextFields(ctx)
	merged := make([]zap.Field, 0, len(prior)+len(fields))
	merged = append(merged, prior...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func contextFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	return fields
}

func EventID(id snowflake.ID) zap.Field { return zap.String("event_id", id.String()) }

func UserID(id snowflake.ID) zap.Field { return zap.String("user_id", id.String()) }

func SessionID(id string) zap.Field { return zap.String("session_id", id) }

// FromContext is WithContext on the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext tags base with the request, correlation and caller ids, the
// active span, and any fields attached through With.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	extra := contextFields(ctx)
	fields := make([]zap.Field, 0, 5+len(extra))
	for _, id := range []struct {
		key   string
		value string
	}{
		{"request_id", obscontext.RequestIDFromContext(ctx)},
		{"correlation_id", obscontext.CorrelationIDFromContext(ctx)},
		{"caller_id", obscontext.CallerIDFromContext(ctx)},
	} {
		if id.value != "" {
			fields = append(fields, zap.String(id.key, id.value))
		}
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, extra...)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
