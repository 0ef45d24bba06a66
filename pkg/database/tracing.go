package database

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

// CommandHook is a go-redis hook that starts a client span per command and
// warns about commands slower than a threshold. A zero threshold disables
// slow command logging.
type CommandHook struct {
	tracer    trace.Tracer
	threshold time.Duration
	logger    *slog.Logger
}

var _ redis.Hook = (*CommandHook)(nil)

// NewCommandHook returns a hook logging to logger. logger may be nil when
// threshold is zero.
func NewCommandHook(threshold time.Duration, logger *slog.Logger) *CommandHook {
	return &CommandHook{
		tracer:    otel.Tracer(tracerName),
		threshold: threshold,
		logger:    logger,
	}
}

// DialHook passes dials through untouched.
func (h *CommandHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook traces a single command.
func (h *CommandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, end := h.start(ctx, cmd.Name(), 1)
		err := next(ctx, cmd)
		end(cmdErr(err))
		return err
	}
}

// ProcessPipelineHook traces a pipeline as one span.
func (h *CommandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, len(cmds))
		for i, c := range cmds {
			names[i] = c.Name()
		}
		ctx, end := h.start(ctx, "pipeline "+strings.Join(names, " "), len(cmds))
		err := next(ctx, cmds)
		end(cmdErr(err))
		return err
	}
}

func (h *CommandHook) start(ctx context.Context, operation string, size int) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "redis."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", operation),
			attribute.Int("db.redis.num_cmd", size),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if h.threshold <= 0 || h.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= h.threshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			h.logger.WarnContext(ctx, "slow redis command", attrs...)
		}
	}
}

// cmdErr hides redis.Nil, which is a miss rather than a failure.
func cmdErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
