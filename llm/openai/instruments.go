package openai

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/companion/types"
)

const instrumentationName = "github.com/BaSui01/companion/llm/openai"

// instruments are recorded through the global meter provider, which stays
// noop unless telemetry is enabled.
type instruments struct {
	duration metric.Float64Histogram
	prompt   metric.Int64Histogram
	trimmed  metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	// 创建失败时 otel 返回可用的 noop 仪表，错误交给全局 handler
	duration, err := meter.Float64Histogram("llm.request.duration",
		metric.WithDescription("Model call latency"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}
	prompt, err := meter.Int64Histogram("llm.prompt.tokens",
		metric.WithDescription("Counted prompt tokens after history trimming"),
		metric.WithUnit("{token}"))
	if err != nil {
		otel.Handle(err)
	}
	trimmed, err := meter.Int64Counter("llm.history.trimmed",
		metric.WithDescription("History turns dropped to fit the token budget"),
		metric.WithUnit("{message}"))
	if err != nil {
		otel.Handle(err)
	}
	return instruments{duration: duration, prompt: prompt, trimmed: trimmed}
}

func (in instruments) recordCall(ctx context.Context, op, model string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = string(types.GetErrorCode(err))
		if status == "" {
			status = "error"
		}
	}
	in.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("model", model),
		attribute.String("status", status),
	))
}

func (in instruments) recordPrompt(ctx context.Context, op string, tokens, dropped int) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	in.prompt.Record(ctx, int64(tokens), attrs)
	if dropped > 0 {
		in.trimmed.Add(ctx, int64(dropped), attrs)
	}
}
