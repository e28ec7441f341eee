package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-persona/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	requestCounter  metric.Int64Counter
	requestDuration metric.Float64Histogram
)

func init() {
	var err error
	if requestCounter, err = meter.Int64Counter("orchestration.requests",
		metric.WithDescription("Requests sent to the model, by outcome."),
	); err != nil {
		logger.Error("failed to create request counter", "error", err)
	}
	if requestDuration, err = meter.Float64Histogram("orchestration.request.duration",
		metric.WithDescription("Time from accepted input to model reply."),
		metric.WithUnit("s"),
	); err != nil {
		logger.Error("failed to create request duration histogram", "error", err)
	}
}
