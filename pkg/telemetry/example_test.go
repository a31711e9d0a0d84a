package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/veridag/veridag/pkg/telemetry"
)

// Example_structuredLogging demonstrates the structured logging setup the
// CLI installs at startup.
func Example_structuredLogging() {
	cfg := telemetry.DefaultConfig().Logging
	cfg.Output = "stdout"
	cfg.Level = "debug"

	logger, err := telemetry.NewLogger(cfg)
	if err != nil {
		panic(err)
	}

	// Component-specific logger with run context
	runLogger := logger.NewComponentLogger("executor").WithRunID("run-123")
	runLogger.Debug("Dispatching stage")
	runLogger.Info("Stage complete")

	// Log with graph and error context
	logger.WithGraph("orders", "b2c9").Info("Graph compiled")
	logger.WithError(fmt.Errorf("handler timeout")).Error("Node failed")

	// Output varies, no output specified
}

// Example_runTracing demonstrates the span lifecycle around one
// compile/execute/verify cycle.
func Example_runTracing() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "none" // spans generated but not exported

	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer tracer.Shutdown(context.Background())

	ctx, compileSpan := tracer.StartCompileSpan(context.Background(), "orders")
	compileSpan.SetAttributes(telemetry.AttrGraphHash.String("b2c9"))
	telemetry.RecordSuccess(compileSpan)
	compileSpan.End()

	ctx, runSpan := tracer.StartRunSpan(ctx, "orders")
	runSpan.SetAttributes(telemetry.AttrRunID.String("run-123"))
	telemetry.RecordSuccess(runSpan)
	runSpan.End()

	_, verifySpan := tracer.StartVerifySpan(ctx, "run-123")
	verifySpan.SetAttributes(telemetry.AttrDecisionAction.String("accept"))
	telemetry.RecordError(verifySpan, fmt.Errorf("must constraint violated"))
	verifySpan.End()

	fmt.Println("Tracing complete")
	// Output: Tracing complete
}

// Example_metricsCollection demonstrates recording run metrics.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig().Metrics
	cfg.Enabled = true

	metrics, err := telemetry.NewMetrics(cfg)
	if err != nil {
		panic(err)
	}

	metrics.RecordCompile("success")
	metrics.SetGraphSize(map[string]int{"aggregate": 1, "projection": 1}, 1)

	metrics.RecordRunStarted()
	metrics.RecordNodeExecution("projection", "completed", 25*time.Millisecond)
	metrics.RecordRunCompleted("success", 50*time.Millisecond)

	metrics.RecordAnomaly("warning")
	metrics.RecordDecision("accept", 0.05)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}
