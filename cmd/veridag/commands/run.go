package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veridag/veridag/pkg/config"
	"github.com/veridag/veridag/pkg/engine"
	"github.com/veridag/veridag/pkg/schedule"
	"github.com/veridag/veridag/pkg/stores"
	"github.com/veridag/veridag/pkg/telemetry"
	"github.com/veridag/veridag/pkg/verify"
)

func newRunCommand() *cobra.Command {
	var (
		file          string
		intentFile    string
		journalPath   string
		outFile       string
		maxParallel   int
		watch         bool
		serve         bool
		metricsAddr   string
		traceExporter string
		traceEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile, plan, execute, and verify a statement file",
		Long: `Run the full pipeline: compile the statement file into a graph,
plan it into stages, execute the stages with the simulation handler
registry, and, when an intent is given, verify the result.

Execution uses the fail-stage policy: nodes already running in a
failing stage finish, but no later stage starts.`,
		Example: `  # Run once
  veridag run -f statements.yaml

  # Run and verify against an intent
  veridag run -f statements.yaml --intent intent.yaml

  # Run with a persistent event journal and metrics endpoint
  veridag run -f statements.yaml --journal events.db --metrics :9090

  # Re-run on every change to the statement file
  veridag run -f statements.yaml --watch

  # Stay up and fire declared pipeline schedules
  veridag run -f statements.yaml --serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loader := config.NewLoader()

			var publisher engine.EventPublisher
			if journalPath != "" {
				eventLog, err := stores.NewEventLog(stores.Config{Path: journalPath})
				if err != nil {
					return err
				}
				if err := eventLog.Init(ctx); err != nil {
					return err
				}
				defer eventLog.Close()
				if err := eventLog.Migrate(ctx); err != nil {
					return err
				}
				publisher = stores.NewRunJournal(eventLog)
			}

			metrics, err := newRunMetrics(metricsAddr)
			if err != nil {
				return err
			}

			tracer, err := newRunTracer(traceExporter, traceEndpoint)
			if err != nil {
				return err
			}
			defer func() {
				_ = tracer.Shutdown(context.Background())
			}()

			var intent *verify.Intent
			if intentFile != "" {
				intent, err = loader.LoadIntent(intentFile)
				if err != nil {
					return err
				}
			}

			r := &runner{
				loader:      loader,
				publisher:   publisher,
				metrics:     metrics,
				tracer:      tracer,
				intent:      intent,
				outFile:     outFile,
				maxParallel: maxParallel,
			}

			switch {
			case watch:
				if err := r.runFile(ctx, file); err != nil {
					log.Error().Err(err).Msg("Run failed")
				}
				watcher := config.NewWatcher(log.Logger, loader, file)
				err := watcher.Watch(ctx, func(name string, statements []engine.Statement) error {
					if err := r.runStatements(ctx, name, statements); err != nil {
						log.Error().Err(err).Msg("Run failed")
					}
					return nil
				})
				if err == context.Canceled {
					return nil
				}
				return err

			case serve:
				return r.serveSchedules(ctx, file)

			default:
				return r.runFile(ctx, file)
			}
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "statement file path")
	cmd.Flags().StringVar(&intentFile, "intent", "", "intent file for outcome verification (optional)")
	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite event journal path (optional)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output result file (optional)")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", engine.DefaultMaxParallel, "maximum nodes executing concurrently per stage")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run on statement file changes")
	cmd.Flags().BoolVar(&serve, "serve", false, "stay up and fire declared pipeline schedules")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Prometheus metrics listen address (optional)")
	cmd.Flags().StringVar(&traceExporter, "trace", "", "trace exporter: stdout, otlp, or none (disabled when empty)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "localhost:4317", "OTLP gRPC endpoint for --trace otlp")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runner holds the pieces shared by one-shot, watch, and serve modes.
type runner struct {
	loader      *config.Loader
	publisher   engine.EventPublisher
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
	intent      *verify.Intent
	outFile     string
	maxParallel int
}

func (r *runner) runFile(ctx context.Context, path string) error {
	name, statements, err := r.loader.Load(path)
	if err != nil {
		return err
	}
	return r.runStatements(ctx, name, statements)
}

func (r *runner) runStatements(ctx context.Context, name string, statements []engine.Statement) error {
	compiler := engine.NewCompiler(name)
	_, compileSpan := r.tracer.StartCompileSpan(ctx, name)
	graph, err := compiler.Compile(statements)
	if err != nil {
		telemetry.RecordError(compileSpan, err)
		compileSpan.End()
		r.metrics.RecordCompile("failed")
		return err
	}
	compileSpan.SetAttributes(telemetry.AttrGraphHash.String(graph.Meta.ContentHash))
	telemetry.RecordSuccess(compileSpan)
	compileSpan.End()
	r.metrics.RecordCompile("success")
	r.recordGraphSize(graph)

	for _, w := range compiler.Warnings() {
		log.Warn().
			Str("code", w.Code).
			Str("declaration", w.Declaration).
			Msg(w.Message)
	}

	plan, err := engine.NewPlanner().Plan(graph)
	if err != nil {
		return err
	}

	executor := engine.NewExecutor(engine.NewSimulationRegistry(), r.publisher, r.maxParallel)

	r.metrics.RecordRunStarted()
	runCtx, runSpan := r.tracer.StartRunSpan(ctx, name)
	result, err := executor.Execute(runCtx, plan)
	if err != nil {
		telemetry.RecordError(runSpan, err)
		runSpan.End()
		r.metrics.RecordRunCompleted("error", 0)
		return err
	}
	runSpan.SetAttributes(telemetry.AttrRunID.String(result.RunID))
	if serr := result.SummaryError(); serr != nil {
		telemetry.RecordError(runSpan, serr)
	} else {
		telemetry.RecordSuccess(runSpan)
	}
	runSpan.End()

	status := "success"
	if !result.Success {
		status = "failed"
	}
	r.metrics.RecordRunCompleted(status, result.Duration)
	for id, nr := range result.Results {
		node := graph.Node(id)
		if node == nil {
			continue
		}
		r.metrics.RecordNodeExecution(string(node.Type), string(nr.Status), nr.Duration)
		if nr.Status == engine.NodeStatusFailed {
			r.metrics.RecordHandlerError(string(node.Type))
		}
	}

	log.Info().
		Str("graph", name).
		Bool("success", result.Success).
		Int("stages_run", result.StagesRun).
		Int("nodes", len(result.Results)).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Run finished")

	if r.intent != nil {
		_, verifySpan := r.tracer.StartVerifySpan(ctx, result.RunID)
		vr := verify.NewEngine().Verify(*r.intent, plan, result)
		verifySpan.SetAttributes(
			telemetry.AttrDecisionAction.String(string(vr.Decision.Action)),
			telemetry.AttrRiskLevel.String(string(vr.RiskLevel)),
		)
		telemetry.RecordSuccess(verifySpan)
		verifySpan.End()

		r.reportVerification(vr)
		if r.outFile != "" || jsonOutput {
			return writeJSON(r.outFile, vr)
		}
		return nil
	}

	if r.outFile != "" || jsonOutput {
		return writeJSON(r.outFile, result)
	}
	if serr := result.SummaryError(); serr != nil {
		return serr
	}
	return nil
}

func (r *runner) reportVerification(vr *verify.VerificationResult) {
	for _, a := range vr.Anomalies {
		r.metrics.RecordAnomaly(string(a.Severity))
		log.Warn().
			Str("anomaly", string(a.Type)).
			Str("severity", string(a.Severity)).
			Strs("nodes", a.Nodes).
			Msg("Anomaly detected")
	}
	r.metrics.RecordDecision(string(vr.Decision.Action), vr.RiskScore)

	log.Info().
		Float64("intent_match", vr.IntentMatch).
		Float64("state_consistency", vr.StateConsistency).
		Float64("causal_validity", vr.CausalValidity).
		Float64("risk_score", vr.RiskScore).
		Str("risk_level", string(vr.RiskLevel)).
		Str("decision", string(vr.Decision.Action)).
		Float64("confidence", vr.Decision.Confidence).
		Msg(vr.Decision.Reasoning)

	for _, rec := range vr.Recommendations {
		log.Info().
			Str("action", rec.Action).
			Float64("priority", rec.Priority).
			Msg(rec.Reason)
	}
}

// serveSchedules compiles once, registers pipeline schedules, and blocks
// until the context is cancelled. Every firing re-executes the plan.
func (r *runner) serveSchedules(ctx context.Context, path string) error {
	name, statements, err := r.loader.Load(path)
	if err != nil {
		return err
	}

	compiler := engine.NewCompiler(name)
	graph, err := compiler.Compile(statements)
	if err != nil {
		return err
	}

	sched := schedule.NewRunner(log.Logger, func(ctx context.Context, node *engine.ExecutionNode) error {
		return r.runStatements(ctx, name, statements)
	})
	if err := sched.Register(ctx, graph); err != nil {
		return err
	}
	if sched.Len() == 0 {
		return fmt.Errorf("no scheduled pipelines in %s", path)
	}

	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	return nil
}

func (r *runner) recordGraphSize(graph *engine.ExecutionGraph) {
	byType := make(map[string]int)
	for _, node := range graph.Nodes {
		byType[string(node.Type)]++
	}
	r.metrics.SetGraphSize(byType, len(graph.Edges))
}

// newRunTracer builds the tracer, exporting spans when an exporter is
// named and leaving tracing disabled otherwise.
func newRunTracer(exporter, endpoint string) (*telemetry.Tracer, error) {
	cfg := telemetry.DefaultConfig()
	tcfg := cfg.Tracing
	if exporter != "" {
		tcfg.Enabled = true
		tcfg.Exporter = exporter
		tcfg.Endpoint = endpoint
	}
	return telemetry.NewTracer(tcfg, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
}

// newRunMetrics builds the metrics collector, serving /metrics when an
// address is given and a no-op collector otherwise.
func newRunMetrics(addr string) (*telemetry.Metrics, error) {
	cfg := telemetry.DefaultConfig().Metrics
	if addr != "" {
		cfg.Enabled = true
		cfg.ListenAddress = addr
	}
	metrics, err := telemetry.NewMetrics(cfg)
	if err != nil {
		return nil, err
	}
	if err := metrics.StartMetricsServer(); err != nil {
		return nil, err
	}
	return metrics, nil
}
