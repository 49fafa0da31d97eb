// Package telemetry provides observability instrumentation for envswitch.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus) behind a single Telemetry bundle. Everything stays
// local: logs go to stderr or a file, spans are written as JSON lines to a
// trace file, and the metrics registry is dumped in Prometheus text format
// on shutdown.
//
// # Usage
//
//	cfg := telemetry.FromSettings(settings, version)
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Operations are instrumented with StartOperation:
//
//	op := telemetry.StartOperation(ctx, "set", telemetry.AttrAlias.String(alias))
//	err := doWork(op.Ctx)
//	op.End(err)
//
// End records the span status, the operation counter and the latency
// histogram. Without a Telemetry in the context StartOperation still
// returns a usable InstrumentedContext that records nothing.
//
// Stdout is never used: it carries shell commands that users evaluate.
package telemetry
