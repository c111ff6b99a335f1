/*
Package telemetry wires sdkguard into OpenTelemetry.

NewProvider builds the trace and metric pipelines described by
core.TelemetryConfig:

  - "otlp": spans over gRPC (otlptracegrpc), metrics over HTTP (otlpmetrichttp)
  - "stdout": spans printed through stdouttrace, metrics kept in-process

MetricInstruments caches counters and histograms by name so that hot paths
(every guarded call, every closed marker) do not recreate instruments.
Recording never returns an error to the boundary; telemetry failures must not
turn into SDK failures. Label values go through a CardinalityLimiter; tags
and exception names beyond DefaultLabelLimits are recorded as "other".

Usage:

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	provider.Instruments().Count(ctx, telemetry.MetricBoundaryCaptured, "tag", "checkGate")
*/
package telemetry
