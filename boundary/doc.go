/*
Package boundary keeps unexpected SDK failures away from the host application.

Every public SDK entry point runs its body through the boundary:

	value, err := boundary.Capture(b, "checkGate", func() (bool, error) {
	    return client.evaluate(gate)
	}, func() bool { return false })

A failure is either a returned error or a panic. Unexpected failures are
logged once, reported in the background to the diagnostics endpoint and
replaced by the fallback value. Usage errors (an uninitialized client or an
invalid argument, see core.IsUsageError) always reach the caller: returned
errors are returned and panics panic again with the same value.

Reports are deduplicated by error name: each name is sent at most once per
boundary, or once per Redis namespace with dedup.RedisSeenSet. Delivery is
fire-and-forget; Flush waits for reports still in flight.

Deferred work uses Future. CaptureFuture and CaptureAsync return immediately
with a future that settles after the guarded one, resolving to the fallback
value when it is rejected.

A process is sampled for instrumentation when construction draws zero from
[0, SampleRange). Sampled boundaries record begin/end markers for guarded
calls in a diagnostics.Store, up to MaxMarkers per process.
*/
package boundary
