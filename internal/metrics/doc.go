/*
Package metrics provides Prometheus instrumentation for the store engine.

Metrics are exposed over the optional debug HTTP listener (see
internal/config and cmd/keyring-store), never over the stdio protocol
channel.

# Catalog

keyring_blobs_total, keyring_documents_total:
  - Gauges, sampled every 15s by Collector from storage.Store.Counts().

keyring_requests_total{tag,outcome}:
  - Counter, incremented once per request by the dispatcher. outcome is
    "ok" or "error".

keyring_request_duration_seconds{tag}:
  - Histogram of handler latency, recorded via Timer.

keyring_merkle_root_duration_seconds:
  - Histogram of time spent building the per-document roots list of a
    GetRoots response. The engine does not fold roots into a Merkle tree;
    that happens host-side (pkg/client).

keyring_changes_sent_total, keyring_changes_applied_total{outcome}:
  - Counters for GetChanges/ApplyChanges sync traffic. outcome on apply
    is "stored" or "skipped_up_to_date".

# Usage

	timer := metrics.NewTimer()
	resp := handle(req)
	timer.ObserveDurationVec(metrics.RequestDuration, string(req.Tag))
	metrics.RequestsTotal.WithLabelValues(string(req.Tag), outcome).Inc()

# Health

This engine has exactly one runtime dependency whose health varies: the
bbolt handle opened at startup. SetStorageHealth records it, and
HealthHandler/ReadyHandler both report that same flag — there is no
multi-component breakdown to speak of, so /health and /ready carry
identical semantics. LivenessHandler reports the process is running
regardless of storage health, since a wedged handle should surface as
not-ready rather than trigger a process restart.
*/
package metrics
