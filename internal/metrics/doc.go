/*
Package metrics records swotap firmware telemetry with Prometheus.

The Collector owns a private registry; nothing is served over the network.
An embedding host that wants an endpoint reads Registry() and exposes it
itself. Every recorder is a no-op on a nil or disabled Collector, so handlers
call them unconditionally.

Metrics

	lane_writes_total{lane}           values that reached a trace lane
	lane_drops_total{lane,reason}     values discarded by a non-blocking policy
	lane_breaker_state{lane}          0 closed, 1 open, 2 half-open
	isr_service_cycles{isr}           histogram of handler cycle counts
	sample_batches_total              DMA batches processed
	transfer_errors_total             DMA transfer errors observed
	button_edges_total{kind}          press, release and ignored bounces
	hold_duration_ticks               histogram of hold times in ms ticks

Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Namespace: "swotap",
	})
	if err != nil {
		return err
	}
	collector.RecordLaneWrite("sample")
*/
package metrics
