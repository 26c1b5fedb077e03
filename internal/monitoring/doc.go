/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the memory
substrate, tracking shared-memory allocations, GC passes, and bounded-channel
behavior.

# Features

- Allocation metrics (attempts, failures by reason, bytes in use)
- GC metrics (passes, reclaimed bytes, orphans reclaimed)
- Channel metrics (drops, evictions, depth)

# Usage

	// Create a metrics collector on the default registry
	metrics := monitoring.NewMetrics(nil)

	// Record allocator activity
	metrics.RecordAlloc(4096)
	metrics.RecordAllocFailure("out_of_memory")

	// Record a GC pass
	metrics.RecordGC(2, 8192)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	http.Handle("/metrics", promhttp.Handler())
*/
package monitoring
