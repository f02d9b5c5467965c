/*
Package monitoring provides Prometheus metrics for the app host.

# Overview

Metrics cover HTTP traffic, viewer opens, fetch warnings, script results,
bundle imports and the event stream. *Metrics satisfies the loader's
Recorder interface, so viewers report into it directly.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	viewers := loader.NewViewers(loader.Deps{Recorder: metrics})

Tests use NewMetricsWith(prometheus.NewRegistry()) to stay isolated.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
