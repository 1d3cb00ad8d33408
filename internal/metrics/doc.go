/*
Package metrics provides Prometheus-based metrics collection covering the
provider, budget, chain and HTTP dimensions of the engine.

# Overview

The package registers all metrics through a single Collector using the
promauto helpers, so callers never manage a Registry by hand. Metrics are
grouped under one namespace and labelled for dashboarding and alerting.

# Core types

  - Collector: holds the Counter, Histogram and Gauge vectors, grouped
    by concern.

# Capabilities

  - Provider metrics: call totals, latency and estimated cost, grouped
    by provider/capability/operation.
  - Resilience metrics: quarantine events, budget gate rejections,
    fallback attempts per orchestration run and hops per chain run.
  - HTTP metrics: request totals and duration, grouped by method/path,
    status classified as 2xx/3xx/4xx/5xx.
*/
package metrics
