/*
Package cache provides Redis-backed and in-process caching, with the
terminal outcome cache as its primary consumer.

# Overview

The package wraps the go-redis client behind a Manager that owns the
connection lifecycle: initialization, background health checks and
graceful shutdown. Memory offers the same outcome-cache surface without
an external dependency for single-process deployments and tests.

# Core types

  - Manager: Redis-backed cache with Get/Set/Delete plus GetJSON/SetJSON
    helpers, and the typed GetOutcome/PutOutcome pair used to answer
    repeated status checks for finished tasks.
  - Memory: in-process outcome cache with the same typed surface.
  - Config: address, credentials, pool sizing, TTLs and health check
    interval.

# Semantics

  - Only terminal outcomes are cached; in-flight tasks always go to the
    provider.
  - Cache errors on the outcome path degrade to misses, never failures.
  - ErrCacheMiss is the sentinel for absent keys; IsCacheMiss tests it.
*/
package cache
