/*
Package server manages the HTTP server lifecycle.

# Overview

Manager wraps net/http.Server with non-blocking startup, asynchronous
error reporting and signal-driven graceful shutdown. The listener is
bound synchronously in Start so port conflicts surface immediately;
serving happens in a background goroutine.

# Core types

  - Manager: lifecycle owner with Start, Shutdown, WaitForShutdown and
    an Errors channel for asynchronous serve failures.
  - Config: listen address, timeouts, header cap and shutdown budget.
*/
package server
