// Package database manages the connection pool behind the persistence
// layer: pool sizing, background liveness probes, pool statistics and
// transaction helpers with retry for transient lock errors.
package database
