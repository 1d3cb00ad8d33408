// Package handlers implements the HTTP handlers behind the api router:
// generation, scene chains, task status, and the operational projections
// for providers, health, quarantine and budget.
package handlers
