// Package server provides the HTTP API for requesting gating decisions and
// querying decision history.
package server
