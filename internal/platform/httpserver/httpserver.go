// Package httpserver builds the process HTTP server with timeouts suited
// to a small request/response API.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for addr. Handler-level timeouts are the router's
// concern; these guard the connection itself.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
