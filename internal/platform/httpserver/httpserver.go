// Package httpserver constructs the http.Server the ledger API listens on.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the ledger API server. The read-header timeout bounds slow
// clients before they tie up a connection; everything else stays on the
// stdlib defaults.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
