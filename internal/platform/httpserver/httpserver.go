package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the timeouts used across the project.
// WriteTimeout is left unset; request deadlines come from the Timeout
// middleware so slow uploads are bounded per route.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
