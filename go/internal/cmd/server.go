package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mcdev12/courtside/go/internal/scoreboard/gateway"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(ctx context.Context, cfg ServerConfig, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Register broadcaster routes (event stream, websocket, state API, static)
	services.Broadcaster.RegisterRoutes(mux)

	// Prometheus metrics
	mux.Handle("/metrics", services.Metrics.Handler())

	// Wrap with CORS and request logging
	handler := gateway.RequestLogger(gateway.NewCORS(cfg.AllowedOrigin).Handler(mux))

	// Setup HTTP/2 server. No write timeout: event streams are long-lived and
	// end when ctx is cancelled.
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}
