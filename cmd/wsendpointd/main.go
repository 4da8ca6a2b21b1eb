// File: cmd/wsendpointd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// wsendpointd is a small demonstration daemon: an echo and a reverse
// endpoint with a Prometheus metrics listener.

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/momentics/endpoint-ws/control"
	"github.com/momentics/endpoint-ws/endpoint"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/server"
	"github.com/momentics/endpoint-ws/session"
)

var (
	flagAddr        string
	flagMetricsAddr string
	flagIdleTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "wsendpointd",
		Short: "WebSocket endpoint container demo daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.Flags().StringVar(&flagAddr, "addr", ":9001", "WebSocket listen address")
	root.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9100", "Prometheus metrics listen address")
	root.Flags().DurationVar(&flagIdleTimeout, "idle-timeout", 0, "session idle timeout (0 disables)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	metrics := control.NewMetrics()

	cfg := server.DefaultConfig()
	cfg.ListenAddr = flagAddr
	srv := server.NewServer(cfg,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	)

	_, err := srv.Register(endpoint.Config{
		PathPattern:    "/echo",
		MaxIdleTimeout: flagIdleTimeout,
	}, endpoint.FactoryFunc(func() *endpoint.Handler {
		return &endpoint.Handler{
			OnMessage: func(s *session.Session, msg session.Message) any {
				if msg.Kind == session.KindText {
					return "Echo: " + string(msg.Data)
				}
				return msg.Data
			},
		}
	}))
	if err != nil {
		return err
	}

	_, err = srv.Register(endpoint.Config{
		PathPattern:    "/reverse",
		MaxIdleTimeout: flagIdleTimeout,
	}, endpoint.FactoryFunc(func() *endpoint.Handler {
		return &endpoint.Handler{
			OnMessage: func(s *session.Session, msg session.Message) any {
				b := []byte(string(msg.Data))
				for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
					b[i], b[j] = b[j], b[i]
				}
				return string(b)
			},
			OnClose: func(s *session.Session, reason protocol.CloseReason) {
				logger.Info("reverse session closed", "session", s.ID(), "code", reason.Code)
			},
		}
	}))
	if err != nil {
		return err
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listening", "addr", flagMetricsAddr)
		if err := http.ListenAndServe(flagMetricsAddr, mux); err != nil {
			logger.Error("metrics listener failed", "err", err)
		}
	}()

	return srv.ListenAndServe()
}
