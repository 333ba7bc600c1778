package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/katalogcu/partalog/internal/handlers"
	"github.com/katalogcu/partalog/internal/queue"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog API server",
		Long: `Starts the Partalog API on the specified port.

Catalogs are created and given pages over HTTP. Processing requests are
queued and run one at a time in the background.`,
		Example: `  # Start server on default port 8888
  partalog serve

  # Start server on custom port
  partalog serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			q := queue.New(a.cfg.Queue.Capacity)
			workerCtx, stopWorker := context.WithCancel(context.Background())
			workerDone := make(chan struct{})
			go func() {
				defer close(workerDone)
				q.Run(workerCtx)
			}()

			handler := handlers.New(a.store, a.processor, q, a.cfg.Images.WebRoot)

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Partalog API available", "addr", addr, "url", "http://localhost"+addr, "queue_capacity", q.Cap())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			shutdown := func() error {
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				err := server.Shutdown(shutdownCtx)

				q.Close()
				stopWorker()
				<-workerDone
				return err
			}

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...", "pending", q.Len())
				if err := shutdown(); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				_ = shutdown()
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
