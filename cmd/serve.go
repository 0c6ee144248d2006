package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/vetting"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP vetting API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initVetting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Pipeline),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes around a vetting pipeline.
func newRouter(pipe vetter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/vet/{ein}", func(w http.ResponseWriter, req *http.Request) {
		opts := vetting.VetOptions{
			ForceRefresh: req.URL.Query().Get("force") == "true",
		}

		outcome, err := pipe.Vet(req.Context(), chi.URLParam(req, "ein"), opts)
		if err != nil {
			writeVetError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	return r
}

// writeVetError maps pipeline errors onto HTTP statuses without leaking
// wrapped internals to the caller.
func writeVetError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case eris.Is(err, vetting.ErrInvalidArgument):
		status = http.StatusBadRequest
	case eris.Is(err, vetting.ErrNotFound):
		status = http.StatusNotFound
	case eris.Is(err, vetting.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	zap.L().Error("vet request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": eris.Cause(err).Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
