package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the price context API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			status := "ok"
			code := http.StatusOK
			if err := env.Store.Ping(req.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
				zap.L().Warn("health: store ping failed", zap.Error(err))
			}
			writeJSON(w, code, map[string]string{"status": status})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/price-context", func(w http.ResponseWriter, req *http.Request) {
				q := req.URL.Query()
				brand := q.Get("brand")
				mdl := q.Get("model")
				if brand == "" || mdl == "" {
					writeError(w, http.StatusBadRequest, "brand and model are required")
					return
				}
				category := q.Get("category")
				condition, _ := model.ParseCondition(q.Get("condition"))

				pc, err := env.Orchestrator.PriceContext(req.Context(), brand, mdl, category, condition)
				if err != nil {
					zap.L().Error("price context failed",
						zap.String("brand", brand),
						zap.String("model", mdl),
						zap.Error(err),
					)
					writeError(w, http.StatusInternalServerError, "price lookup failed")
					return
				}
				writeJSON(w, http.StatusOK, pc)
			})

			r.Post("/classify", func(w http.ResponseWriter, req *http.Request) {
				var in struct {
					URL         string `json:"url"`
					Title       string `json:"title"`
					Description string `json:"description"`
				}
				if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
				if in.URL == "" {
					writeError(w, http.StatusBadRequest, "url is required")
					return
				}
				verdict := env.Classifier.Classify(model.SearchResult{
					URL:         in.URL,
					Title:       in.Title,
					Description: in.Description,
				})
				writeJSON(w, http.StatusOK, verdict)
			})

			r.Get("/normalize", func(w http.ResponseWriter, req *http.Request) {
				term := req.URL.Query().Get("term")
				writeJSON(w, http.StatusOK, map[string]string{
					"term":       term,
					"normalized": classify.Normalize(term),
				})
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
